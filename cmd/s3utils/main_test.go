package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils"
	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

const bucket = "logs"

// useStore points the command at an in-memory store for the duration of t.
func useStore(t *testing.T, store *testutil.MemStore) {
	t.Helper()
	orig := newClient
	newClient = func(_ context.Context, opts ...s3types.Option) (*s3utils.Client, error) {
		return s3utils.NewWithStorage(store, opts...), nil
	}
	t.Cleanup(func() { newClient = orig })
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no arguments", nil, exitUsage},
		{"unknown command", []string{"move", "b", "x", "y"}, exitUsage},
		{"missing arguments", []string{"rename", "logs", "(.*)"}, exitUsage},
		{"too many arguments", []string{"report", "logs", "extra"}, exitUsage},
		{"unknown flag", []string{"report", "logs", "--bogus"}, exitUsage},
		{"report has no dry-run", []string{"report", "logs", "-d"}, exitUsage},
		{"invalid concurrency", []string{"rename", "logs", "a", "b", "-n", "0"}, exitUsage},
		{"invalid log level", []string{"report", "logs", "--log-level", "loud"}, exitUsage},
		{"help", []string{"help"}, exitOK},
		{"command help", []string{"concat", "-h"}, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useStore(t, testutil.NewMemStore())
			code, _, _ := execute(t, tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := execute(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "s3utils version "+Version+"\n", stdout)
}

func TestRun_InvalidPatternIsUsageError(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "a", []byte("a"))
	useStore(t, store)

	code, _, stderr := execute(t, "rename", bucket, "(", "x")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "invalid configuration")
	assert.Equal(t, 0, store.TotalCalls())
}

func TestRun_Rename(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "a.txt", []byte("a"))
	store.Put(bucket, "b.txt", []byte("b"))
	useStore(t, store)

	code, stdout, _ := execute(t, "rename", bucket, `(.*)\.txt`, "$1.md", "-q")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "a.txt -> a.md")
	assert.Contains(t, stdout, "2 renamed, 0 skipped, 0 failed, 0 partial")
	assert.Equal(t, []string{"a.md", "b.md"}, store.Keys(bucket))
}

func TestRun_RenameFailureExitsNonZero(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "in/a", []byte("a"))
	store.Put(bucket, "in/b", []byte("b"))
	store.FailCopy = func(src, _ string) error {
		if src == "in/a" {
			return s3errors.NewObjectError("CopyObject", bucket, src, s3errors.ErrAccessDenied)
		}
		return nil
	}
	useStore(t, store)

	code, stdout, stderr := execute(t, "rename", bucket, "in/(.*)", "out/$1")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "1 renamed, 0 skipped, 1 failed, 0 partial")
	assert.Contains(t, stderr, "rename incomplete")
}

func TestRun_ConcatDryRunWritesPlan(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSized(bucket, "archives/a.gz", 5*testutil.MiB)
	store.PutSized(bucket, "archives/b.gz", 10)
	useStore(t, store)

	planPath := filepath.Join(t.TempDir(), "plan.json")
	code, stdout, _ := execute(t, "concat", "s3://logs/archives", "archives/*.gz", "archives/all.gz",
		"--glob", "-d", "--plan-file", planPath)
	require.Equal(t, exitOK, code)

	assert.Contains(t, stdout, "s3://logs/archives/all.gz <- 2 object(s)")
	assert.Contains(t, stdout, "part 1: archives/a.gz")
	assert.Equal(t, 0, store.MutatingCalls())

	data, err := os.ReadFile(planPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation": "concat"`)
}

func TestRun_ConcatConstraintExitsNonZero(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSized(bucket, "a.gz", 10)
	store.PutSized(bucket, "b.gz", 10)
	useStore(t, store)

	code, _, stderr := execute(t, "concat", bucket, `.*\.gz`, "all.gz")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "minimum part size")
	assert.Equal(t, 0, store.MutatingCalls())
}

func TestRun_ConcatCleanup(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSized(bucket, "a.gz", 5*testutil.MiB)
	store.PutSized(bucket, "b.gz", 10)
	useStore(t, store)

	code, stdout, _ := execute(t, "concat", bucket, `.*\.gz`, "all.bin", "-c")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "s3://logs/all.bin: 2 part(s)")
	assert.Equal(t, []string{"all.bin"}, store.Keys(bucket))
}

func TestRun_ReportWithMetrics(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "x/a.gz", []byte("123"))
	store.Put(bucket, "x/b.txt", []byte("1"))
	useStore(t, store)

	metricsPath := filepath.Join(t.TempDir(), "s3utils.prom")
	code, stdout, _ := execute(t, "report", "logs/x", "--metrics-file", metricsPath)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "total_files=2")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "s3utils_storage_requests_total")
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	dry := fs.Bool("d", false, "")
	n := fs.Int("n", 0, "")

	args, err := parseInterspersed(fs, []string{"logs", "-d", "(.*)", "-n", "4", "$1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"logs", "(.*)", "$1"}, args)
	assert.True(t, *dry)
	assert.Equal(t, 4, *n)
}

func TestCLIConfig_Apply(t *testing.T) {
	var stderr bytes.Buffer
	cli, err := parseFlags("rename", []string{"logs", "a", "b", "--region", "eu-west-1", "-n", "3"}, &stderr)
	require.NoError(t, err)

	cfg := &config.Config{Region: "us-east-1", Endpoint: "http://minio:9000", Concurrency: 8}
	cli.apply(cfg)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, "http://minio:9000", cfg.Endpoint, "unset flags keep configured values")
}

func TestClientOptions_Region(t *testing.T) {
	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{name: "left to the credential chain", want: ""},
		{name: "environment", env: "ap-south-1", want: "ap-south-1"},
		{name: "flag", env: "ap-south-1", args: []string{"--region", "eu-central-1"}, want: "eu-central-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_REGION", "eu-west-2")
			t.Setenv("S3UTILS_REGION", tt.env)

			var stderr bytes.Buffer
			cli, err := parseFlags("report", append([]string{"logs"}, tt.args...), &stderr)
			require.NoError(t, err)

			cfg, err := config.Load("")
			require.NoError(t, err)
			cli.apply(cfg)

			clientCfg := &s3types.ClientConfig{}
			for _, opt := range clientOptions(cfg, nil) {
				opt(clientCfg)
			}
			assert.Equal(t, tt.want, clientCfg.Region)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"configuration", s3errors.Configurationf("bad"), exitUsage},
		{"usage", errUsage, exitUsage},
		{"nothing to concat", s3errors.ErrNothingToConcat, exitFailure},
		{"partial rename", &s3errors.PartialRenameError{Failed: []string{"k"}}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
