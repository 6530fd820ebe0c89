package s3utils_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils"
	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

const bucket = "logs"

func newClient(store *testutil.MemStore, opts ...s3types.Option) *s3utils.Client {
	opts = append([]s3types.Option{
		s3utils.WithMaxRetries(0),
		s3utils.WithConcurrency(4),
	}, opts...)
	return s3utils.NewWithStorage(store, opts...)
}

func TestClient_Concat(t *testing.T) {
	store := testutil.NewMemStore()
	first := testutil.GenerateRandomData(5 * testutil.MiB)
	second := testutil.GenerateRandomData(5 * testutil.MiB)
	last := []byte("tail")
	store.Put(bucket, "archives/part-1.gz", first)
	store.Put(bucket, "archives/part-2.gz", second)
	store.Put(bucket, "archives/part-3.gz", last)
	store.Put(bucket, "archives/readme.txt", []byte("skip"))

	client := newClient(store)
	results, err := client.Concat(context.Background(), "s3://logs/archives", `archives/(.*)\.gz`, "archives/all.gz")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "archives/all.gz", results[0].Target)
	assert.Equal(t, 3, results[0].Parts)
	assert.Equal(t, []string{"archives/part-1.gz", "archives/part-2.gz", "archives/part-3.gz"}, results[0].Sources)

	got, ok := store.Get(bucket, "archives/all.gz")
	require.True(t, ok)
	want := append(append(append([]byte{}, first...), second...), last...)
	assert.Equal(t, want, got)
	assert.Equal(t, 0, store.OpenUploads())
}

func TestClient_ConcatGlob(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSized(bucket, "archives/a.gz", 5*testutil.MiB)
	store.PutSized(bucket, "archives/b.gz", 1)

	results, err := newClient(store).Concat(context.Background(), bucket, "archives/*.gz", "merged.gz",
		s3utils.WithGlob(true))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(5*testutil.MiB+1), results[0].TotalBytes)
}

func TestClient_ConcatDryRun(t *testing.T) {
	store := testutil.NewMemStore()
	store.PutSized(bucket, "a.gz", 5*testutil.MiB)
	store.PutSized(bucket, "b.gz", 10)
	fs := memfs.New()

	results, err := newClient(store).Concat(context.Background(), bucket, `.*\.gz`, "all.gz",
		s3utils.WithDryRun(true),
		s3utils.WithPlanFile(fs, "plans/concat.json"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].DryRun)
	assert.Equal(t, 0, store.MutatingCalls())

	data, err := util.ReadFile(fs, "plans/concat.json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "concat", doc["operation"])
	assert.Equal(t, true, doc["dry_run"])
	assert.Len(t, doc["matches"], 2)
}

func TestClient_ConcatErrors(t *testing.T) {
	tests := []struct {
		name     string
		location string
		source   string
		target   string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "invalid location",
			location: "s3://Bad_Bucket/x",
			source:   ".*",
			target:   "t",
			check: func(t *testing.T, err error) {
				assert.True(t, s3errors.IsConfiguration(err))
			},
		},
		{
			name:     "invalid pattern",
			location: bucket,
			source:   "(",
			target:   "t",
			check: func(t *testing.T, err error) {
				assert.True(t, s3errors.IsConfiguration(err))
			},
		},
		{
			name:     "template references missing group",
			location: bucket,
			source:   "(.*)",
			target:   "$2",
			check: func(t *testing.T, err error) {
				assert.True(t, s3errors.IsConfiguration(err))
			},
		},
		{
			name:     "single source",
			location: bucket,
			source:   `a\.gz`,
			target:   "t.gz",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, s3errors.ErrNothingToConcat)
			},
		},
		{
			name:     "undersized part",
			location: bucket,
			source:   `.*\.gz`,
			target:   "t.gz",
			check: func(t *testing.T, err error) {
				var sizeErr *s3errors.SizeConstraintError
				require.ErrorAs(t, err, &sizeErr)
				assert.Equal(t, []string{"a.gz"}, sizeErr.Keys)
			},
		},
		{
			name:     "missing bucket",
			location: "other-bucket",
			source:   ".*",
			target:   "t",
			check: func(t *testing.T, err error) {
				assert.True(t, s3errors.IsBucketNotFound(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemStore()
			store.PutSized(bucket, "a.gz", 10)
			store.PutSized(bucket, "b.gz", 10)

			_, err := newClient(store).Concat(context.Background(), tt.location, tt.source, tt.target)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, store.MutatingCalls())
		})
	}
}

func TestClient_Rename(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "2018/01/01/f.gz", []byte("a"))
	store.Put(bucket, "2018/01/02/f.gz", []byte("b"))
	store.Put(bucket, "other/x.txt", []byte("c"))

	report, err := newClient(store).Rename(context.Background(), bucket,
		"(.*)/(.*)/(.*)/(.*)", "$1-$2-$3-$4")
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 2, report.Count(s3types.RenameRenamed))
	assert.Equal(t, []string{"2018-01-01-f.gz", "2018-01-02-f.gz", "other/x.txt"}, store.Keys(bucket))
}

func TestClient_RenamePartialFailure(t *testing.T) {
	store := testutil.NewMemStore()
	for _, key := range []string{"in/a", "in/b", "in/c"} {
		store.Put(bucket, key, []byte(key))
	}
	store.FailCopy = func(src, _ string) error {
		if src == "in/b" {
			return s3errors.NewObjectError("CopyObject", bucket, src, s3errors.ErrAccessDenied)
		}
		return nil
	}

	report, err := newClient(store).Rename(context.Background(), bucket, "in/(.*)", "out/$1")
	require.NoError(t, err)

	var partial *s3errors.PartialRenameError
	require.ErrorAs(t, report.Err(), &partial)
	assert.Equal(t, 2, partial.Renamed)
	assert.Equal(t, []string{"in/b"}, partial.Failed)
	assert.Equal(t, []string{"in/b", "out/a", "out/c"}, store.Keys(bucket))
}

func TestClient_RenameDryRun(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "a.txt", []byte("a"))
	store.Put(bucket, "b.txt", []byte("b"))

	report, err := newClient(store).Rename(context.Background(), bucket, `(.*)\.txt`, "$1.md",
		s3utils.WithDryRun(true))
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Count(s3types.RenamePlanned))
	assert.Equal(t, 0, store.MutatingCalls())
	assert.Equal(t, []string{"a.txt", "b.txt"}, store.Keys(bucket))
}

func TestClient_Report(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "data/a.gz", []byte("12345"))
	store.Put(bucket, "data/sub/b.gz", []byte("1"))
	store.Put(bucket, "data/c.txt", []byte("123"))
	store.Put(bucket, "elsewhere/d.gz", []byte("1"))

	summary, err := newClient(store).Report(context.Background(), "s3://logs/data/")
	require.NoError(t, err)

	assert.Equal(t, "data", summary.Prefix)
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, int64(9), summary.TotalBytes)
	assert.Equal(t, "data/a.gz", summary.Largest.Key)
	ext, n := summary.PopularExtension()
	assert.Equal(t, "gz", ext)
	assert.Equal(t, 2, n)

	var buf bytes.Buffer
	require.NoError(t, summary.Write(&buf))
	assert.Contains(t, buf.String(), "total_files=3")
}

func TestClient_ReportRetriesTransientListing(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "k", []byte("v"))
	failures := 1
	store.FailList = func(string) error {
		if failures > 0 {
			failures--
			return s3errors.NewError("ListObjectsV2", s3errors.ErrServiceUnavailable)
		}
		return nil
	}

	client := s3utils.NewWithStorage(store,
		s3utils.WithMaxRetries(2),
		s3utils.WithRetryDelays(0, 0))
	summary, err := client.Report(context.Background(), bucket)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 2, store.Calls("ListObjects"))
}

func TestClient_WriteMetrics(t *testing.T) {
	store := testutil.NewMemStore()
	store.Put(bucket, "a.txt", []byte("a"))
	client := newClient(store)

	_, err := client.Rename(context.Background(), bucket, `(.*)\.txt`, "$1.md")
	require.NoError(t, err)

	path := t.TempDir() + "/s3utils.prom"
	require.NoError(t, client.WriteMetrics(path))
	assert.FileExists(t, path)
}
