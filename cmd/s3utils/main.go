// Package main implements the s3utils command: server-side concat, rename
// and report over objects in an S3 bucket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils"
	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/operations/concat"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "s3utils"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// newClient is replaced in tests to run against an in-memory store.
var newClient = s3utils.New

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitUsage)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return exitOK
	}

	cli, err := parseFlags(args[0], args[1:], stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		if _, known := commandArgs[args[0]]; !known {
			printUsage(stderr)
		}
		return exitUsage
	}

	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}

	logger := setupLogger(stderr, cfg.Log.Level, cfg.Log.Format, cli.Quiet).With(
		"run_id", uuid.NewString(),
		"command", cli.Command,
	)

	client, err := newClient(ctx, clientOptions(cfg, logger)...)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		return exitCode(err)
	}
	defer client.Close()

	switch cli.Command {
	case "concat":
		err = runConcat(ctx, client, cli, stdout)
	case "rename":
		err = runRename(ctx, client, cli, stdout)
	case "report":
		err = runReport(ctx, client, cli, stdout)
	}

	if cfg.MetricsFile != "" {
		if mErr := client.WriteMetrics(cfg.MetricsFile); mErr != nil {
			logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", mErr)
		}
	}

	if err != nil {
		logger.Error("command failed", "error", err, "code", s3errors.CodeOf(err))
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitCode(err)
	}
	return exitOK
}

func runConcat(ctx context.Context, client *s3utils.Client, cli *CLIConfig, stdout io.Writer) error {
	results, err := client.Concat(ctx, cli.Args[0], cli.Args[1], cli.Args[2],
		operationOptions(cli,
			s3utils.WithCleanup(cli.Cleanup),
			s3utils.WithAllowSingle(cli.AllowSingle),
		)...)

	if cli.DryRun && err == nil {
		return concat.WritePreview(stdout, results)
	}
	for _, r := range results {
		_, _ = fmt.Fprintln(stdout, concat.Summary(r))
	}
	return err
}

func runRename(ctx context.Context, client *s3utils.Client, cli *CLIConfig, stdout io.Writer) error {
	report, err := client.Rename(ctx, cli.Args[0], cli.Args[1], cli.Args[2], operationOptions(cli)...)
	if err != nil {
		return err
	}
	if err := report.Write(stdout); err != nil {
		return err
	}
	return report.Err()
}

func runReport(ctx context.Context, client *s3utils.Client, cli *CLIConfig, stdout io.Writer) error {
	summary, err := client.Report(ctx, cli.Args[0])
	if err != nil {
		return err
	}
	return summary.Write(stdout)
}

func operationOptions(cli *CLIConfig, extra ...s3types.OperationOption) []s3types.OperationOption {
	opts := []s3types.OperationOption{
		s3utils.WithDryRun(cli.DryRun),
		s3utils.WithGlob(cli.Glob),
	}
	if cli.PlanFile != "" {
		opts = append(opts, s3utils.WithPlanFile(
			osfs.New(filepath.Dir(cli.PlanFile)),
			filepath.Base(cli.PlanFile)))
	}
	return append(opts, extra...)
}

func clientOptions(cfg *config.Config, logger *slog.Logger) []s3types.Option {
	opts := []s3types.Option{
		s3utils.WithBackend(s3types.Backend(cfg.Backend)),
		s3utils.WithEndpoint(cfg.Endpoint),
		s3utils.WithForcePathStyle(cfg.PathStyle),
		s3utils.WithDisableSSL(cfg.DisableSSL),
		s3utils.WithConcurrency(cfg.Concurrency),
		s3utils.WithMaxRetries(cfg.Retry.MaxAttempts - 1),
		s3utils.WithRetryDelays(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		s3utils.WithRequestsPerSecond(cfg.RequestsPerSecond),
		s3utils.WithTimeout(cfg.Timeout),
		s3utils.WithAbortTimeout(cfg.AbortTimeout),
		s3utils.WithLogger(logger),
	}
	if cfg.Region != "" {
		opts = append(opts, s3utils.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, s3utils.WithCredentials(cfg.AccessKeyID, cfg.SecretAccessKey))
	}
	return opts
}

// exitCode maps an error to the process exit status: 2 for configuration
// and usage errors, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case s3errors.IsConfiguration(err), errors.Is(err, errUsage):
		return exitUsage
	default:
		return exitFailure
	}
}
