package s3utils

import (
	"context"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/operations/concat"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/operations/rename"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/report"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

type (
	// RenameReport is the per-key outcome of a rename batch.
	RenameReport = rename.Report

	// ReportSummary holds bucket statistics computed by Report.
	ReportSummary = report.Summary
)

// Concat merges the objects under location whose keys match source into
// one object per resolved target.
//
// location is "bucket[/prefix]", optionally with an s3:// scheme. source is
// an anchored regular expression, or a glob with WithGlob. target may
// reference capture groups as $N or ${N}; distinct resolved targets become
// separate sessions, all validated before the first one starts.
//
// Returns:
//   - []ConcatResult: one entry per completed target (or per planned target in dry-run)
//   - error: joins every failure; see the errors package for the types
//
// Errors:
//   - ErrConfiguration: bad location, pattern or template
//   - ErrNothingToConcat: fewer than two sources for a target
//   - *SizeConstraintError: a source violates a multipart limit
//   - *AbortedUploadError: a session failed after creation and was aborted
//   - *CleanupError: sources of a completed target could not be deleted
func (c *Client) Concat(
	ctx context.Context,
	location, source, target string,
	opts ...s3types.OperationOption,
) ([]s3types.ConcatResult, error) {
	cfg := applyOperationOptions(opts)

	p, err := c.buildPlan(ctx, location, source, target, cfg)
	if err != nil {
		return nil, err
	}
	if err := exportPlan(p, "concat", cfg); err != nil {
		return nil, err
	}

	o := concat.New(c.storage, concat.Options{
		Concurrency:  c.concurrency,
		AllowSingle:  cfg.AllowSingle,
		Cleanup:      cfg.Cleanup,
		AbortTimeout: c.abortTimeout,
		Logger:       c.logger,
		Metrics:      c.metrics,
	})
	if cfg.DryRun {
		return o.Preview(p)
	}
	return o.Run(ctx, p)
}

// Rename moves every object under location whose key matches source to its
// resolved target with copy then delete.
//
// A report is returned whenever the plan could be built, even if some keys
// failed; RenameReport.Err summarizes failures as a *PartialRenameError.
// The returned error covers configuration and listing failures only.
func (c *Client) Rename(
	ctx context.Context,
	location, source, target string,
	opts ...s3types.OperationOption,
) (*RenameReport, error) {
	cfg := applyOperationOptions(opts)

	p, err := c.buildPlan(ctx, location, source, target, cfg)
	if err != nil {
		return nil, err
	}
	if err := exportPlan(p, "rename", cfg); err != nil {
		return nil, err
	}

	o := rename.New(c.storage, rename.Options{
		Concurrency: c.concurrency,
		Logger:      c.logger,
		Metrics:     c.metrics,
	})
	if cfg.DryRun {
		return o.Preview(p), nil
	}
	return o.Run(ctx, p), nil
}

// Report scans location and computes size, extension and modification
// statistics.
func (c *Client) Report(ctx context.Context, location string) (*ReportSummary, error) {
	bucket, prefix, err := validation.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	lister := list.New(c.storage, c.logger)
	return report.Build(ctx, lister.All(ctx, bucket, prefix), bucket, prefix, nil)
}

func (c *Client) buildPlan(
	ctx context.Context,
	location, source, target string,
	cfg *s3types.OperationConfig,
) (*plan.Plan, error) {
	bucket, prefix, err := validation.ParseLocation(location)
	if err != nil {
		return nil, err
	}

	var p *pattern.Pattern
	if cfg.Glob {
		p, err = pattern.CompileGlob(source)
	} else {
		p, err = pattern.Compile(source)
	}
	if err != nil {
		return nil, err
	}

	t, err := pattern.ParseTemplate(target)
	if err != nil {
		return nil, err
	}

	lister := list.New(c.storage, c.logger)
	pl, err := plan.Build(ctx, lister.All(ctx, bucket, prefix), bucket, prefix, p, t)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "plan built",
		"bucket", bucket,
		"prefix", prefix,
		"pattern", p.String(),
		"matches", pl.Len(),
		"bytes", pl.TotalSize(),
	)
	return pl, nil
}

func applyOperationOptions(opts []s3types.OperationOption) *s3types.OperationConfig {
	cfg := &s3types.OperationConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func exportPlan(p *plan.Plan, operation string, cfg *s3types.OperationConfig) error {
	if cfg.PlanFS == nil || cfg.PlanFile == "" {
		return nil
	}
	if err := plan.Export(cfg.PlanFS, cfg.PlanFile, operation, cfg.DryRun, p); err != nil {
		return fmt.Errorf("export %s plan: %w", operation, err)
	}
	return nil
}
