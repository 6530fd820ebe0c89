package rename

import (
	"context"
	"fmt"
	"log/slog"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/storage"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Options configures an Orchestrator.
type Options struct {
	// Concurrency is the maximum number of keys renamed at once.
	Concurrency int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Orchestrator runs rename plans against a storage client.
type Orchestrator struct {
	client  storage.Client
	pool    *pool.Pool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Orchestrator.
func New(client storage.Client, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:  client,
		pool:    pool.New(opts.Concurrency),
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Preview resolves the status every key would start with, without any store
// call. Keys that would be copied are reported as planned.
func (o *Orchestrator) Preview(p *plan.Plan) *Report {
	r := preflight(p)
	r.DryRun = true
	for i := range r.Outcomes {
		if r.Outcomes[i].Status == "" {
			r.Outcomes[i].Status = s3types.RenamePlanned
		}
	}
	return r
}

// Run renames every pending key of p. It always returns a report; use
// Report.Err to decide whether the batch succeeded.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) *Report {
	r := preflight(p)

	var pending []int
	for i, out := range r.Outcomes {
		if out.Status == "" {
			pending = append(pending, i)
			continue
		}
		o.observe(ctx, out)
	}

	o.pool.Each(ctx, len(pending), func(ctx context.Context, n int) {
		i := pending[n]
		r.Outcomes[i] = o.renameOne(ctx, p.Bucket, r.Outcomes[i])
		o.observe(ctx, r.Outcomes[i])
	}, func(n int, err error) {
		i := pending[n]
		r.Outcomes[i].Status = s3types.RenameFailed
		r.Outcomes[i].Err = fmt.Errorf("%w: %w", s3errors.ErrCanceled, err)
		o.observe(ctx, r.Outcomes[i])
	})

	return r
}

func (o *Orchestrator) renameOne(ctx context.Context, bucket string, out s3types.RenameOutcome) s3types.RenameOutcome {
	if _, err := o.client.CopyObject(ctx, bucket, out.Source, bucket, out.Target); err != nil {
		out.Status = s3types.RenameFailed
		out.Err = err
		return out
	}
	if err := o.client.DeleteObject(ctx, bucket, out.Source); err != nil {
		out.Status = s3types.RenamePartial
		out.Err = err
		return out
	}
	out.Status = s3types.RenameRenamed
	return out
}

func (o *Orchestrator) observe(ctx context.Context, out s3types.RenameOutcome) {
	o.metrics.ObserveRename(string(out.Status))

	switch out.Status {
	case s3types.RenameRenamed:
		o.logger.InfoContext(ctx, "renamed object", "key", out.Source, "target", out.Target)
	case s3types.RenameSkipped:
		o.logger.DebugContext(ctx, "skipped object, target equals source", "key", out.Source)
	case s3types.RenamePartial:
		o.logger.WarnContext(ctx, "object copied but source not deleted, it now exists at both keys",
			"key", out.Source,
			"target", out.Target,
			"error", out.Err,
		)
	case s3types.RenameFailed:
		o.logger.ErrorContext(ctx, "failed to rename object",
			"key", out.Source,
			"target", out.Target,
			"error", out.Err,
		)
	}
}

// preflight builds a report with skips and per-key failures already decided.
// Remaining outcomes have an empty status.
func preflight(p *plan.Plan) *Report {
	r := &Report{Bucket: p.Bucket, Outcomes: make([]s3types.RenameOutcome, len(p.Matches))}

	sources := make(map[string]struct{}, len(p.Matches))
	targets := make(map[string]int, len(p.Matches))
	for _, m := range p.Matches {
		sources[m.Object.Key] = struct{}{}
		if m.Target != m.Object.Key {
			targets[m.Target]++
		}
	}

	for i, m := range p.Matches {
		out := s3types.RenameOutcome{Source: m.Object.Key, Target: m.Target, Size: m.Object.Size}
		if m.Target == m.Object.Key {
			out.Status = s3types.RenameSkipped
		} else if err := checkTarget(m, sources, targets); err != nil {
			out.Status = s3types.RenameFailed
			out.Err = err
		}
		r.Outcomes[i] = out
	}
	return r
}

func checkTarget(m plan.Match, sources map[string]struct{}, targets map[string]int) error {
	if err := validation.ValidateObjectKey(m.Target); err != nil {
		return err
	}
	if m.Object.Size > s3types.MaxCopySize {
		return &s3errors.SizeConstraintError{
			Rule:  "maximum single copy size",
			Limit: s3types.MaxCopySize,
			Keys:  []string{m.Object.Key},
		}
	}
	if n := targets[m.Target]; n > 1 {
		return fmt.Errorf("%w: %d objects resolve to %s", s3errors.ErrTargetConflict, n, m.Target)
	}
	if _, ok := sources[m.Target]; ok {
		return fmt.Errorf("%w: %s is also a source key", s3errors.ErrTargetConflict, m.Target)
	}
	return nil
}
