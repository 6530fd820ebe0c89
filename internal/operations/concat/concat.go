package concat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/storage"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// DefaultAbortTimeout bounds the abort call issued after a failure.
const DefaultAbortTimeout = 30 * time.Second

// Options configures an Orchestrator.
type Options struct {
	// Concurrency is the maximum number of part copies in flight.
	Concurrency int

	// AllowSingle permits a target with a single source.
	AllowSingle bool

	// Cleanup deletes the sources of every completed target.
	Cleanup bool

	// AbortTimeout bounds each abort call. Zero uses DefaultAbortTimeout.
	AbortTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Orchestrator runs concat plans against a storage client.
type Orchestrator struct {
	client       storage.Client
	pool         *pool.Pool
	logger       *slog.Logger
	metrics      *metrics.Metrics
	allowSingle  bool
	cleanup      bool
	abortTimeout time.Duration

	// afterCreate, when set, runs once the session exists. Tests use it to
	// observe sessions.
	afterCreate func(*Session)
}

// New creates an Orchestrator.
func New(client storage.Client, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	abortTimeout := opts.AbortTimeout
	if abortTimeout <= 0 {
		abortTimeout = DefaultAbortTimeout
	}
	return &Orchestrator{
		client:       client,
		pool:         pool.New(opts.Concurrency),
		logger:       logger,
		metrics:      opts.Metrics,
		allowSingle:  opts.AllowSingle,
		cleanup:      opts.Cleanup,
		abortTimeout: abortTimeout,
	}
}

// Preview validates p and describes each target without any store call.
func (o *Orchestrator) Preview(p *plan.Plan) ([]s3types.ConcatResult, error) {
	groups, err := Validate(p, o.allowSingle)
	if err != nil {
		return nil, err
	}

	results := make([]s3types.ConcatResult, len(groups))
	for i, g := range groups {
		results[i] = s3types.ConcatResult{
			Bucket:     p.Bucket,
			Target:     g.Target,
			Sources:    g.Keys(),
			TotalBytes: g.TotalSize(),
			Parts:      len(g.Matches),
			DryRun:     true,
		}
	}
	return results, nil
}

// Run validates every target before any session starts, then runs the
// sessions one after another. Results hold every completed target; the
// error joins every failure. A cleanup failure never undoes a completed
// target.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) ([]s3types.ConcatResult, error) {
	groups, err := Validate(p, o.allowSingle)
	if err != nil {
		return nil, err
	}

	var (
		results []s3types.ConcatResult
		errs    []error
	)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s not started: %w", s3errors.ErrCanceled, g.Target, err))
			break
		}

		result, err := o.runSession(ctx, p.Bucket, g)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, *result)

		if o.cleanup {
			if err := o.removeSources(ctx, p.Bucket, g.Keys()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return results, errors.Join(errs...)
}

func (o *Orchestrator) runSession(ctx context.Context, bucket string, g plan.Group) (*s3types.ConcatResult, error) {
	start := time.Now()

	o.logger.InfoContext(ctx, "starting concatenation",
		"bucket", bucket,
		"target", g.Target,
		"sources", len(g.Matches),
		"bytes", g.TotalSize(),
	)

	uploadID, err := o.client.CreateMultipartUpload(ctx, bucket, g.Target)
	if err != nil {
		o.metrics.ObserveSession(StateFailed.String())
		o.logger.ErrorContext(ctx, "failed to create multipart upload",
			"bucket", bucket,
			"target", g.Target,
			"error", err,
		)
		return nil, err
	}

	s := newSession(bucket, g.Target, uploadID, len(g.Matches))
	if o.afterCreate != nil {
		o.afterCreate(s)
	}
	o.logger.DebugContext(ctx, "multipart upload created",
		"target", g.Target,
		"upload_id", uploadID,
	)

	s.setState(StateCopying)
	err = o.pool.Go(ctx, len(g.Matches), func(ctx context.Context, i int) error {
		src := g.Matches[i].Object
		part, err := o.client.UploadPartCopy(ctx, bucket, g.Target, uploadID, int32(i+1), bucket, src.Key)
		if err != nil {
			return fmt.Errorf("copy %s as part %d: %w", src.Key, i+1, err)
		}
		part.PartNumber = int32(i + 1)
		part.Size = src.Size
		s.record(i, part)
		o.metrics.ObservePart(src.Size)

		o.logger.DebugContext(ctx, "copied part",
			"target", g.Target,
			"upload_id", uploadID,
			"part", i+1,
			"key", src.Key,
		)
		return nil
	})
	if err != nil {
		return nil, o.abort(ctx, s, err)
	}

	s.setState(StateCompleting)
	parts, err := s.Parts()
	if err != nil {
		return nil, o.abort(ctx, s, err)
	}
	etag, err := o.client.CompleteMultipartUpload(ctx, bucket, g.Target, uploadID, parts)
	if err != nil {
		return nil, o.abort(ctx, s, fmt.Errorf("complete: %w", err))
	}

	s.setState(StateCompleted)
	o.metrics.ObserveSession(StateCompleted.String())

	result := &s3types.ConcatResult{
		Bucket:     bucket,
		Target:     g.Target,
		Sources:    g.Keys(),
		ETag:       etag,
		TotalBytes: s.TotalBytes(),
		Parts:      len(parts),
		UploadID:   uploadID,
		Duration:   time.Since(start),
	}

	o.logger.InfoContext(ctx, "concatenation completed",
		"bucket", bucket,
		"target", g.Target,
		"upload_id", uploadID,
		"parts", result.Parts,
		"bytes", result.TotalBytes,
		"elapsed", result.Duration,
	)
	return result, nil
}

// abort releases the session's parts. It runs on a context detached from
// ctx so that cancellation still reaches the store.
func (o *Orchestrator) abort(ctx context.Context, s *Session, cause error) error {
	if !s.markAborted() {
		return cause
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.abortTimeout)
	defer cancel()

	abortErr := o.client.AbortMultipartUpload(actx, s.Bucket(), s.Key(), s.UploadID())
	if abortErr != nil {
		s.setState(StateFailed)
		o.metrics.ObserveSession(StateFailed.String())
		o.logger.ErrorContext(ctx, "failed to abort multipart upload, parts may remain",
			"bucket", s.Bucket(),
			"target", s.Key(),
			"upload_id", s.UploadID(),
			"error", abortErr,
		)
	} else {
		s.setState(StateAborted)
		o.metrics.ObserveSession(StateAborted.String())
		o.logger.WarnContext(ctx, "multipart upload aborted",
			"bucket", s.Bucket(),
			"target", s.Key(),
			"upload_id", s.UploadID(),
			"cause", cause,
		)
	}

	return &s3errors.AbortedUploadError{
		Bucket:   s.Bucket(),
		Key:      s.Key(),
		UploadID: s.UploadID(),
		Cause:    cause,
		AbortErr: abortErr,
	}
}

// removeSources deletes keys with multi-object delete requests of at most
// s3types.MaxDeleteKeys keys each, several batches in flight.
func (o *Orchestrator) removeSources(ctx context.Context, bucket string, keys []string) error {
	batches := slices.Collect(slices.Chunk(keys, s3types.MaxDeleteKeys))

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	fail := func(batch []string, err error) {
		mu.Lock()
		defer mu.Unlock()
		for _, key := range batch {
			failed[key] = err
		}
	}

	o.pool.Each(ctx, len(batches), func(ctx context.Context, i int) {
		batch := batches[i]
		keyErrs, err := o.client.DeleteObjects(ctx, bucket, batch)
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to remove sources",
				"bucket", bucket,
				"keys", len(batch),
				"error", err,
			)
			fail(batch, err)
			return
		}
		for key, keyErr := range keyErrs {
			o.logger.ErrorContext(ctx, "failed to remove source",
				"bucket", bucket,
				"key", key,
				"error", keyErr,
			)
			fail([]string{key}, keyErr)
		}
		o.logger.DebugContext(ctx, "removed sources",
			"bucket", bucket,
			"keys", len(batch)-len(keyErrs),
		)
	}, func(i int, err error) {
		fail(batches[i], err)
	})

	if len(failed) > 0 {
		return &s3errors.CleanupError{Bucket: bucket, Errors: failed}
	}
	return nil
}

// WritePreview prints a dry-run summary of each target.
func WritePreview(w io.Writer, results []s3types.ConcatResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "s3://%s/%s <- %d object(s), %s\n",
			r.Bucket, r.Target, r.Parts, plan.HumanSize(r.TotalBytes)); err != nil {
			return err
		}
		for i, src := range r.Sources {
			if _, err := fmt.Fprintf(w, "  part %d: %s\n", i+1, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// Summary returns a one-line description of a completed target.
func Summary(r s3types.ConcatResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "s3://%s/%s: %d part(s), %s", r.Bucket, r.Target, r.Parts, plan.HumanSize(r.TotalBytes))
	if r.ETag != "" {
		fmt.Fprintf(&b, ", etag %s", r.ETag)
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	}
	return b.String()
}
