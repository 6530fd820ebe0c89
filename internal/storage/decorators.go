package storage

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Retrying retries transient errors with exponential backoff.
// Permission, not-found and validation errors are returned immediately.
type Retrying struct {
	next    Client
	cfg     retry.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRetrying wraps next. cfg.Retryable and cfg.OnRetry are replaced.
func NewRetrying(next Client, cfg retry.Config, logger *slog.Logger, m *metrics.Metrics) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, cfg: cfg, logger: logger, metrics: m}
}

func (r *Retrying) policy(ctx context.Context, op string) retry.Config {
	cfg := r.cfg
	cfg.Retryable = s3errors.IsTransient
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.metrics.ObserveRetry(op)
		r.logger.WarnContext(ctx, "retrying storage call",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	}
	return cfg
}

func withRetry[T any](ctx context.Context, r *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoWithResult(ctx, r.policy(ctx, op), fn)
}

// ListObjects implements Client.
func (r *Retrying) ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	return withRetry(ctx, r, "ListObjectsV2", func(ctx context.Context) (*Page, error) {
		return r.next.ListObjects(ctx, bucket, prefix, token)
	})
}

// HeadObject implements Client.
func (r *Retrying) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	return withRetry(ctx, r, "HeadObject", func(ctx context.Context) (*s3types.ObjectMetadata, error) {
		return r.next.HeadObject(ctx, bucket, key)
	})
}

// CopyObject implements Client.
func (r *Retrying) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	return withRetry(ctx, r, "CopyObject", func(ctx context.Context) (string, error) {
		return r.next.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
	})
}

// CreateMultipartUpload implements Client.
func (r *Retrying) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	return withRetry(ctx, r, "CreateMultipartUpload", func(ctx context.Context) (string, error) {
		return r.next.CreateMultipartUpload(ctx, bucket, key)
	})
}

// UploadPartCopy implements Client.
func (r *Retrying) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	return withRetry(ctx, r, "UploadPartCopy", func(ctx context.Context) (s3types.CompletedPart, error) {
		return r.next.UploadPartCopy(ctx, bucket, key, uploadID, partNumber, srcBucket, srcKey)
	})
}

// CompleteMultipartUpload implements Client.
func (r *Retrying) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	var interrupted bool
	return withRetry(ctx, r, "CompleteMultipartUpload", func(ctx context.Context) (string, error) {
		etag, err := r.next.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
		if err == nil {
			return etag, nil
		}
		// A transient failure may hide a completion whose response was lost,
		// after which the upload id is gone.
		if interrupted && errors.Is(err, s3errors.ErrUploadNotFound) {
			if obj, headErr := r.next.HeadObject(ctx, bucket, key); headErr == nil && completedFrom(obj, parts) {
				r.logger.InfoContext(ctx, "multipart upload completed by an earlier attempt",
					"bucket", bucket,
					"key", key,
					"upload_id", uploadID,
				)
				return obj.ETag, nil
			}
			return "", err
		}
		interrupted = s3errors.IsTransient(err)
		return "", err
	})
}

// completedFrom reports whether obj looks like the result of completing
// parts: a multipart ETag with the same part count and the summed size.
func completedFrom(obj *s3types.ObjectMetadata, parts []s3types.CompletedPart) bool {
	var size int64
	for _, p := range parts {
		size += p.Size
	}
	etag := strings.Trim(obj.ETag, `"`)
	return obj.Size == size && strings.HasSuffix(etag, "-"+strconv.Itoa(len(parts)))
}

// AbortMultipartUpload implements Client.
func (r *Retrying) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return retry.Do(ctx, r.policy(ctx, "AbortMultipartUpload"), func(ctx context.Context) error {
		return r.next.AbortMultipartUpload(ctx, bucket, key, uploadID)
	})
}

// DeleteObject implements Client.
func (r *Retrying) DeleteObject(ctx context.Context, bucket, key string) error {
	return retry.Do(ctx, r.policy(ctx, "DeleteObject"), func(ctx context.Context) error {
		return r.next.DeleteObject(ctx, bucket, key)
	})
}

// DeleteObjects implements Client.
func (r *Retrying) DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error) {
	return withRetry(ctx, r, "DeleteObjects", func(ctx context.Context) (map[string]error, error) {
		return r.next.DeleteObjects(ctx, bucket, keys)
	})
}

// Limited waits on a token bucket before every call.
type Limited struct {
	next    Client
	limiter *rate.Limiter
}

// NewLimited wraps next. A nil limiter disables limiting.
func NewLimited(next Client, limiter *rate.Limiter) *Limited {
	return &Limited{next: next, limiter: limiter}
}

func (l *Limited) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// ListObjects implements Client.
func (l *Limited) ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.ListObjects(ctx, bucket, prefix, token)
}

// HeadObject implements Client.
func (l *Limited) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.HeadObject(ctx, bucket, key)
}

// CopyObject implements Client.
func (l *Limited) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.next.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
}

// CreateMultipartUpload implements Client.
func (l *Limited) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.next.CreateMultipartUpload(ctx, bucket, key)
}

// UploadPartCopy implements Client.
func (l *Limited) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	if err := l.wait(ctx); err != nil {
		return s3types.CompletedPart{}, err
	}
	return l.next.UploadPartCopy(ctx, bucket, key, uploadID, partNumber, srcBucket, srcKey)
}

// CompleteMultipartUpload implements Client.
func (l *Limited) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.next.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
}

// AbortMultipartUpload implements Client.
func (l *Limited) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.next.AbortMultipartUpload(ctx, bucket, key, uploadID)
}

// DeleteObject implements Client.
func (l *Limited) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.next.DeleteObject(ctx, bucket, key)
}

// DeleteObjects implements Client.
func (l *Limited) DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.DeleteObjects(ctx, bucket, keys)
}

// Instrumented records the count, outcome and latency of every call.
type Instrumented struct {
	next    Client
	metrics *metrics.Metrics
}

// NewInstrumented wraps next.
func NewInstrumented(next Client, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func observe[T any](i *Instrumented, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	i.metrics.ObserveRequest(op, time.Since(start), err)
	return v, err
}

// ListObjects implements Client.
func (i *Instrumented) ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	page, err := observe(i, "ListObjectsV2", func() (*Page, error) {
		return i.next.ListObjects(ctx, bucket, prefix, token)
	})
	if err == nil {
		i.metrics.ObserveScanned(len(page.Objects))
	}
	return page, err
}

// HeadObject implements Client.
func (i *Instrumented) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	return observe(i, "HeadObject", func() (*s3types.ObjectMetadata, error) {
		return i.next.HeadObject(ctx, bucket, key)
	})
}

// CopyObject implements Client.
func (i *Instrumented) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	return observe(i, "CopyObject", func() (string, error) {
		return i.next.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
	})
}

// CreateMultipartUpload implements Client.
func (i *Instrumented) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	return observe(i, "CreateMultipartUpload", func() (string, error) {
		return i.next.CreateMultipartUpload(ctx, bucket, key)
	})
}

// UploadPartCopy implements Client.
func (i *Instrumented) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	return observe(i, "UploadPartCopy", func() (s3types.CompletedPart, error) {
		return i.next.UploadPartCopy(ctx, bucket, key, uploadID, partNumber, srcBucket, srcKey)
	})
}

// CompleteMultipartUpload implements Client.
func (i *Instrumented) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	return observe(i, "CompleteMultipartUpload", func() (string, error) {
		return i.next.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
	})
}

// AbortMultipartUpload implements Client.
func (i *Instrumented) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := observe(i, "AbortMultipartUpload", func() (struct{}, error) {
		return struct{}{}, i.next.AbortMultipartUpload(ctx, bucket, key, uploadID)
	})
	return err
}

// DeleteObject implements Client.
func (i *Instrumented) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := observe(i, "DeleteObject", func() (struct{}, error) {
		return struct{}{}, i.next.DeleteObject(ctx, bucket, key)
	})
	return err
}

// DeleteObjects implements Client.
func (i *Instrumented) DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error) {
	return observe(i, "DeleteObjects", func() (map[string]error, error) {
		return i.next.DeleteObjects(ctx, bucket, keys)
	})
}

var (
	_ Client = (*Retrying)(nil)
	_ Client = (*Limited)(nil)
	_ Client = (*Instrumented)(nil)
)
