package list

import (
	"context"
	"iter"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/storage"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Lister enumerates object metadata under a bucket prefix.
// Transient page failures are retried by the storage client it wraps.
type Lister struct {
	client storage.ObjectLister
	logger *slog.Logger
}

// New creates a Lister. A nil logger uses slog.Default().
func New(client storage.ObjectLister, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lister{client: client, logger: logger}
}

// Paginator returns a paginator positioned at the first page.
func (l *Lister) Paginator(bucket, prefix string) *Paginator {
	return &Paginator{client: l.client, bucket: bucket, prefix: prefix, firstPage: true}
}

// All returns every object under prefix in key order. Each range over the
// sequence starts a fresh listing. An error is yielded once and ends the
// sequence.
func (l *Lister) All(ctx context.Context, bucket, prefix string) iter.Seq2[s3types.ObjectMetadata, error] {
	return func(yield func(s3types.ObjectMetadata, error) bool) {
		p := l.Paginator(bucket, prefix)
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				l.logger.ErrorContext(ctx, "listing failed",
					"bucket", bucket,
					"prefix", prefix,
					"page", p.Pages(),
					"error", err,
				)
				yield(s3types.ObjectMetadata{}, err)
				return
			}
			l.logger.DebugContext(ctx, "listed page",
				"bucket", bucket,
				"prefix", prefix,
				"page", p.Pages(),
				"objects", len(page.Objects),
			)
			for _, obj := range page.Objects {
				if !yield(obj, nil) {
					return
				}
			}
		}
	}
}

// Collect drains All into a slice.
func (l *Lister) Collect(ctx context.Context, bucket, prefix string) ([]s3types.ObjectMetadata, error) {
	var objs []s3types.ObjectMetadata
	for obj, err := range l.All(ctx, bucket, prefix) {
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// Paginator handles pagination over continuation tokens.
type Paginator struct {
	client    storage.ObjectLister
	bucket    string
	prefix    string
	token     string
	firstPage bool
	pages     int
}

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.firstPage || p.token != ""
}

// Pages returns the number of pages fetched so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// NextPage fetches the next page of results.
func (p *Paginator) NextPage(ctx context.Context) (*storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := p.client.ListObjects(ctx, p.bucket, p.prefix, p.token)
	if err != nil {
		return nil, err
	}

	p.firstPage = false
	p.pages++
	p.token = page.NextToken
	return page, nil
}
