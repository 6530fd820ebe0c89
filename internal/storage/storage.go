// Package storage defines the StorageClient used by every s3utils operation
// and its implementations.
//
// Backends (AWS, MinIO) translate calls to their SDK and normalize errors
// into the s3utils error taxonomy. Decorators add retry with backoff,
// request rate limiting and metrics on top of any backend:
//
//	client := storage.NewRetrying(
//	    storage.NewLimited(
//	        storage.NewInstrumented(backend, m),
//	        limiter),
//	    retry.DefaultConfig(), logger, m)
package storage

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Page is one page of a listing.
type Page struct {
	// Objects are the objects on this page, in key order.
	Objects []s3types.ObjectMetadata

	// NextToken continues the listing. Empty when this is the last page.
	NextToken string
}

// ObjectLister lists objects one page at a time.
type ObjectLister interface {
	// ListObjects returns the page of objects under prefix that follows token.
	// An empty token starts from the beginning.
	ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error)
}

// Client is the set of store primitives consumed by the list, concat and
// rename operations. Implementations must be safe for concurrent use.
type Client interface {
	ObjectLister

	// HeadObject returns metadata for a single object.
	HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error)

	// CopyObject copies srcBucket/srcKey to dstBucket/dstKey server-side and
	// returns the new object's etag.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error)

	// CreateMultipartUpload starts a multipart upload for bucket/key and
	// returns its upload id.
	CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error)

	// UploadPartCopy copies the whole of srcBucket/srcKey into part
	// partNumber of the upload. The returned part carries the part number
	// and etag; Size is left to the caller, which knows the source size.
	UploadPartCopy(
		ctx context.Context,
		bucket, key, uploadID string,
		partNumber int32,
		srcBucket, srcKey string,
	) (s3types.CompletedPart, error)

	// CompleteMultipartUpload stitches parts, which must be sorted by part
	// number, into the final object and returns its etag.
	CompleteMultipartUpload(
		ctx context.Context,
		bucket, key, uploadID string,
		parts []s3types.CompletedPart,
	) (string, error)

	// AbortMultipartUpload discards the upload and every part copied into it.
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	// DeleteObject deletes a single object.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects deletes up to s3types.MaxDeleteKeys objects in one
	// request. The map holds the keys that could not be deleted; the error
	// is set when the request as a whole failed.
	DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error)
}
