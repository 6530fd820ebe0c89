package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{client: &MockS3Client{}}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithListObjectsV2 configures the ListObjectsV2 behavior.
func (b *MockBuilder) WithListObjectsV2(
	fn func(context.Context, *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error),
) *MockBuilder {
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return fn(ctx, params)
	}
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithCopyObject configures the CopyObject behavior.
func (b *MockBuilder) WithCopyObject(
	fn func(context.Context, *s3.CopyObjectInput) (*s3.CopyObjectOutput, error),
) *MockBuilder {
	b.client.CopyObjectFunc = func(ctx context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithDeleteObject configures the DeleteObject behavior.
func (b *MockBuilder) WithDeleteObject(
	fn func(context.Context, *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error),
) *MockBuilder {
	b.client.DeleteObjectFunc = func(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithDeleteObjects configures the DeleteObjects behavior.
func (b *MockBuilder) WithDeleteObjects(
	fn func(context.Context, *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error),
) *MockBuilder {
	b.client.DeleteObjectsFunc = func(ctx context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithPages configures ListObjectsV2 to return the given pages of keys in
// order, linked by continuation tokens "page-1", "page-2", and so on.
func (b *MockBuilder) WithPages(pages ...[]string) *MockBuilder {
	return b.WithListObjectsV2(func(_ context.Context, params *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
		idx := 0
		if params.ContinuationToken != nil {
			if _, err := fmt.Sscanf(*params.ContinuationToken, "page-%d", &idx); err != nil {
				return nil, fmt.Errorf("unexpected continuation token %q", *params.ContinuationToken)
			}
		}
		if idx >= len(pages) {
			return CreateListObjectsV2Output(nil, nil), nil
		}

		var next *string
		if idx+1 < len(pages) {
			next = StringPtr(fmt.Sprintf("page-%d", idx+1))
		}
		return CreateListObjectsV2Output(pages[idx], next), nil
	})
}

// MultipartRecorder captures the multipart calls made against a mock.
type MultipartRecorder struct {
	mu         sync.Mutex
	PartCopies []*s3.UploadPartCopyInput
	Completed  *s3.CompleteMultipartUploadInput
	Aborts     atomic.Int32
}

// Copies returns a snapshot of the recorded UploadPartCopy inputs.
func (r *MultipartRecorder) Copies() []*s3.UploadPartCopyInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*s3.UploadPartCopyInput(nil), r.PartCopies...)
}

// WithMultipartCopy configures the mock for multipart copy operations.
// Part etags are "etag-<partNumber>". If failPart is positive, copying that
// part number fails with an InternalError API error.
func (b *MockBuilder) WithMultipartCopy(uploadID string, failPart int32) (*MockBuilder, *MultipartRecorder) {
	rec := &MultipartRecorder{}

	b.client.CreateMultipartUploadFunc = func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return &s3.CreateMultipartUploadOutput{
			UploadId: StringPtr(uploadID),
			Bucket:   params.Bucket,
			Key:      params.Key,
		}, nil
	}

	b.client.UploadPartCopyFunc = func(_ context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		rec.mu.Lock()
		rec.PartCopies = append(rec.PartCopies, params)
		rec.mu.Unlock()

		if failPart > 0 && *params.PartNumber == failPart {
			return nil, &smithy.GenericAPIError{Code: "InternalError", Message: "injected failure"}
		}
		return CreateUploadPartCopyOutput(fmt.Sprintf("etag-%d", *params.PartNumber)), nil
	}

	b.client.CompleteMultipartUploadFunc = func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		rec.mu.Lock()
		rec.Completed = params
		rec.mu.Unlock()
		return &s3.CompleteMultipartUploadOutput{
			ETag:   StringPtr(`"multipart-etag"`),
			Bucket: params.Bucket,
			Key:    params.Key,
		}, nil
	}

	b.client.AbortMultipartUploadFunc = func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		rec.Aborts.Add(1)
		return &s3.AbortMultipartUploadOutput{}, nil
	}

	return b, rec
}

// WithAPIError configures every operation to fail with the given API error code.
func (b *MockBuilder) WithAPIError(code string) *MockBuilder {
	apiErr := &smithy.GenericAPIError{Code: code, Message: code}

	b.client.ListObjectsV2Func = func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return nil, apiErr
	}
	b.client.HeadObjectFunc = func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, apiErr
	}
	b.client.CopyObjectFunc = func(context.Context, *s3.CopyObjectInput, ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return nil, apiErr
	}
	b.client.DeleteObjectFunc = func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return nil, apiErr
	}
	b.client.DeleteObjectsFunc = func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
		return nil, apiErr
	}
	b.client.CreateMultipartUploadFunc = func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return nil, apiErr
	}
	b.client.UploadPartCopyFunc = func(context.Context, *s3.UploadPartCopyInput, ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		return nil, apiErr
	}
	b.client.CompleteMultipartUploadFunc = func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		return nil, apiErr
	}
	b.client.AbortMultipartUploadFunc = func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		return nil, apiErr
	}
	return b
}
