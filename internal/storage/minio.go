package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// MinIOConfig configures the MinIO backend.
type MinIOConfig struct {
	// Endpoint is host[:port], optionally with an http:// or https:// scheme.
	Endpoint string

	// Region is sent with every request. Optional for MinIO.
	Region string

	// AccessKeyID and SecretAccessKey set static credentials. When empty,
	// credentials come from the AWS_* or MINIO_* environment variables or
	// the shared AWS credentials file.
	AccessKeyID     string
	SecretAccessKey string

	// DisableSSL uses plain HTTP. A scheme in Endpoint takes precedence.
	DisableSSL bool

	// PageSize is the number of keys per listing page.
	PageSize int
}

// MinIO implements Client on top of minio-go. Multipart calls go through
// minio.Core, which exposes the raw S3 multipart API.
type MinIO struct {
	client   *minio.Client
	core     *minio.Core
	pageSize int
}

// NewMinIO creates a MinIO backend.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	endpoint, secure := splitEndpoint(cfg.Endpoint, !cfg.DisableSSL)
	if endpoint == "" {
		return nil, errors.New("minio backend requires an endpoint")
	}

	var creds *miniocreds.Credentials
	if cfg.AccessKeyID != "" {
		creds = miniocreds.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = miniocreds.NewChainCredentials([]miniocreds.Provider{
			&miniocreds.EnvAWS{},
			&miniocreds.EnvMinio{},
			&miniocreds.FileAWSCredentials{},
		})
	}

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return NewMinIOWithCore(core, cfg.PageSize), nil
}

// NewMinIOWithCore wraps an existing minio.Core.
func NewMinIOWithCore(core *minio.Core, pageSize int) *MinIO {
	if pageSize <= 0 {
		pageSize = int(DefaultPageSize)
	}
	return &MinIO{client: core.Client, core: core, pageSize: pageSize}
}

// ListObjects implements Client with one ListObjectsV2 request per page.
// The continuation token is the one the server returned.
func (m *MinIO) ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	// minio.Core issues the request without a context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := m.core.ListObjectsV2(bucket, prefix, "", token, "", m.pageSize)
	if err != nil {
		return nil, classify("ListObjectsV2", bucket, prefix, minioError(err))
	}

	page := &Page{Objects: make([]s3types.ObjectMetadata, 0, len(res.Contents))}
	for _, obj := range res.Contents {
		page.Objects = append(page.Objects, s3types.ObjectMetadata{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, `"`),
			LastModified: obj.LastModified,
		})
	}
	if res.IsTruncated {
		page.NextToken = res.NextContinuationToken
	}
	return page, nil
}

// HeadObject implements Client.
func (m *MinIO) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, classify("HeadObject", bucket, key, minioError(err))
	}
	return &s3types.ObjectMetadata{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// CopyObject implements Client.
func (m *MinIO) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	info, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return "", classify("CopyObject", srcBucket, srcKey, minioError(err))
	}
	return info.ETag, nil
}

// CreateMultipartUpload implements Client.
func (m *MinIO) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	uploadID, err := m.core.NewMultipartUpload(ctx, bucket, key, minio.PutObjectOptions{})
	if err != nil {
		return "", classify("CreateMultipartUpload", bucket, key, minioError(err))
	}
	return uploadID, nil
}

// UploadPartCopy implements Client. The whole source object is copied.
func (m *MinIO) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	part, err := m.core.CopyObjectPart(ctx, srcBucket, srcKey, bucket, key, uploadID,
		int(partNumber), 0, -1, nil)
	if err != nil {
		return s3types.CompletedPart{}, classify("UploadPartCopy", srcBucket, srcKey, minioError(err))
	}
	return s3types.CompletedPart{PartNumber: partNumber, ETag: part.ETag}, nil
}

// CompleteMultipartUpload implements Client.
func (m *MinIO) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	completed := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completed[i] = minio.CompletePart{PartNumber: int(p.PartNumber), ETag: p.ETag}
	}

	info, err := m.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", classify("CompleteMultipartUpload", bucket, key, minioError(err))
	}
	return info.ETag, nil
}

// AbortMultipartUpload implements Client.
func (m *MinIO) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	err := m.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
	return classify("AbortMultipartUpload", bucket, key, minioError(err))
}

// DeleteObject implements Client.
func (m *MinIO) DeleteObject(ctx context.Context, bucket, key string) error {
	err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	return classify("DeleteObject", bucket, key, minioError(err))
}

// DeleteObjects implements Client through RemoveObjects, which sends one
// multi-object delete request per thousand keys.
func (m *MinIO) DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var failed map[string]error
	for rErr := range m.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		if rErr.ObjectName == "" {
			return nil, classify("DeleteObjects", bucket, "", minioError(rErr.Err))
		}
		if failed == nil {
			failed = make(map[string]error)
		}
		failed[rErr.ObjectName] = classify("DeleteObjects", bucket, rErr.ObjectName, minioError(rErr.Err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return failed, nil
}

// minioError converts a MinIO error response into a smithy.APIError so that
// classification treats both backends alike. The original error is kept.
func minioError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return err
	}
	return errors.Join(&smithy.GenericAPIError{Code: resp.Code, Message: resp.Message}, err)
}

func splitEndpoint(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(endpoint, "/"), secure
	}
}

var _ Client = (*MinIO)(nil)
