package storage

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// DefaultPageSize is the number of keys requested per listing page.
const DefaultPageSize int32 = 1000

// AWS implements Client on top of the AWS SDK S3 API.
type AWS struct {
	api      s3api.S3API
	pageSize int32
}

// NewAWS creates an AWS backend. A pageSize of zero uses DefaultPageSize.
func NewAWS(api s3api.S3API, pageSize int32) *AWS {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AWS{api: api, pageSize: pageSize}
}

// ListObjects implements Client.
func (a *AWS) ListObjects(ctx context.Context, bucket, prefix, token string) (*Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(a.pageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	out, err := a.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, classify("ListObjectsV2", bucket, prefix, err)
	}

	page := &Page{Objects: make([]s3types.ObjectMetadata, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, s3types.ObjectMetadata{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         aws.ToString(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

// HeadObject implements Client.
func (a *AWS) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	out, err := a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("HeadObject", bucket, key, err)
	}

	return &s3types.ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// CopyObject implements Client.
func (a *AWS) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	out, err := a.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return "", classify("CopyObject", srcBucket, srcKey, err)
	}

	if out.CopyObjectResult == nil {
		return "", nil
	}
	return aws.ToString(out.CopyObjectResult.ETag), nil
}

// CreateMultipartUpload implements Client.
func (a *AWS) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	out, err := a.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classify("CreateMultipartUpload", bucket, key, err)
	}
	return aws.ToString(out.UploadId), nil
}

// UploadPartCopy implements Client.
func (a *AWS) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	out, err := a.api.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return s3types.CompletedPart{}, classify("UploadPartCopy", srcBucket, srcKey, err)
	}

	part := s3types.CompletedPart{PartNumber: partNumber}
	if out.CopyPartResult != nil {
		part.ETag = aws.ToString(out.CopyPartResult.ETag)
	}
	return part, nil
}

// CompleteMultipartUpload implements Client.
func (a *AWS) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	out, err := a.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return "", classify("CompleteMultipartUpload", bucket, key, err)
	}
	return aws.ToString(out.ETag), nil
}

// AbortMultipartUpload implements Client.
func (a *AWS) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := a.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	return classify("AbortMultipartUpload", bucket, key, err)
}

// DeleteObject implements Client.
func (a *AWS) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := a.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return classify("DeleteObject", bucket, key, err)
}

// DeleteObjects implements Client. Quiet mode is used, so only failures
// come back.
func (a *AWS) DeleteObjects(ctx context.Context, bucket string, keys []string) (map[string]error, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ids := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}

	out, err := a.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return nil, classify("DeleteObjects", bucket, "", err)
	}

	var failed map[string]error
	for _, e := range out.Errors {
		if failed == nil {
			failed = make(map[string]error, len(out.Errors))
		}
		key := aws.ToString(e.Key)
		failed[key] = classify("DeleteObjects", bucket, key, &smithy.GenericAPIError{
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}
	return failed, nil
}

// copySource builds the x-amz-copy-source value: bucket and URL-encoded key.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

var _ Client = (*AWS)(nil)
