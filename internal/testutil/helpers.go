package testutil

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// MiB is one mebibyte.
const MiB = 1024 * 1024

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return &i
}

// Int32Ptr returns a pointer to the given int32.
func Int32Ptr(i int32) *int32 {
	return &i
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}

// TimePtr returns a pointer to the given time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// GenerateRandomData generates random data of the specified size.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	_, _ = rand.Read(data)
	return data
}

// CalculateETag returns the quoted MD5 etag S3 assigns to a single-part object.
func CalculateETag(data []byte) string {
	sum := md5.Sum(data)
	return fmt.Sprintf("%q", hex.EncodeToString(sum[:]))
}

// CreateTestObject creates a listing entry for tests.
func CreateTestObject(key string, size int64, lastModified time.Time) types.Object {
	return types.Object{
		Key:          StringPtr(key),
		Size:         Int64Ptr(size),
		LastModified: TimePtr(lastModified),
		ETag:         StringPtr(`"test-etag"`),
		StorageClass: types.ObjectStorageClassStandard,
	}
}

// CreateListObjectsV2Output builds a listing page. Each key gets a 1 MiB size.
// A non-nil next token marks the page as truncated.
func CreateListObjectsV2Output(keys []string, next *string) *s3.ListObjectsV2Output {
	contents := make([]types.Object, len(keys))
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range keys {
		contents[i] = CreateTestObject(key, MiB, modified)
	}
	return &s3.ListObjectsV2Output{
		Contents:              contents,
		KeyCount:              Int32Ptr(int32(len(keys))),
		IsTruncated:           BoolPtr(next != nil),
		NextContinuationToken: next,
	}
}

// CreateHeadObjectOutput creates a HeadObject response for tests.
func CreateHeadObjectOutput(size int64, lastModified time.Time, etag string) *s3.HeadObjectOutput {
	return &s3.HeadObjectOutput{
		ContentLength: Int64Ptr(size),
		LastModified:  TimePtr(lastModified),
		ETag:          StringPtr(etag),
	}
}

// CreateUploadPartCopyOutput creates an UploadPartCopy response for tests.
func CreateUploadPartCopyOutput(etag string) *s3.UploadPartCopyOutput {
	return &s3.UploadPartCopyOutput{
		CopyPartResult: &types.CopyPartResult{ETag: StringPtr(etag)},
	}
}

// Objects builds metadata for the given keys, all with the same size.
func Objects(size int64, keys ...string) []s3types.ObjectMetadata {
	objs := make([]s3types.ObjectMetadata, len(keys))
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range keys {
		objs[i] = s3types.ObjectMetadata{Key: key, Size: size, ETag: `"etag"`, LastModified: modified}
	}
	return objs
}
