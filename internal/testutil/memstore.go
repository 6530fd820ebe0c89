package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/storage"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// MemStore is an in-memory storage.Client with S3 multipart semantics.
//
// Objects may carry real bytes (Put) or only a size (PutSized) so that size
// limits can be exercised without allocating gigabytes. Every call is
// counted, and the Fail* hooks inject errors per call.
type MemStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]*memObject
	uploads map[string]*memUpload
	nextID  int
	calls   map[string]int
	aborted map[string]int

	// PageSize is the listing page size. Zero means 1000.
	PageSize int

	// Now stamps LastModified on written objects.
	Now func() time.Time

	// FailPartCopy, when set, is consulted before each UploadPartCopy.
	FailPartCopy func(ctx context.Context, partNumber int32, srcKey string) error

	// FailCopy, when set, is consulted before each CopyObject.
	FailCopy func(srcKey, dstKey string) error

	// FailDelete, when set, is consulted before each DeleteObject and for
	// every key of a DeleteObjects request.
	FailDelete func(key string) error

	// FailDeleteBatch, when set, is consulted before each DeleteObjects
	// request; an error fails the whole request.
	FailDeleteBatch func(keys []string) error

	// FailComplete, when set, is consulted before CompleteMultipartUpload.
	FailComplete func(key string) error

	// FailAbort, when set, is consulted before AbortMultipartUpload.
	FailAbort func(uploadID string) error

	// FailList, when set, is consulted before each ListObjects page.
	FailList func(token string) error
}

type memObject struct {
	data     []byte
	size     int64
	etag     string
	modified time.Time
}

type memUpload struct {
	bucket string
	key    string
	parts  map[int32]*memObject
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets: make(map[string]map[string]*memObject),
		uploads: make(map[string]*memUpload),
		calls:   make(map[string]int),
		aborted: make(map[string]int),
		Now:     func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

// CreateBucket creates an empty bucket.
func (m *MemStore) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(bucket)
}

// Put stores an object with content.
func (m *MemStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(bucket)[key] = &memObject{
		data:     bytes.Clone(data),
		size:     int64(len(data)),
		etag:     etagOf(data),
		modified: m.Now(),
	}
}

// PutSized stores an object that has a size but no content.
func (m *MemStore) PutSized(bucket, key string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(bucket)[key] = &memObject{
		size:     size,
		etag:     fmt.Sprintf(`"sized-%s-%d"`, key, size),
		modified: m.Now(),
	}
}

// PutAt stores an object with content and an explicit modification time.
func (m *MemStore) PutAt(bucket, key string, data []byte, modified time.Time) {
	m.Put(bucket, key, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket][key].modified = modified
}

// Get returns an object's content.
func (m *MemStore) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

// Size returns an object's size.
func (m *MemStore) Size(bucket, key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return 0, false
	}
	return obj.size, true
}

// Keys returns the sorted keys in a bucket.
func (m *MemStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeys(bucket, "")
}

// Calls returns how many times op was invoked.
func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// MutatingCalls returns the number of calls other than listing and head.
func (m *MemStore) MutatingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for op, c := range m.calls {
		if op != "ListObjects" && op != "HeadObject" {
			n += c
		}
	}
	return n
}

// TotalCalls returns the number of calls of any kind.
func (m *MemStore) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// OpenUploads returns the number of multipart uploads neither completed nor aborted.
func (m *MemStore) OpenUploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// PartsFor returns the number of parts held by an open upload.
func (m *MemStore) PartsFor(uploadID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if up, ok := m.uploads[uploadID]; ok {
		return len(up.parts)
	}
	return 0
}

// AbortCount returns how many times uploadID was aborted.
func (m *MemStore) AbortCount(uploadID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted[uploadID]
}

// ListObjects implements storage.Client. The token is the last key returned.
func (m *MemStore) ListObjects(_ context.Context, bucket, prefix, token string) (*storage.Page, error) {
	m.record("ListObjects")
	if m.FailList != nil {
		if err := m.FailList(token); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[bucket]; !ok {
		return nil, s3errors.NewError("ListObjectsV2", s3errors.ErrBucketNotFound).WithBucket(bucket)
	}

	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	page := &storage.Page{}
	for _, key := range m.sortedKeys(bucket, prefix) {
		if token != "" && key <= token {
			continue
		}
		if len(page.Objects) == pageSize {
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			break
		}
		obj := m.buckets[bucket][key]
		page.Objects = append(page.Objects, s3types.ObjectMetadata{
			Key:          key,
			Size:         obj.size,
			ETag:         obj.etag,
			LastModified: obj.modified,
		})
	}
	return page, nil
}

// HeadObject implements storage.Client.
func (m *MemStore) HeadObject(_ context.Context, bucket, key string) (*s3types.ObjectMetadata, error) {
	m.record("HeadObject")
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.lookup("HeadObject", bucket, key)
	if err != nil {
		return nil, err
	}
	return &s3types.ObjectMetadata{Key: key, Size: obj.size, ETag: obj.etag, LastModified: obj.modified}, nil
}

// CopyObject implements storage.Client.
func (m *MemStore) CopyObject(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) (string, error) {
	m.record("CopyObject")
	if m.FailCopy != nil {
		if err := m.FailCopy(srcKey, dstKey); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.lookup("CopyObject", srcBucket, srcKey)
	if err != nil {
		return "", err
	}
	if src.size > s3types.MaxCopySize {
		return "", s3errors.NewObjectError("CopyObject", srcBucket, srcKey, s3errors.ErrInvalidInput).
			WithMessage("EntityTooLarge")
	}
	if _, ok := m.buckets[dstBucket]; !ok {
		return "", s3errors.NewError("CopyObject", s3errors.ErrBucketNotFound).WithBucket(dstBucket)
	}

	cp := *src
	cp.data = bytes.Clone(src.data)
	cp.modified = m.Now()
	m.buckets[dstBucket][dstKey] = &cp
	return cp.etag, nil
}

// CreateMultipartUpload implements storage.Client.
func (m *MemStore) CreateMultipartUpload(_ context.Context, bucket, key string) (string, error) {
	m.record("CreateMultipartUpload")
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[bucket]; !ok {
		return "", s3errors.NewError("CreateMultipartUpload", s3errors.ErrBucketNotFound).WithBucket(bucket)
	}
	m.nextID++
	id := fmt.Sprintf("upload-%d", m.nextID)
	m.uploads[id] = &memUpload{bucket: bucket, key: key, parts: make(map[int32]*memObject)}
	return id, nil
}

// UploadPartCopy implements storage.Client.
func (m *MemStore) UploadPartCopy(
	ctx context.Context,
	bucket, key, uploadID string,
	partNumber int32,
	srcBucket, srcKey string,
) (s3types.CompletedPart, error) {
	m.record("UploadPartCopy")
	if m.FailPartCopy != nil {
		if err := m.FailPartCopy(ctx, partNumber, srcKey); err != nil {
			return s3types.CompletedPart{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return s3types.CompletedPart{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return s3types.CompletedPart{}, s3errors.NewObjectError("UploadPartCopy", bucket, key, s3errors.ErrUploadNotFound)
	}
	if partNumber < 1 || partNumber > s3types.MaxParts {
		return s3types.CompletedPart{}, s3errors.NewObjectError("UploadPartCopy", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("part number out of range")
	}
	src, err := m.lookup("UploadPartCopy", srcBucket, srcKey)
	if err != nil {
		return s3types.CompletedPart{}, err
	}
	if src.size > s3types.MaxCopySize {
		return s3types.CompletedPart{}, s3errors.NewObjectError("UploadPartCopy", srcBucket, srcKey, s3errors.ErrInvalidInput).
			WithMessage("EntityTooLarge")
	}

	part := &memObject{
		data: bytes.Clone(src.data),
		size: src.size,
		etag: fmt.Sprintf(`"part-%d-%s"`, partNumber, strings.Trim(src.etag, `"`)),
	}
	up.parts[partNumber] = part
	return s3types.CompletedPart{PartNumber: partNumber, ETag: part.etag}, nil
}

// CompleteMultipartUpload implements storage.Client. Like S3 it rejects
// unsorted part lists, unknown parts, mismatched etags and non-final parts
// below the minimum part size.
func (m *MemStore) CompleteMultipartUpload(
	_ context.Context,
	bucket, key, uploadID string,
	parts []s3types.CompletedPart,
) (string, error) {
	m.record("CompleteMultipartUpload")
	if m.FailComplete != nil {
		if err := m.FailComplete(key); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok || up.bucket != bucket || up.key != key {
		return "", s3errors.NewObjectError("CompleteMultipartUpload", bucket, key, s3errors.ErrUploadNotFound)
	}
	if len(parts) == 0 {
		return "", s3errors.NewObjectError("CompleteMultipartUpload", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("no parts")
	}

	var (
		data     []byte
		size     int64
		hasBytes = true
	)
	for i, p := range parts {
		if i > 0 && p.PartNumber <= parts[i-1].PartNumber {
			return "", s3errors.NewObjectError("CompleteMultipartUpload", bucket, key, s3errors.ErrInvalidInput).
				WithMessage("InvalidPartOrder")
		}
		stored, ok := up.parts[p.PartNumber]
		if !ok || stored.etag != p.ETag {
			return "", s3errors.NewObjectError("CompleteMultipartUpload", bucket, key, s3errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("InvalidPart %d", p.PartNumber))
		}
		if i < len(parts)-1 && stored.size < s3types.MinPartSize {
			return "", s3errors.NewObjectError("CompleteMultipartUpload", bucket, key, s3errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("EntityTooSmall part %d", p.PartNumber))
		}
		size += stored.size
		if stored.data == nil && stored.size > 0 {
			hasBytes = false
		}
		if hasBytes {
			data = append(data, stored.data...)
		}
	}
	if !hasBytes {
		data = nil
	}

	etag := fmt.Sprintf(`"%s-%d"`, strings.Trim(etagOf(data), `"`), len(parts))
	m.bucket(bucket)[key] = &memObject{data: data, size: size, etag: etag, modified: m.Now()}
	delete(m.uploads, uploadID)
	return etag, nil
}

// AbortMultipartUpload implements storage.Client.
func (m *MemStore) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	m.record("AbortMultipartUpload")
	if m.FailAbort != nil {
		if err := m.FailAbort(uploadID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.aborted[uploadID]++
	if _, ok := m.uploads[uploadID]; !ok {
		return s3errors.NewObjectError("AbortMultipartUpload", bucket, key, s3errors.ErrUploadNotFound)
	}
	delete(m.uploads, uploadID)
	return nil
}

// DeleteObject implements storage.Client. Deleting a missing key succeeds.
func (m *MemStore) DeleteObject(_ context.Context, bucket, key string) error {
	m.record("DeleteObject")
	if m.FailDelete != nil {
		if err := m.FailDelete(key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

// DeleteObjects implements storage.Client with multi-object delete limits.
func (m *MemStore) DeleteObjects(_ context.Context, bucket string, keys []string) (map[string]error, error) {
	m.record("DeleteObjects")
	if len(keys) > s3types.MaxDeleteKeys {
		return nil, s3errors.NewError("DeleteObjects", s3errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage(fmt.Sprintf("%d keys exceed the limit of %d", len(keys), s3types.MaxDeleteKeys))
	}
	if m.FailDeleteBatch != nil {
		if err := m.FailDeleteBatch(keys); err != nil {
			return nil, err
		}
	}

	var failed map[string]error
	for _, key := range keys {
		if m.FailDelete != nil {
			if err := m.FailDelete(key); err != nil {
				if failed == nil {
					failed = make(map[string]error)
				}
				failed[key] = err
				continue
			}
		}
		m.mu.Lock()
		delete(m.buckets[bucket], key)
		m.mu.Unlock()
	}
	return failed, nil
}

func (m *MemStore) record(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
}

func (m *MemStore) bucket(name string) map[string]*memObject {
	b, ok := m.buckets[name]
	if !ok {
		b = make(map[string]*memObject)
		m.buckets[name] = b
	}
	return b
}

func (m *MemStore) lookup(op, bucket, key string) (*memObject, error) {
	b, ok := m.buckets[bucket]
	if !ok {
		return nil, s3errors.NewError(op, s3errors.ErrBucketNotFound).WithBucket(bucket)
	}
	obj, ok := b[key]
	if !ok {
		return nil, s3errors.NewObjectError(op, bucket, key, s3errors.ErrObjectNotFound)
	}
	return obj, nil
}

func (m *MemStore) sortedKeys(bucket, prefix string) []string {
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

var _ storage.Client = (*MemStore)(nil)
