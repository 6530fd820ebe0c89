package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorFormatting verifies the message layout for each context combination.
func TestErrorFormatting(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  NewObjectError("CopyObject", "bucket", "a/b.gz", base),
			want: "s3.CopyObject bucket/a/b.gz: boom",
		},
		{
			name: "bucket only",
			err:  NewError("ListObjectsV2", base).WithBucket("bucket"),
			want: "s3.ListObjectsV2 bucket bucket: boom",
		},
		{
			name: "key only",
			err:  NewError("DeleteObject", base).WithKey("k"),
			want: "s3.DeleteObject object k: boom",
		},
		{
			name: "no context",
			err:  NewError("HeadObject", base),
			want: "s3.HeadObject: boom",
		},
		{
			name: "with message",
			err:  NewError("HeadObject", base).WithMessage("stat source"),
			want: "s3.HeadObject: stat source: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, base)
		})
	}
}

// TestIsTransient checks which sentinels are treated as retryable.
func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewError("op", ErrTooManyRequests), true},
		{NewError("op", ErrServiceUnavailable), true},
		{fmt.Errorf("wrapped: %w", ErrTimeout), true},
		{NewError("op", ErrAccessDenied), false},
		{NewError("op", ErrObjectNotFound), false},
		{NewError("op", ErrBucketNotFound), false},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestSizeConstraintError(t *testing.T) {
	err := &SizeConstraintError{Rule: "minimum part size", Limit: 5, Keys: []string{"a", "b"}}

	assert.ErrorIs(t, err, ErrSizeConstraint)
	assert.Contains(t, err.Error(), "a, b")
	assert.Contains(t, err.Error(), "2 object(s)")
	assert.Equal(t, CodeSizeConstraint, CodeOf(fmt.Errorf("preflight: %w", err)))
}

func TestAbortedUploadError(t *testing.T) {
	cause := NewObjectError("UploadPartCopy", "b", "t", ErrAccessDenied)

	t.Run("abort succeeded", func(t *testing.T) {
		err := &AbortedUploadError{Bucket: "b", Key: "t", UploadID: "u1", Cause: cause}
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.NotContains(t, err.Error(), "abort failed")
		assert.Equal(t, CodeAborted, CodeOf(err))
	})

	t.Run("abort failed", func(t *testing.T) {
		abortErr := errors.New("network down")
		err := &AbortedUploadError{Bucket: "b", Key: "t", UploadID: "u1", Cause: cause, AbortErr: abortErr}
		assert.ErrorIs(t, err, abortErr)
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.Contains(t, err.Error(), "abort failed: network down")
	})

	t.Run("cancelled", func(t *testing.T) {
		err := &AbortedUploadError{Bucket: "b", Key: "t", UploadID: "u1", Cause: context.Canceled}
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPartialRenameError(t *testing.T) {
	err := &PartialRenameError{Renamed: 3, Skipped: 1, Failed: []string{"x"}, Partial: []string{"y"}}

	msg := err.Error()
	assert.Contains(t, msg, "3 renamed")
	assert.Contains(t, msg, "failed: x")
	assert.Contains(t, msg, "duplicated: y")
	assert.Equal(t, CodePartialFailure, CodeOf(err))
}

func TestCleanupError(t *testing.T) {
	denied := NewObjectError("DeleteObject", "b", "k2", ErrAccessDenied)
	err := &CleanupError{Bucket: "b", Errors: map[string]error{
		"k2": denied,
		"k1": errors.New("x"),
	}}

	assert.Equal(t, "cleanup of 2 source object(s) in b failed: k1, k2", err.Error())
	assert.ErrorIs(t, err, ErrAccessDenied)
}

// TestCodeOf verifies mapping from errors to stable codes.
func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"configuration", Configurationf("bad template %q", "$9"), CodeInvalidConfig},
		{"conflict", fmt.Errorf("k: %w", ErrTargetConflict), CodeConflict},
		{"invalid key", NewError("validate", ErrInvalidObjectKey), CodeInvalidInput},
		{"not found", NewError("HeadObject", ErrObjectNotFound), CodeNotFound},
		{"upload not found", NewError("AbortMultipartUpload", ErrUploadNotFound), CodeNotFound},
		{"forbidden", NewError("CopyObject", ErrAccessDenied), CodeForbidden},
		{"throttled", NewError("CopyObject", ErrTooManyRequests), CodeRateLimit},
		{"unavailable", NewError("CopyObject", ErrServiceUnavailable), CodeUnavailable},
		{"timeout", NewError("CopyObject", ErrTimeout), CodeTimeout},
		{"canceled", ErrCanceled, CodeCanceled},
		{"unknown", errors.New("mystery"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestConfigurationf(t *testing.T) {
	err := Configurationf("pattern %q: %s", "(", "missing )")
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.Equal(t, `s3utils: invalid configuration: pattern "(": missing )`, err.Error())
}
