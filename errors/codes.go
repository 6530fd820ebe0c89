// Package errors provides the error taxonomy for s3utils operations.
// It pairs structured error types carrying bucket and key context with
// stable string codes that are safe to emit in logs and reports.
package errors

import "errors"

// ErrorCode represents a specific error condition.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested bucket, object or upload does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates two planned operations would write the same key.
	CodeConflict ErrorCode = "CONFLICT"

	// Permission errors.

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Validation errors.

	// CodeInvalidInput indicates an invalid bucket name or object key.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates an invalid pattern, template or setting.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeSizeConstraint indicates an object violates a store size limit.
	CodeSizeConstraint ErrorCode = "SIZE_CONSTRAINT"

	// Infrastructure errors.

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the store throttled the request.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeUnavailable indicates the store is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Execution errors.

	// CodeAborted indicates a multipart session was aborted.
	CodeAborted ErrorCode = "UPLOAD_ABORTED"

	// CodePartialFailure indicates a batch where some keys did not succeed.
	CodePartialFailure ErrorCode = "PARTIAL_FAILURE"

	// CodeCanceled indicates the run was cancelled before finishing.
	CodeCanceled ErrorCode = "CANCELED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf returns the most specific code describing err.
// A nil error has no code and returns the empty string.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var (
		aborted *AbortedUploadError
		partial *PartialRenameError
		size    *SizeConstraintError
	)

	switch {
	case errors.As(err, &aborted):
		return CodeAborted
	case errors.As(err, &partial):
		return CodePartialFailure
	case errors.As(err, &size):
		return CodeSizeConstraint
	case errors.Is(err, ErrConfiguration):
		return CodeInvalidConfig
	case errors.Is(err, ErrTargetConflict):
		return CodeConflict
	case errors.Is(err, ErrInvalidBucketName), errors.Is(err, ErrInvalidObjectKey), errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrBucketNotFound), errors.Is(err, ErrUploadNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAccessDenied):
		return CodeForbidden
	case errors.Is(err, ErrTooManyRequests):
		return CodeRateLimit
	case errors.Is(err, ErrServiceUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrCanceled):
		return CodeCanceled
	default:
		return CodeUnknown
	}
}
