package errors

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Error represents a storage operation error with context about the call that failed.
// It wraps the underlying SDK error with the bucket and key involved.
type Error struct {
	// Op is the operation that failed (e.g., "CopyObject", "UploadPartCopy")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	case e.Key != "":
		return fmt.Sprintf("s3.%s object %s: %v", e.Op, e.Key, e.Err)
	default:
		return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

// Sentinel errors. These can be used with errors.Is() for error checking.
var (
	// ErrConfiguration marks an invalid pattern, template, flag or config value.
	ErrConfiguration = errors.New("s3utils: invalid configuration")

	// ErrResolution indicates a template referenced a capture the match did not provide.
	ErrResolution = errors.New("s3utils: target resolution failed")

	// ErrSizeConstraint is matched by every *SizeConstraintError.
	ErrSizeConstraint = errors.New("s3utils: size constraint violated")

	// ErrNothingToConcat indicates fewer than two objects matched a concat pattern.
	ErrNothingToConcat = errors.New("s3utils: nothing to concatenate")

	// ErrTargetIsSource indicates a resolved target equals one of its source keys.
	ErrTargetIsSource = errors.New("s3utils: target key equals a source key")

	// ErrTargetConflict indicates two planned renames would write the same key.
	ErrTargetConflict = errors.New("s3utils: conflicting target key")

	// ErrCanceled indicates the run was cancelled before the operation started.
	ErrCanceled = errors.New("s3utils: operation canceled")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("s3: bucket not found")

	// ErrUploadNotFound indicates the multipart upload id is unknown to the store
	ErrUploadNotFound = errors.New("s3: multipart upload not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3: access denied")

	// ErrInvalidInput indicates the store rejected the request as malformed
	ErrInvalidInput = errors.New("s3: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3: invalid object key")

	// ErrTooManyRequests indicates that the request rate is too high
	ErrTooManyRequests = errors.New("s3: too many requests")

	// ErrServiceUnavailable indicates a temporary server-side failure
	ErrServiceUnavailable = errors.New("s3: service unavailable")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("s3: operation timeout")
)

// IsTransient reports whether err is worth retrying.
// Throttling, temporary unavailability and timeouts are transient;
// permission, not-found and validation failures are permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTooManyRequests) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsBucketNotFound checks if an error indicates that a bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// Configurationf builds an error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// SizeConstraintError reports objects that violate a store size limit.
type SizeConstraintError struct {
	// Rule names the violated limit, e.g. "minimum part size".
	Rule string

	// Limit is the bound in bytes (or parts, for the part count rule).
	Limit int64

	// Keys lists every offending object key.
	Keys []string
}

// Error implements the error interface.
func (e *SizeConstraintError) Error() string {
	return fmt.Sprintf("%s (%d) violated by %d object(s): %s",
		e.Rule, e.Limit, len(e.Keys), strings.Join(e.Keys, ", "))
}

// Is makes every SizeConstraintError match ErrSizeConstraint.
func (e *SizeConstraintError) Is(target error) bool {
	return target == ErrSizeConstraint
}

// AbortedUploadError is returned when a multipart session fails after it was
// created. The session has been aborted; AbortErr is set if the abort call
// itself failed and parts may remain on the store.
type AbortedUploadError struct {
	Bucket   string
	Key      string
	UploadID string
	Cause    error
	AbortErr error
}

// Error implements the error interface.
func (e *AbortedUploadError) Error() string {
	msg := fmt.Sprintf("multipart upload %s for %s/%s aborted: %v", e.UploadID, e.Bucket, e.Key, e.Cause)
	if e.AbortErr != nil {
		msg += fmt.Sprintf(" (abort failed: %v)", e.AbortErr)
	}
	return msg
}

// Unwrap exposes both the cause and the abort failure.
func (e *AbortedUploadError) Unwrap() []error {
	if e.AbortErr != nil {
		return []error{e.Cause, e.AbortErr}
	}
	return []error{e.Cause}
}

// PartialRenameError summarizes a rename batch that did not fully succeed.
type PartialRenameError struct {
	Renamed int
	Skipped int

	// Failed lists keys whose rename failed; the source is untouched.
	Failed []string

	// Partial lists keys copied but not deleted; they exist at both keys.
	Partial []string
}

// Error implements the error interface.
func (e *PartialRenameError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rename incomplete: %d renamed, %d skipped, %d failed, %d copied but not deleted",
		e.Renamed, e.Skipped, len(e.Failed), len(e.Partial))
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, "; failed: %s", strings.Join(e.Failed, ", "))
	}
	if len(e.Partial) > 0 {
		fmt.Fprintf(&b, "; duplicated: %s", strings.Join(e.Partial, ", "))
	}
	return b.String()
}

// CleanupError lists source keys that could not be deleted after a
// successful concatenation.
type CleanupError struct {
	Bucket string
	Errors map[string]error
}

// Error implements the error interface.
func (e *CleanupError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return fmt.Sprintf("cleanup of %d source object(s) in %s failed: %s",
		len(keys), e.Bucket, strings.Join(keys, ", "))
}

// Unwrap returns the per-key failures.
func (e *CleanupError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}
	return errs
}
