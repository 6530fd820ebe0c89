// Package validation checks bucket names, object keys and bucket locations
// before any request is sent to the store.
package validation

import (
	"net"
	"strings"
	"unicode"
	"unicode/utf8"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// MaxKeyLength is the longest object key S3 accepts, in bytes.
const MaxKeyLength = 1024

// ValidateBucketName checks a bucket name against the S3 DNS naming rules.
// Returns an error wrapping ErrInvalidBucketName.
func ValidateBucketName(bucket string) error {
	fail := func(msg string) error {
		return s3errors.NewError("validateBucketName", s3errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	switch {
	case bucket == "":
		return fail("bucket name cannot be empty")
	case len(bucket) < 3 || len(bucket) > 63:
		return fail("bucket name must be between 3 and 63 characters long")
	case !isAlnum(rune(bucket[0])) || !isAlnum(rune(bucket[len(bucket)-1])):
		return fail("bucket name must start and end with a letter or number")
	case strings.Contains(bucket, ".."), strings.Contains(bucket, ".-"), strings.Contains(bucket, "-."):
		return fail("bucket name cannot contain adjacent periods or dashes next to periods")
	case net.ParseIP(bucket) != nil:
		return fail("bucket name cannot be formatted as an IP address")
	}

	for _, r := range bucket {
		if !isAlnum(r) && r != '.' && r != '-' {
			return fail("bucket name can only contain lowercase letters, numbers, periods and hyphens")
		}
	}
	return nil
}

// ValidateObjectKey checks that key can be written as an object key.
// Resolved targets pass through here before any copy is issued.
func ValidateObjectKey(key string) error {
	fail := func(msg string) error {
		return s3errors.NewError("validateObjectKey", s3errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return fail("object key cannot be empty")
	case len(key) > MaxKeyLength:
		return fail("object key cannot exceed 1024 bytes")
	case !utf8.ValidString(key):
		return fail("object key must be valid UTF-8")
	case hasPathTraversal(key):
		return fail("object key cannot contain path traversal segments")
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fail("object key cannot contain control characters")
		}
	}
	return nil
}

// ParseLocation splits a "bucket[/prefix]" argument, with an optional
// s3:// scheme, into its bucket and prefix. Trailing slashes are trimmed
// from the prefix.
func ParseLocation(location string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(location, "s3://")
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	prefix = strings.TrimRight(prefix, "/")

	if err := ValidateBucketName(bucket); err != nil {
		return "", "", s3errors.Configurationf("location %q: %v", location, err)
	}
	return bucket, prefix, nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func hasPathTraversal(key string) bool {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
