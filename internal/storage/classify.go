package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// classify wraps a backend error with operation context and, when the error
// is recognized, the matching s3utils sentinel. The original error stays in
// the chain.
func classify(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	if sentinel := sentinelFor(err); sentinel != nil {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return s3errors.NewObjectError(op, bucket, key, err)
}

func sentinelFor(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	var (
		noSuchKey    *types.NoSuchKey
		notFound     *types.NotFound
		noSuchBucket *types.NoSuchBucket
		noSuchUpload *types.NoSuchUpload
	)
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return s3errors.ErrObjectNotFound
	case errors.As(err, &noSuchBucket):
		return s3errors.ErrBucketNotFound
	case errors.As(err, &noSuchUpload):
		return s3errors.ErrUploadNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel := sentinelForCode(apiErr.ErrorCode()); sentinel != nil {
			return sentinel
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		if sentinel := sentinelForStatus(statusErr.HTTPStatusCode()); sentinel != nil {
			return sentinel
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return s3errors.ErrTimeout
		}
		return s3errors.ErrServiceUnavailable
	}

	return nil
}

func sentinelForCode(code string) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return s3errors.ErrObjectNotFound
	case "NoSuchBucket":
		return s3errors.ErrBucketNotFound
	case "NoSuchUpload":
		return s3errors.ErrUploadNotFound
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"AllAccessDisabled", "ExpiredToken", "InvalidToken":
		return s3errors.ErrAccessDenied
	case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequestsException", "RequestThrottled", "XMinioServerBusy":
		return s3errors.ErrTooManyRequests
	case "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		return s3errors.ErrServiceUnavailable
	case "RequestTimeout", "RequestTimeoutException":
		return s3errors.ErrTimeout
	case "InvalidRequest", "InvalidArgument", "EntityTooSmall", "EntityTooLarge",
		"InvalidPart", "InvalidPartOrder", "InvalidObjectState", "KeyTooLongError":
		return s3errors.ErrInvalidInput
	default:
		return nil
	}
}

func sentinelForStatus(status int) error {
	switch status {
	case 403:
		return s3errors.ErrAccessDenied
	case 404:
		return s3errors.ErrObjectNotFound
	case 408:
		return s3errors.ErrTimeout
	case 429:
		return s3errors.ErrTooManyRequests
	case 500, 502, 503, 504:
		return s3errors.ErrServiceUnavailable
	default:
		return nil
	}
}
