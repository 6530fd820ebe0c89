// Package s3types provides shared type definitions for the s3utils module.
package s3types

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
)

// Store constraints imposed by S3 on multipart uploads and server-side copies.
// These are properties of the backing service and are not configurable.
const (
	// MinPartSize is the smallest allowed size of every part except the last.
	MinPartSize int64 = 5 * 1024 * 1024

	// MaxCopySize is the largest object a single CopyObject or UploadPartCopy
	// call may copy.
	MaxCopySize int64 = 5 * 1024 * 1024 * 1024

	// MaxParts is the maximum number of parts in one multipart upload.
	MaxParts = 10000

	// MaxObjectSize is the largest object a multipart upload may produce.
	MaxObjectSize int64 = 5 * 1024 * 1024 * 1024 * 1024

	// MaxDeleteKeys is the most keys one DeleteObjects request may name.
	MaxDeleteKeys = 1000
)

// Backend selects the storage client implementation.
type Backend string

const (
	// BackendAWS uses the AWS SDK. Works with S3 and LocalStack.
	BackendAWS Backend = "aws"

	// BackendMinIO uses minio-go. Works with MinIO and other S3-compatible stores.
	BackendMinIO Backend = "minio"
)

// ObjectMetadata is an immutable snapshot of an object taken at scan time.
type ObjectMetadata struct {
	// Key is the object key (path)
	Key string

	// Size is the object size in bytes
	Size int64

	// ETag is the entity tag for the object
	ETag string

	// LastModified is when the object was last modified
	LastModified time.Time
}

// CompletedPart records one part copied into a multipart upload.
type CompletedPart struct {
	// PartNumber is the 1-based position of the part in the final object
	PartNumber int32

	// ETag is the entity tag returned by the store for this part
	ETag string

	// Size is the number of bytes copied into the part
	Size int64
}

// ConcatResult summarizes one completed concatenation.
type ConcatResult struct {
	// Bucket is the bucket holding sources and target
	Bucket string

	// Target is the key of the concatenated object
	Target string

	// Sources are the concatenated keys in part order
	Sources []string

	// ETag is the entity tag of the completed object
	ETag string

	// TotalBytes is the size of the completed object
	TotalBytes int64

	// Parts is the number of parts in the upload
	Parts int

	// UploadID identifies the multipart upload that produced the object
	UploadID string

	// Duration is how long the session took
	Duration time.Duration

	// DryRun is true when no store call was made
	DryRun bool
}

// RenameStatus is the final state of one key in a rename batch.
type RenameStatus string

const (
	// RenameRenamed means the object was copied and the source deleted.
	RenameRenamed RenameStatus = "renamed"

	// RenameSkipped means the target equals the source; nothing was done.
	RenameSkipped RenameStatus = "skipped"

	// RenameFailed means the copy did not happen; the source is untouched.
	RenameFailed RenameStatus = "failed"

	// RenamePartial means the copy succeeded but the source delete failed.
	RenamePartial RenameStatus = "partial"

	// RenamePlanned marks a dry-run entry.
	RenamePlanned RenameStatus = "planned"
)

// RenameOutcome is the result for one source key.
type RenameOutcome struct {
	Source string
	Target string
	Size   int64
	Status RenameStatus
	Err    error
}

// Configuration types for functional options

// ClientConfig holds configuration for the s3utils client.
type ClientConfig struct {
	Backend          Backend
	Region           string
	Endpoint         string
	ForcePathStyle   bool
	DisableSSL       bool
	AccessKeyID      string
	SecretAccessKey  string
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RequestsPerSec   float64
	PageSize         int
	Concurrency      int
	Timeout          time.Duration
	AbortTimeout     time.Duration
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger
}

// OperationConfig holds configuration for concat and rename operations via
// functional options.
type OperationConfig struct {
	// DryRun computes and reports the plan without any mutating call.
	DryRun bool

	// Glob treats the source pattern as a shell-style glob.
	Glob bool

	// AllowSingle lets concat run a target with a single source.
	AllowSingle bool

	// Cleanup deletes concat sources once their target completes.
	Cleanup bool

	// PlanFS and PlanFile, when both set, receive the JSON plan before
	// execution.
	PlanFS   billy.Filesystem
	PlanFile string
}

type (
	// Option is a functional option for configuring the s3utils client.
	Option func(*ClientConfig)
	// OperationOption is a functional option for configuring concat and rename.
	OperationOption func(*OperationConfig)
)
