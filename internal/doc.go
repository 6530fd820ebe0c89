// Package internal contains private implementation details for s3utils.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - s3api: narrow interface over the AWS SDK S3 client
//   - storage: StorageClient interface, AWS and MinIO backends, retry and rate limiting
//   - operations: list, concat and rename orchestration
//   - pattern: anchored key patterns, globs and target templates
//   - plan: materialized transform plans and their export
//   - pool: bounded worker pool for fan-out
//   - retry: exponential backoff for transient errors
//   - report: bucket statistics
//   - metrics: Prometheus instrumentation
//   - config: file and environment configuration
//   - validation: bucket name and object key checks
//   - testutil: mocks, an in-memory store and LocalStack helpers for tests
package internal
