package s3utils

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// WithBackend selects the storage implementation. Default is BackendAWS.
func WithBackend(backend s3types.Backend) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Backend = backend
	}
}

// WithRegion sets the region for S3 operations.
// If not specified, uses the region from the credential chain, or us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithDisableSSL uses plain HTTP for endpoints given without a scheme.
func WithDisableSSL(disableSSL bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.DisableSSL = disableSSL
	}
}

// WithCredentials sets static credentials instead of the default chain.
func WithCredentials(accessKeyID, secretAccessKey string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// Default is 3. Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = maxRetries
		}
	}
}

// WithRetryDelays sets the backoff base and cap.
func WithRetryDelays(base, maxDelay time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RetryBaseDelay = base
		c.RetryMaxDelay = maxDelay
	}
}

// WithRequestsPerSecond caps the request rate across all operations.
// Zero, the default, means unlimited.
func WithRequestsPerSecond(rps float64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RequestsPerSec = rps
	}
}

// WithPageSize sets the number of keys per listing page.
func WithPageSize(pageSize int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.PageSize = pageSize
	}
}

// WithConcurrency sets the maximum number of concurrent storage calls per
// operation. Default is 8.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithTimeout sets the HTTP timeout for individual S3 calls on the AWS backend.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAbortTimeout bounds the abort call issued for a failed or cancelled
// multipart session. Default is 30 seconds.
func WithAbortTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if timeout > 0 {
			c.AbortTimeout = timeout
		}
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient sets the HTTP client used by the AWS backend.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithDryRun reports the plan without any mutating call.
func WithDryRun(dryRun bool) s3types.OperationOption {
	return func(c *s3types.OperationConfig) {
		c.DryRun = dryRun
	}
}

// WithGlob interprets the source pattern as a shell-style glob.
func WithGlob(glob bool) s3types.OperationOption {
	return func(c *s3types.OperationConfig) {
		c.Glob = glob
	}
}

// WithAllowSingle lets concat run a target that has a single source.
func WithAllowSingle(allow bool) s3types.OperationOption {
	return func(c *s3types.OperationConfig) {
		c.AllowSingle = allow
	}
}

// WithCleanup deletes concat sources after their target completes.
func WithCleanup(cleanup bool) s3types.OperationOption {
	return func(c *s3types.OperationConfig) {
		c.Cleanup = cleanup
	}
}

// WithPlanFile writes the JSON plan to path on fs before execution.
func WithPlanFile(fs billy.Filesystem, path string) s3types.OperationOption {
	return func(c *s3types.OperationConfig) {
		c.PlanFS = fs
		c.PlanFile = path
	}
}
