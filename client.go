package s3utils

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/storage"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Client runs concat, rename and report operations against one store.
// It is safe for concurrent use; each operation owns its own sessions.
type Client struct {
	// storage is the decorated backend: retry, rate limit, metrics
	storage storage.Client

	// metrics collects request and operation counters
	metrics *metrics.Metrics

	// logger receives structured progress and failure events
	logger *slog.Logger

	// concurrency bounds in-flight calls per operation
	concurrency int

	// abortTimeout bounds abort calls issued after a failure
	abortTimeout time.Duration
}

func defaultClientConfig() *s3types.ClientConfig {
	return &s3types.ClientConfig{
		Backend:        s3types.BackendAWS,
		MaxRetries:     3,
		RetryBaseDelay: 200 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
		Concurrency:    8,
		AbortTimeout:   30 * time.Second,
	}
}

// New creates a Client with the provided options.
// The AWS backend loads credentials using the default credential chain
// unless static keys are given.
//
// Example:
//
//	client, err := s3utils.New(ctx,
//	    s3utils.WithRegion("us-west-2"),
//	    s3utils.WithConcurrency(16),
//	)
func New(ctx context.Context, opts ...s3types.Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		backend storage.Client
		err     error
	)
	switch cfg.Backend {
	case s3types.BackendAWS, "":
		backend, err = newAWSBackend(ctx, cfg)
	case s3types.BackendMinIO:
		backend, err = storage.NewMinIO(storage.MinIOConfig{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			DisableSSL:      cfg.DisableSSL,
			PageSize:        cfg.PageSize,
		})
	default:
		return nil, s3errors.Configurationf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, s3errors.NewError("client initialization", err)
	}

	return newClient(backend, cfg), nil
}

// NewWithStorage creates a Client on top of an existing storage backend.
// The backend is wrapped with the same retry, rate limit and metrics layers
// as one built by New.
func NewWithStorage(backend storage.Client, opts ...s3types.Option) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newClient(backend, cfg)
}

func newClient(backend storage.Client, cfg *s3types.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New()

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(1, int(cfg.RequestsPerSec)))
	}

	client := storage.NewRetrying(
		storage.NewLimited(
			storage.NewInstrumented(backend, m),
			limiter),
		retry.Config{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		logger, m)

	return &Client{
		storage:      client,
		metrics:      m,
		logger:       logger,
		concurrency:  cfg.Concurrency,
		abortTimeout: cfg.AbortTimeout,
	}
}

func newAWSBackend(ctx context.Context, cfg *s3types.ClientConfig) (*storage.AWS, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if cfg.Endpoint != "" {
		endpoint := endpointURL(cfg.Endpoint, cfg.DisableSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	switch {
	case cfg.CustomHTTPClient != nil:
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = cfg.CustomHTTPClient
		})
	case cfg.Timeout > 0:
		httpClient := &http.Client{Timeout: cfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	pageSize := int32(0)
	if cfg.PageSize > 0 && cfg.PageSize <= 1000 {
		pageSize = int32(cfg.PageSize)
	}
	return storage.NewAWS(s3.NewFromConfig(awsCfg, s3Opts...), pageSize), nil
}

// loadAWSConfig resolves credentials and region. An explicit region wins,
// then the one found by the credential chain (AWS_REGION, shared profile),
// then us-east-1.
func loadAWSConfig(ctx context.Context, cfg *s3types.ClientConfig) (aws.Config, error) {
	noRetry := func() aws.Retryer { return aws.NopRetryer{} }

	var awsCfg aws.Config
	if cfg.CustomAWSConfig != nil {
		awsCfg = cfg.CustomAWSConfig.Copy()
		awsCfg.Retryer = noRetry
	} else {
		loadOpts := []func(*config.LoadOptions) error{
			config.WithRetryer(noRetry),
		}
		if cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
		}
		var err error
		awsCfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return aws.Config{}, err
		}
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	return awsCfg, nil
}

func endpointURL(endpoint string, disableSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if disableSSL {
		return "http://" + endpoint
	}
	return "https://" + endpoint
}

// WriteMetrics writes the client's counters to path in the Prometheus text
// format, for the node exporter textfile collector.
func (c *Client) WriteMetrics(path string) error {
	if err := c.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}
