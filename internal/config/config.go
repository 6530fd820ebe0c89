// Package config loads s3utils settings from a file, the environment and
// defaults, in increasing order of precedence: defaults, file, environment.
// Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// EnvPrefix is the prefix of every environment variable, e.g. S3UTILS_REGION.
const EnvPrefix = "S3UTILS"

// Config is the full set of settings.
type Config struct {
	Backend           string        `mapstructure:"backend"`
	Region            string        `mapstructure:"region"`
	Endpoint          string        `mapstructure:"endpoint"`
	PathStyle         bool          `mapstructure:"path_style"`
	DisableSSL        bool          `mapstructure:"disable_ssl"`
	AccessKeyID       string        `mapstructure:"access_key_id"`
	SecretAccessKey   string        `mapstructure:"secret_access_key"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	AbortTimeout      time.Duration `mapstructure:"abort_timeout"`
	MetricsFile       string        `mapstructure:"metrics_file"`
	Retry             RetryConfig   `mapstructure:"retry"`
	Log               LogConfig     `mapstructure:"log"`
}

// RetryConfig controls backoff for transient store errors.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// LogConfig controls the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"backend":             "aws",
	"region":              "",
	"endpoint":            "",
	"path_style":          false,
	"disable_ssl":         false,
	"access_key_id":       "",
	"secret_access_key":   "",
	"concurrency":         8,
	"requests_per_second": 0.0,
	"timeout":             5 * time.Minute,
	"abort_timeout":       30 * time.Second,
	"metrics_file":        "",
	"retry.max_attempts":  4,
	"retry.base_delay":    200 * time.Millisecond,
	"retry.max_delay":     5 * time.Second,
	"log.level":           "info",
	"log.format":          "text",
}

// Load reads the config file at path, if any, overlays S3UTILS_* environment
// variables and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, s3errors.Configurationf("read config file %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case "aws", "minio":
	default:
		return s3errors.Configurationf("backend must be aws or minio, got %q", c.Backend)
	}
	if c.Backend == "minio" && c.Endpoint == "" {
		return s3errors.Configurationf("the minio backend requires an endpoint")
	}
	if c.Concurrency < 1 || c.Concurrency > 1000 {
		return s3errors.Configurationf("concurrency must be between 1 and 1000, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return s3errors.Configurationf("requests_per_second cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return s3errors.Configurationf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return s3errors.Configurationf("retry delays must satisfy 0 <= base_delay <= max_delay")
	}
	if c.Timeout < 0 || c.AbortTimeout < 0 {
		return s3errors.Configurationf("timeouts cannot be negative")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return s3errors.Configurationf("access_key_id and secret_access_key must be set together")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return s3errors.Configurationf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return s3errors.Configurationf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
