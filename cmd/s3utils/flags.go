package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/config"
)

// CLIConfig holds command-line configuration for one invocation.
type CLIConfig struct {
	Command     string
	ConfigPath  string
	Backend     string
	Region      string
	Endpoint    string
	PathStyle   bool
	LogLevel    string
	LogFormat   string
	MetricsFile string
	PlanFile    string
	Quiet       bool
	DryRun      bool
	Glob        bool
	Concurrency int
	Cleanup     bool
	AllowSingle bool

	// Args are the positional arguments after the command.
	Args []string

	// set records the flags given explicitly on the command line.
	set map[string]bool
}

var errUsage = errors.New("usage error")

// commandArgs is the number of positional arguments each command takes.
var commandArgs = map[string]int{
	"concat": 3,
	"rename": 3,
	"report": 1,
}

func parseFlags(command string, args []string, stderr io.Writer) (*CLIConfig, error) {
	want, ok := commandArgs[command]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg := &CLIConfig{Command: command, set: make(map[string]bool)}
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("S3UTILS_CONFIG", ""),
		"Path to configuration file (env: S3UTILS_CONFIG)")

	fs.StringVar(&cfg.Backend, "backend", "", "Storage backend: aws, minio")
	fs.StringVar(&cfg.Region, "region", "", "Region of the bucket")
	fs.StringVar(&cfg.Endpoint, "endpoint", "", "Custom S3 endpoint URL")
	fs.BoolVar(&cfg.PathStyle, "path-style", false, "Use path-style bucket addressing")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format: json, text")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	fs.BoolVar(&cfg.Quiet, "quiet",
		getEnvBool("S3UTILS_QUIET", false),
		"Only log errors (env: S3UTILS_QUIET)")
	fs.BoolVar(&cfg.Quiet, "q",
		getEnvBool("S3UTILS_QUIET", false),
		"Only log errors (env: S3UTILS_QUIET)")

	if command != "report" {
		fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the plan without changing anything")
		fs.BoolVar(&cfg.DryRun, "d", false, "Print the plan without changing anything")
		fs.IntVar(&cfg.Concurrency, "concurrency", 0, "Maximum concurrent store calls")
		fs.IntVar(&cfg.Concurrency, "n", 0, "Maximum concurrent store calls")
		fs.BoolVar(&cfg.Glob, "glob", false, "Treat the source pattern as a glob")
		fs.StringVar(&cfg.PlanFile, "plan-file", "", "Write the plan as JSON to this file")
	}
	if command == "concat" {
		fs.BoolVar(&cfg.Cleanup, "cleanup", false, "Delete sources after a successful concat")
		fs.BoolVar(&cfg.Cleanup, "c", false, "Delete sources after a successful concat")
		fs.BoolVar(&cfg.AllowSingle, "allow-single", false, "Allow a target with a single source")
	}

	fs.Usage = func() {
		printCommandHelp(stderr, command, fs)
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, err
	}
	if len(positional) != want {
		fs.Usage()
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, command, want, len(positional))
	}
	cfg.Args = positional

	fs.Visit(func(f *flag.Flag) {
		cfg.set[f.Name] = true
	})
	return cfg, nil
}

// parseInterspersed allows flags after positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *CLIConfig) isSet(names ...string) bool {
	for _, name := range names {
		if c.set[name] {
			return true
		}
	}
	return false
}

// apply overrides file and environment settings with explicit flags.
func (c *CLIConfig) apply(cfg *config.Config) {
	if c.isSet("backend") {
		cfg.Backend = c.Backend
	}
	if c.isSet("region") {
		cfg.Region = c.Region
	}
	if c.isSet("endpoint") {
		cfg.Endpoint = c.Endpoint
	}
	if c.isSet("path-style") {
		cfg.PathStyle = c.PathStyle
	}
	if c.isSet("log-level") {
		cfg.Log.Level = c.LogLevel
	}
	if c.isSet("log-format") {
		cfg.Log.Format = c.LogFormat
	}
	if c.isSet("metrics-file") {
		cfg.MetricsFile = c.MetricsFile
	}
	if c.isSet("concurrency", "n") {
		cfg.Concurrency = c.Concurrency
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - server-side bulk operations on S3 objects

Usage:
  %s concat <bucket[/prefix]> <source-pattern> <target-template> [options]
  %s rename <bucket[/prefix]> <source-pattern> <target-template> [options]
  %s report <bucket[/prefix]> [options]
  %s version

Patterns are regular expressions matched against the full key. Targets
reference capture groups as $1 or ${1}; $$ is a literal dollar.

Examples:
  # Merge every .gz under archives/ into one object
  %s concat logs/archives --glob 'archives/*.gz' archives/all.gz

  # Flatten date directories, previewing first
  %s rename -d logs '(.*)/(.*)/(.*)/(.*)' '$1-$2-$3-$4'

  # Statistics for a prefix
  %s report s3://logs/2018

Run '%s <command> -h' for the options of a command.
`, appName, appName, appName, appName, appName, appName, appName, appName, appName)
}

func printCommandHelp(w io.Writer, command string, fs *flag.FlagSet) {
	args := "<bucket[/prefix]> <source-pattern> <target-template>"
	if command == "report" {
		args = "<bucket[/prefix]>"
	}
	_, _ = fmt.Fprintf(w, "Usage: %s %s %s [options]\n\nOptions:\n", appName, command, args)
	fs.PrintDefaults()
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
