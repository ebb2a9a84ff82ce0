// Package config loads the netimpact service configuration from YAML with
// NETIMPACT_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/telemetry"
	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NETIMPACT_"

// Scenario store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Risk      risk.Config      `yaml:"risk"`
	Jobs      JobsConfig       `yaml:"jobs"`
	Scenarios ScenarioConfig   `yaml:"scenarios"`
	Events    EventsConfig     `yaml:"events"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// AnalysisConfig holds engine defaults.
type AnalysisConfig struct {
	BatchSize      int `yaml:"batch_size"`
	Workers        int `yaml:"workers"`
	MaxECMPPaths   int `yaml:"max_ecmp_paths"`
	MaxSPOFResults int `yaml:"max_spof_results"`
	SamplePairs    int `yaml:"sample_pairs"`
}

// JobsConfig configures asynchronous job retention.
type JobsConfig struct {
	Retention  time.Duration `yaml:"retention"`
	MaxRunning int           `yaml:"max_running"`
}

// ScenarioConfig selects and configures the scenario store.
type ScenarioConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	PostgresURL string `yaml:"postgres_url"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	// Static S3 credentials; empty uses the default AWS credential chain.
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
}

// EventsConfig configures the progress event bridge.
type EventsConfig struct {
	// NNGURL enables the nanomsg PUB socket when set, e.g. tcp://127.0.0.1:40899.
	NNGURL string `yaml:"nng_url"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			AnalysisTimeout: 30 * time.Second,
			MaxBodyBytes:    16 << 20,
			RateLimit:       20,
			RateBurst:       40,
		},
		Analysis: AnalysisConfig{
			BatchSize:      8,
			Workers:        4,
			MaxECMPPaths:   10,
			MaxSPOFResults: 20,
			SamplePairs:    2000,
		},
		Risk: risk.DefaultConfig(),
		Jobs: JobsConfig{
			Retention:  time.Hour,
			MaxRunning: 4,
		},
		Scenarios: ScenarioConfig{
			Backend:  BackendMemory,
			Dir:      "scenarios",
			S3Prefix: "scenarios/",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: telemetry.Config{
			ServiceName: "netimpact",
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NETIMPACT_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	dur("ANALYSIS_TIMEOUT", &c.Server.AnalysisTimeout)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitAndTrim(v, ",")
	}
	num("BATCH_SIZE", &c.Analysis.BatchSize)
	num("WORKERS", &c.Analysis.Workers)
	dur("JOB_RETENTION", &c.Jobs.Retention)
	str("SCENARIO_BACKEND", &c.Scenarios.Backend)
	str("SCENARIO_DIR", &c.Scenarios.Dir)
	str("POSTGRES_URL", &c.Scenarios.PostgresURL)
	str("S3_BUCKET", &c.Scenarios.S3Bucket)
	str("S3_PREFIX", &c.Scenarios.S3Prefix)
	str("S3_REGION", &c.Scenarios.S3Region)
	str("S3_ENDPOINT", &c.Scenarios.S3Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Scenarios.S3AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Scenarios.S3SecretAccessKey)
	str("NNG_URL", &c.Events.NNGURL)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)
	str("OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	return errors.Join(errs...)
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	v := validation.NewConfigValidator("config").
		Required("server.addr", c.Server.Addr).
		MinDuration("server.analysis_timeout", c.Server.AnalysisTimeout, time.Second).
		NonNegativeDuration("server.read_timeout", c.Server.ReadTimeout).
		NonNegativeDuration("server.write_timeout", c.Server.WriteTimeout).
		Custom("server.max_body_bytes", func() error {
			if c.Server.MaxBodyBytes <= 0 {
				return fmt.Errorf("value %d must be positive", c.Server.MaxBodyBytes)
			}
			return nil
		}).
		RangeFloat("server.rate_limit", c.Server.RateLimit, 0, 1e6).
		When(c.Server.RateLimit > 0, func(v *validation.ConfigValidator) {
			v.Positive("server.rate_burst", c.Server.RateBurst)
		}).
		Positive("analysis.batch_size", c.Analysis.BatchSize).
		RangeInt("analysis.workers", c.Analysis.Workers, 1, 256).
		Positive("analysis.max_ecmp_paths", c.Analysis.MaxECMPPaths).
		Positive("analysis.max_spof_results", c.Analysis.MaxSPOFResults).
		NonNegative("analysis.sample_pairs", c.Analysis.SamplePairs).
		Custom("risk", c.Risk.Validate).
		MinDuration("jobs.retention", c.Jobs.Retention, time.Second).
		Positive("jobs.max_running", c.Jobs.MaxRunning).
		OneOf("scenarios.backend", c.Scenarios.Backend, []string{BackendMemory, BackendFile, BackendPostgres, BackendS3}).
		When(c.Scenarios.Backend == BackendFile, func(v *validation.ConfigValidator) {
			v.Required("scenarios.dir", c.Scenarios.Dir)
		}).
		When(c.Scenarios.Backend == BackendPostgres, func(v *validation.ConfigValidator) {
			v.Required("scenarios.postgres_url", c.Scenarios.PostgresURL)
		}).
		When(c.Scenarios.Backend == BackendS3, func(v *validation.ConfigValidator) {
			v.Required("scenarios.s3_bucket", c.Scenarios.S3Bucket)
		}).
		OneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "error"}).
		OneOf("logging.format", c.Logging.Format, []string{"console", "json"})
	return v.Validate()
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
