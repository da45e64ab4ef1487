// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/mash-api/internal/generation"
)

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// Static errors for configuration validation.
var (
	// ErrInvalidArchiveBackend is returned when ARCHIVE_BACKEND is unknown.
	ErrInvalidArchiveBackend = errors.New("config: ARCHIVE_BACKEND must be none, local or s3")
	// ErrS3ConfigIncomplete is returned when the s3 backend lacks a bucket or region.
	ErrS3ConfigIncomplete = errors.New("config: S3_BUCKET and S3_REGION are required for the s3 archive backend")
	// ErrInvalidPollSettings is returned when polling would never run.
	ErrInvalidPollSettings = errors.New("config: POLL_INTERVAL and max attempts must be positive")
	// ErrGenerationTimeoutTooShort is returned when GENERATION_TIMEOUT cannot cover the poll budget.
	ErrGenerationTimeoutTooShort = errors.New("config: GENERATION_TIMEOUT must exceed the longest poll budget")
)

// DotenvFiles are loaded, in order, before the environment is read.
// Variables already set in the environment win.
var DotenvFiles = []string{".env.local", ".env"}

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	MaxBodyBytes   int64    `env:"MAX_BODY_BYTES, default=52428800" json:"max_body_bytes"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Replicate settings. A missing token is reported per request, not at startup.
	ReplicateAPIToken string        `env:"REPLICATE_API_TOKEN" json:"-"` // Masked in JSON
	ReplicateBaseURL  string        `env:"REPLICATE_BASE_URL, default=https://api.replicate.com/v1" json:"replicate_base_url"`
	ImageModel        string        `env:"IMAGE_MODEL, default=bytedance/seedream-4" json:"image_model"`
	VideoModel        string        `env:"VIDEO_MODEL, default=wan-video/wan-2.2-i2v-fast" json:"video_model"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT, default=60s" json:"http_timeout"`

	// Processing settings
	PollInterval            time.Duration `env:"POLL_INTERVAL, default=1s" json:"poll_interval"`
	ImageMaxAttempts        int           `env:"IMAGE_MAX_ATTEMPTS, default=180" json:"image_max_attempts"`
	VideoMaxAttempts        int           `env:"VIDEO_MAX_ATTEMPTS, default=300" json:"video_max_attempts"`
	RateLimitDefaultBackoff time.Duration `env:"RATE_LIMIT_DEFAULT_RETRY_AFTER, default=3s" json:"rate_limit_default_retry_after"`
	GenerationTimeout       time.Duration `env:"GENERATION_TIMEOUT, default=10m" json:"generation_timeout"` // Whole request: submit, poll, archive

	// Archive settings
	ArchiveBackend string `env:"ARCHIVE_BACKEND, default=none" json:"archive_backend"`
	ArchiveDir     string `env:"ARCHIVE_DIR, default=/tmp/mash" json:"archive_dir"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads dotenv files and then configuration from environment
// variables using go-envconfig. The result is validated.
func Load() (*Config, error) {
	if err := loadDotenv(DotenvFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.ArchiveBackend = strings.ToLower(strings.TrimSpace(cfg.ArchiveBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotenv loads each file that exists. godotenv never overrides
// variables that are already set.
func loadDotenv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.ArchiveBackend {
	case ArchiveNone, ArchiveLocal:
	case ArchiveS3:
		if !c.S3Enabled() {
			return ErrS3ConfigIncomplete
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidArchiveBackend, c.ArchiveBackend)
	}

	if c.PollInterval <= 0 || c.ImageMaxAttempts <= 0 || c.VideoMaxAttempts <= 0 {
		return ErrInvalidPollSettings
	}
	if c.GenerationTimeout <= c.MaxGenerationTime() {
		return fmt.Errorf("%w: %s <= %s", ErrGenerationTimeoutTooShort, c.GenerationTimeout, c.MaxGenerationTime())
	}
	return nil
}

// GenerationConfig maps the settings onto the generation service.
func (c *Config) GenerationConfig() generation.Config {
	cfg := generation.DefaultConfig()
	cfg.Models = generation.Models{Image: c.ImageModel, Video: c.VideoModel}
	cfg.Retry.DefaultRetryAfter = c.RateLimitDefaultBackoff
	cfg.ImagePoll = generation.PollConfig{Interval: c.PollInterval, MaxAttempts: c.ImageMaxAttempts}
	cfg.VideoPoll = generation.PollConfig{Interval: c.PollInterval, MaxAttempts: c.VideoMaxAttempts}
	return cfg
}

// MaxGenerationTime is the longest a single request can spend waiting
// between polls. Request latency comes on top.
func (c *Config) MaxGenerationTime() time.Duration {
	attempts := max(c.ImageMaxAttempts, c.VideoMaxAttempts)
	return time.Duration(attempts) * c.PollInterval
}

// MediaBaseURL is the public prefix for files archived on local disk.
func (c *Config) MediaBaseURL() string {
	base := strings.TrimSuffix(c.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return base + "/media"
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ReplicateAPIToken: %s, ReplicateBaseURL: %s, ImageModel: %s, VideoModel: %s, PollInterval: %s, ImageMaxAttempts: %d, VideoMaxAttempts: %d, ArchiveBackend: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		mask(c.ReplicateAPIToken),
		c.ReplicateBaseURL,
		c.ImageModel,
		c.VideoModel,
		c.PollInterval,
		c.ImageMaxAttempts,
		c.VideoMaxAttempts,
		c.ArchiveBackend,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
