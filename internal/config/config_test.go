package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "MAX_BODY_BYTES", "ALLOWED_ORIGINS",
	"REPLICATE_API_TOKEN", "REPLICATE_BASE_URL", "IMAGE_MODEL", "VIDEO_MODEL", "HTTP_TIMEOUT",
	"POLL_INTERVAL", "IMAGE_MAX_ATTEMPTS", "VIDEO_MAX_ATTEMPTS", "RATE_LIMIT_DEFAULT_RETRY_AFTER", "GENERATION_TIMEOUT",
	"ARCHIVE_BACKEND", "ARCHIVE_DIR", "PUBLIC_BASE_URL",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	orig := DotenvFiles
	DotenvFiles = nil
	t.Cleanup(func() { DotenvFiles = orig })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(52428800), cfg.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.ReplicateAPIToken)
	assert.Equal(t, "https://api.replicate.com/v1", cfg.ReplicateBaseURL)
	assert.Equal(t, "bytedance/seedream-4", cfg.ImageModel)
	assert.Equal(t, "wan-video/wan-2.2-i2v-fast", cfg.VideoModel)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 180, cfg.ImageMaxAttempts)
	assert.Equal(t, 300, cfg.VideoMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.RateLimitDefaultBackoff)
	assert.Equal(t, 10*time.Minute, cfg.GenerationTimeout)
	assert.Equal(t, ArchiveNone, cfg.ArchiveBackend)
	assert.Equal(t, "/tmp/mash", cfg.ArchiveDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingTokenIsNotFatal(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.ReplicateAPIToken)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("REPLICATE_API_TOKEN", "r8_secret")
	t.Setenv("IMAGE_MODEL", "acme/image")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("VIDEO_MAX_ATTEMPTS", "10")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("ARCHIVE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "r8_secret", cfg.ReplicateAPIToken)
	assert.Equal(t, "acme/image", cfg.ImageModel)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.VideoMaxAttempts)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, ArchiveS3, cfg.ArchiveBackend)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("invalid integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "not-a-number")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("invalid generation timeout", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GENERATION_TIMEOUT", "1m")

		_, err := Load()
		assert.ErrorIs(t, err, ErrGenerationTimeoutTooShort)
	})

	t.Run("unknown archive backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ARCHIVE_BACKEND", "gcs")

		_, err := Load()
		assert.ErrorIs(t, err, ErrInvalidArchiveBackend)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ARCHIVE_BACKEND", "s3")
		t.Setenv("S3_REGION", "us-east-1")

		_, err := Load()
		assert.ErrorIs(t, err, ErrS3ConfigIncomplete)
	})
}

func TestLoad_Dotenv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(local, []byte("IMAGE_MODEL=local/model\n"), 0o600))
	require.NoError(t, os.WriteFile(shared, []byte("IMAGE_MODEL=shared/model\nVIDEO_MODEL=shared/video\n"), 0o600))

	t.Setenv("PORT", "9090")
	DotenvFiles = []string{local, shared, filepath.Join(dir, "missing.env")}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local/model", cfg.ImageModel)
	assert.Equal(t, "shared/video", cfg.VideoModel)
	assert.Equal(t, 9090, cfg.Port)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func validConfig() *Config {
	return &Config{
		Port:              8080,
		ArchiveBackend:    ArchiveNone,
		PollInterval:      time.Second,
		ImageMaxAttempts:  180,
		VideoMaxAttempts:  300,
		GenerationTimeout: 10 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("local backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.ArchiveBackend = ArchiveLocal
		assert.NoError(t, cfg.Validate())
	})

	t.Run("s3 backend needs bucket and region", func(t *testing.T) {
		cfg := validConfig()
		cfg.ArchiveBackend = ArchiveS3
		assert.ErrorIs(t, cfg.Validate(), ErrS3ConfigIncomplete)

		cfg.S3Bucket, cfg.S3Region = "bucket", "eu-west-1"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero poll interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.PollInterval = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPollSettings)
	})

	t.Run("generation timeout shorter than poll budget", func(t *testing.T) {
		cfg := validConfig()
		cfg.GenerationTimeout = 5 * time.Minute
		assert.ErrorIs(t, cfg.Validate(), ErrGenerationTimeoutTooShort)
	})

	t.Run("zero attempts", func(t *testing.T) {
		cfg := validConfig()
		cfg.VideoMaxAttempts = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPollSettings)
	})
}

func TestConfig_GenerationConfig(t *testing.T) {
	cfg := validConfig()
	cfg.ImageModel = "a/image"
	cfg.VideoModel = "b/video"
	cfg.PollInterval = 2 * time.Second
	cfg.RateLimitDefaultBackoff = 5 * time.Second

	gen := cfg.GenerationConfig()

	assert.Equal(t, "a/image", gen.Models.Image)
	assert.Equal(t, "b/video", gen.Models.Video)
	assert.Equal(t, 5*time.Second, gen.Retry.DefaultRetryAfter)
	assert.Equal(t, time.Second, gen.Retry.Padding)
	assert.Equal(t, 2*time.Second, gen.ImagePoll.Interval)
	assert.Equal(t, 180, gen.ImagePoll.MaxAttempts)
	assert.Equal(t, 300, gen.VideoPoll.MaxAttempts)
	assert.Equal(t, 600*time.Second, cfg.MaxGenerationTime())
}

func TestConfig_MediaBaseURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "http://localhost:8080/media", cfg.MediaBaseURL())

	cfg.PublicBaseURL = "https://mash.example.com/"
	assert.Equal(t, "https://mash.example.com/media", cfg.MediaBaseURL())
}

func TestConfig_String(t *testing.T) {
	cfg := validConfig()
	cfg.ReplicateAPIToken = "r8_secret-token"
	cfg.AWSSecretAccessKey = "aws-secret"
	cfg.ImageModel = "bytedance/seedream-4"
	cfg.S3Bucket = "bucket"

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "bytedance/seedream-4")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "r8_secret-token")
	assert.NotContains(t, str, "aws-secret")
	assert.Contains(t, str, "****")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))

	var buf bytes.Buffer
	cfg.NewLoggerTo(&buf).Info("test message", slog.String("key", "value"))

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))

	var buf bytes.Buffer
	cfg.NewLoggerTo(&buf).Debug("test message")
	assert.Contains(t, buf.String(), "msg=\"test message\"")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
