package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mash-api/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             8080,
		ReplicateBaseURL: "https://api.replicate.com/v1",
		ImageModel:       "bytedance/seedream-4",
		VideoModel:       "wan-video/wan-2.2-i2v-fast",
		HTTPTimeout:      time.Minute,
		PollInterval:     time.Second,
		ImageMaxAttempts: 180,
		VideoMaxAttempts: 300,
		ArchiveBackend:   config.ArchiveNone,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies(t *testing.T) {
	t.Run("no archive", func(t *testing.T) {
		deps, err := NewDependencies(context.Background(), testConfig(), discard())
		require.NoError(t, err)
		assert.NotNil(t, deps.Service)
		assert.Empty(t, deps.MediaDir)
	})

	t.Run("local archive exposes media dir", func(t *testing.T) {
		cfg := testConfig()
		cfg.ArchiveBackend = config.ArchiveLocal
		cfg.ArchiveDir = t.TempDir()

		deps, err := NewDependencies(context.Background(), cfg, discard())
		require.NoError(t, err)
		assert.Equal(t, cfg.ArchiveDir, deps.MediaDir)
	})

	t.Run("s3 archive", func(t *testing.T) {
		cfg := testConfig()
		cfg.ArchiveBackend = config.ArchiveS3
		cfg.S3Bucket = "bucket"
		cfg.S3Region = "us-east-1"
		cfg.S3Endpoint = "http://localhost:4566"
		cfg.AWSAccessKeyID = "key"
		cfg.AWSSecretAccessKey = "secret"

		deps, err := NewDependencies(context.Background(), cfg, discard())
		require.NoError(t, err)
		assert.NotNil(t, deps.Service)
		assert.Empty(t, deps.MediaDir)
	})
}
