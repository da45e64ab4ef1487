// Package bootstrap provides dependency initialization for the MASH API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maauso/mash-api/internal/config"
	"github.com/maauso/mash-api/internal/generation"
	"github.com/maauso/mash-api/internal/replicate"
	"github.com/maauso/mash-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the entrypoints.
type Dependencies struct {
	Service *generation.Service
	// MediaDir is set when archived artifacts live on local disk and must be
	// served over HTTP.
	MediaDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	client := replicate.NewClient(
		replicate.WithToken(cfg.ReplicateAPIToken),
		replicate.WithBaseURL(cfg.ReplicateBaseURL),
		replicate.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)
	if !client.Configured() {
		logger.Warn("REPLICATE_API_TOKEN is not set, generation requests will fail until it is configured")
	}

	deps := &Dependencies{}
	var opts []generation.Option

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, generation.WithArchiver(storage.NewMirror(store, nil)))
		if local, ok := store.(*storage.LocalStorage); ok {
			deps.MediaDir = local.Dir()
		}
	}

	deps.Service = generation.NewService(client, cfg.GenerationConfig(), logger, opts...)
	return deps, nil
}

// initStorage creates the archive backend selected by configuration.
// It returns nil when archival is disabled.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveS3:
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 archive configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil

	case config.ArchiveLocal:
		localStore, err := storage.NewLocalStorage(cfg.ArchiveDir, cfg.MediaBaseURL())
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		logger.Info("local archive configured",
			slog.String("dir", localStore.Dir()),
			slog.String("base_url", cfg.MediaBaseURL()),
		)
		return localStore, nil

	default:
		return nil, nil
	}
}
