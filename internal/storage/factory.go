package storage

import (
	"context"
	"fmt"

	"github.com/Oxord/SceneFlow/internal/config"
	"github.com/Oxord/SceneFlow/internal/observability"
)

// New creates the object storage adapter selected by configuration.
func New(ctx context.Context, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (ObjectStorage, error) {
	switch cfg.Adapter {
	case "s3":
		logger.Info(ctx, "creating S3 storage adapter", observability.Fields{
			"bucket":   cfg.Bucket,
			"endpoint": cfg.S3.Endpoint,
			"region":   cfg.S3.Region,
		})
		return NewS3Storage(ctx, cfg, logger, metrics)

	case "filesystem":
		logger.Info(ctx, "creating filesystem storage adapter", observability.Fields{
			"base_path": cfg.BasePath,
		})
		return NewFilesystemStorage(cfg.BasePath, logger)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %q", cfg.Adapter)
	}
}
