package store

import (
	"context"
	"fmt"

	"github.com/jonathan/candidate-intake/internal/config"
	"github.com/jonathan/candidate-intake/internal/logging"
)

// Open returns the report store selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile, "":
		return NewFileStore(cfg.OutputsDir)
	case config.StorePostgres:
		pg, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisTTL())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// OpenSnapshots returns the directory sink, followed by an S3 sink when a bucket is configured.
func OpenSnapshots(ctx context.Context, cfg *config.Config) (SnapshotSink, error) {
	dir, err := NewDirSink(cfg.AnswersDir)
	if err != nil {
		return nil, err
	}
	if cfg.S3Bucket == "" {
		return dir, nil
	}

	client, err := NewS3Client(ctx, S3Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	logging.Info().
		Str("bucket", cfg.S3Bucket).
		Str("endpoint", cfg.S3Endpoint).
		Msg("archiving answer snapshots to object storage")
	return MultiSink{dir, NewS3Sink(client, cfg.S3Bucket, cfg.S3Prefix)}, nil
}
