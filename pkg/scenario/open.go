package scenario

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-netimpact/pkg/config"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
)

// Open builds the configured backend, wrapped with metrics.
func Open(ctx context.Context, cfg config.ScenarioConfig, m *metrics.Registry) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendMemory, "":
		store = NewMemoryStore()
	case config.BackendFile:
		store, err = NewFileStore(cfg.Dir)
	case config.BackendPostgres:
		store, err = NewPGStore(ctx, cfg.PostgresURL)
	case config.BackendS3:
		store, err = NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown scenario backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	backend := cfg.Backend
	if backend == "" {
		backend = config.BackendMemory
	}
	return Instrument(store, backend, m), nil
}
