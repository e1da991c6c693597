// Package app wires configuration into the shared runtime pieces used by the
// api, worker and scanner binaries.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gateattend/internal/config"
	"gateattend/internal/dedup"
	"gateattend/internal/queue"
	"gateattend/internal/store"
)

// OpenStore connects the configured backend and applies migrations when asked.
func OpenStore(ctx context.Context, cfg config.App, log *zap.Logger) (store.Repository, error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
			log.Info("migrations applied")
		}
		return pg, nil

	case "firestore":
		return store.OpenFirestore(ctx, cfg.FirestoreProjectID, cfg.FirebaseCredentialsFile)

	case "memory":
		mem := store.NewMemory()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			if err := mem.LoadSeed(f); err != nil {
				return nil, err
			}
			log.Info("memory store seeded", zap.String("file", cfg.SeedFile))
		}
		return mem, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// NeedsRedis reports whether any configured component talks to Redis.
func NeedsRedis(cfg config.App) bool {
	return cfg.QueueBackend == "redis" || cfg.DedupBackend == "redis"
}

// NewQueue returns the notification queue. A nil redis client forces the
// in-memory queue.
func NewQueue(cfg config.App, rdb *store.Redis, log *zap.Logger) queue.Queue {
	if cfg.QueueBackend == "redis" && rdb != nil {
		return queue.NewRedisQueue(rdb.Client, cfg.QueueKey, log)
	}
	return queue.NewInMemory(256)
}

// NewFilter returns the duplicate-scan filter.
func NewFilter(cfg config.App, rdb *store.Redis, log *zap.Logger) dedup.Filter {
	if cfg.DedupBackend == "redis" && rdb != nil {
		return dedup.NewRedis(rdb.Client, cfg.DuplicateWindow, log)
	}
	return dedup.NewSuppressor(cfg.DuplicateWindow, cfg.DuplicateRetention)
}
