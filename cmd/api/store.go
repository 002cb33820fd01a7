package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/runlog/internal/config"
	"example.com/runlog/internal/domain"
	"example.com/runlog/internal/persistence/memory"
	"example.com/runlog/internal/persistence/postgres"
	"example.com/runlog/internal/persistence/sqlite"
)

// backend is the configured remote store. pool is set only for postgres,
// which is the one driver that feeds the outbox.
type backend struct {
	store domain.EntryStore
	pool  *pgxpool.Pool
	close func()
}

func (b backend) Close() {
	if b.close != nil {
		b.close()
	}
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return backend{}, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("ping postgres: %w", err)
		}
		return backend{store: postgres.NewStore(pool, cfg.SnapshotKey), pool: pool, close: pool.Close}, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return backend{}, fmt.Errorf("create sqlite directory: %w", err)
		}
		store, err := sqlite.Open(cfg.SQLitePath, cfg.SnapshotKey)
		if err != nil {
			return backend{}, err
		}
		return backend{store: store, close: func() { _ = store.Close() }}, nil
	default:
		return backend{store: memory.NewStore()}, nil
	}
}
