package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mediagrab/grab-api/internal/config"
	"github.com/mediagrab/grab-api/internal/platform/memory"
	"github.com/mediagrab/grab-api/internal/platform/postgres"
	"github.com/mediagrab/grab-api/internal/platform/sqlite"
	"github.com/mediagrab/grab-api/internal/store"
)

// setupJobStore builds the job store for the configured backend. The second
// return value closes the backend's underlying resources; it is nil for the
// in-memory backend.
func setupJobStore(cfg *config.Config, logger *slog.Logger) (store.JobStore, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewJobStore(), nil, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, s, nil

	case config.BackendPostgres:
		db, err := openPostgres(cfg.Store.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewPostgresJobStore(db), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openPostgres establishes a connection pool and verifies it with a ping.
func openPostgres(url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}
