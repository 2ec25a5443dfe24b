package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/mediagrab/grab-api/internal/config"
)

// migrationsDir is where the SQL migration files live, relative to the
// working directory the server is launched from.
const migrationsDir = "migrations"

// handleMigrations executes a migration command against the postgres store.
// The in-memory and sqlite backends manage their own schema, so migrations
// only apply when the postgres backend is configured.
func handleMigrations(cfg *config.Config, migrateCmd, migrationName string, verbose bool) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations require the postgres store backend, configured backend is %q", cfg.Store.Backend)
	}

	db, err := openPostgres(cfg.Store.URL, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	goose.SetLogger(&gooseSlogAdapter{logger: slog.Default(), verbose: verbose})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	slog.Info("executing migration command", "command", migrateCmd)

	switch migrateCmd {
	case "up":
		return goose.Up(db, migrationsDir)
	case "down":
		return goose.Down(db, migrationsDir)
	case "status":
		return goose.Status(db, migrationsDir)
	case "version":
		return goose.Version(db, migrationsDir)
	case "reset":
		return goose.Reset(db, migrationsDir)
	case "create":
		if migrationName == "" {
			return fmt.Errorf("the create command requires -name")
		}
		return goose.Create(db, migrationsDir, migrationName, "sql")
	default:
		return fmt.Errorf("unknown migration command %q (expected up, down, status, version, reset, or create)", migrateCmd)
	}
}

// gooseSlogAdapter routes goose's log output through slog.
type gooseSlogAdapter struct {
	logger  *slog.Logger
	verbose bool
}

func (a *gooseSlogAdapter) Fatalf(format string, v ...interface{}) {
	a.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (a *gooseSlogAdapter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if a.verbose {
		a.logger.Info(msg)
	} else {
		a.logger.Debug(msg)
	}
}
