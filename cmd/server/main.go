// Package main implements the entry point for the grab API server, which
// accepts media download requests, runs them in the background through
// yt-dlp, and serves the finished files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/mediagrab/grab-api/internal/config"
	"github.com/mediagrab/grab-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Run database migrations (up, down, status, version, create)")
	migrationName := flag.String("name", "", "Name for a new migration (used with -migrate create)")
	verbose := flag.Bool("verbose", false, "Enable verbose migration output")
	flag.Parse()

	if err := run(*migrateCmd, *migrationName, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "grab-api: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, sets up logging, and either executes a migration
// command or starts the server. Returned errors terminate the process with a
// non-zero exit code.
func run(migrateCmd, migrationName string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrSharedStateTopology) {
			return fmt.Errorf("invalid topology: %w", err)
		}
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	if migrateCmd != "" {
		return handleMigrations(cfg, migrateCmd, migrationName, verbose)
	}

	slog.Info("server configuration loaded",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"env", cfg.Server.Env,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
		"worker_count", cfg.Job.WorkerCount)

	// The download engine is an external binary; a missing one is not fatal
	// here because deployments may mount it later, but it is worth a loud
	// warning at startup.
	if _, err := exec.LookPath(cfg.Download.YtdlpPath); err != nil {
		log.Warn("download engine binary not found, downloads will fail",
			"path", cfg.Download.YtdlpPath)
	}

	if err := os.MkdirAll(cfg.Download.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
