package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrSharedStateTopology is returned when the configuration asks for more
// than one worker process while the job store lives in process memory.
// Every additional process would hold an independent copy of the job
// registry, so lookups for jobs created in one process would fail in
// another.
var ErrSharedStateTopology = errors.New(
	"memory store backend requires exactly one worker process",
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults. Every key needs one so AutomaticEnv can bind it.
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", EnvDevelopment)
	v.SetDefault("server.log_level", "")
	v.SetDefault("server.worker_processes", 1)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.url", "")
	v.SetDefault("store.path", "")
	v.SetDefault("job.worker_count", 2)
	v.SetDefault("job.queue_size", 100)
	v.SetDefault("job.retention_minutes", 60)
	v.SetDefault("job.cleanup_interval_minutes", 5)
	v.SetDefault("job.stuck_age_minutes", 30)
	v.SetDefault("download.dir", "downloads")
	v.SetDefault("download.ytdlp_path", "yt-dlp")
	v.SetDefault("download.timeout_minutes", 60)

	// Optional config file in the working directory.
	v.SetConfigName("grab")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with GRAB_ prefix, nested keys joined with
	// underscores (e.g. GRAB_SERVER_PORT, GRAB_STORE_URL).
	v.SetEnvPrefix("GRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvDefaults(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Cross-field checks the struct validator cannot express.
	if cfg.Store.Backend == BackendMemory && cfg.Server.WorkerProcesses > 1 {
		return nil, fmt.Errorf(
			"%w: got worker_processes=%d; use the sqlite or postgres backend to scale out",
			ErrSharedStateTopology, cfg.Server.WorkerProcesses,
		)
	}

	return &cfg, nil
}

// applyEnvDefaults fills in settings whose defaults depend on the
// environment mode. Development binds to loopback only and logs at debug;
// production listens on all interfaces and logs at info.
func applyEnvDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		switch cfg.Server.Env {
		case EnvProduction:
			cfg.Server.Host = "0.0.0.0"
		default:
			cfg.Server.Host = "localhost"
		}
	}

	if cfg.Server.LogLevel == "" {
		switch cfg.Server.Env {
		case EnvProduction:
			cfg.Server.LogLevel = "info"
		default:
			cfg.Server.LogLevel = "debug"
		}
	}
}
