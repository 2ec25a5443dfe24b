package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Store    StoreConfig    `mapstructure:"store"    validate:"required"`
	Job      JobConfig      `mapstructure:"job"      validate:"required"`
	Download DownloadConfig `mapstructure:"download" validate:"required"`
}

// Environment mode values accepted by ServerConfig.Env.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backend values accepted by StoreConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	// Host is the network interface the server binds to. When left empty it
	// defaults to localhost in development and 0.0.0.0 in production.
	Host string `mapstructure:"host" validate:"required"`

	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`

	// Env selects the environment mode the server runs in.
	Env string `mapstructure:"env" validate:"required,oneof=development production"`

	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// WorkerProcesses records how many copies of this process the deployment
	// runs behind its supervisor or load balancer. It is not used to fork
	// anything; it exists so configuration validation can reject topologies
	// that would split the job registry across processes (see Load).
	WorkerProcesses int `mapstructure:"worker_processes" validate:"required,gte=1"`
}

// StoreConfig selects and configures the job store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory sqlite postgres"`

	// URL is the Postgres connection string. Required for the postgres backend.
	URL string `mapstructure:"url" validate:"required_if=Backend postgres"`

	// Path is the SQLite database file. Required for the sqlite backend.
	Path string `mapstructure:"path" validate:"required_if=Backend sqlite"`
}

// JobConfig contains settings for the background job runner.
type JobConfig struct {
	// WorkerCount determines how many concurrent download workers run
	// inside this process.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gte=1"`

	QueueSize int `mapstructure:"queue_size" validate:"required,gte=1"`

	// RetentionMinutes is how long jobs are kept before the janitor purges them.
	RetentionMinutes int `mapstructure:"retention_minutes" validate:"required,gte=1"`

	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes" validate:"required,gte=1"`

	// StuckAgeMinutes is how long a job may sit in an active status without
	// an update before the janitor fails it.
	StuckAgeMinutes int `mapstructure:"stuck_age_minutes" validate:"required,gte=1"`
}

// DownloadConfig contains settings for the download engine.
type DownloadConfig struct {
	// Dir is the directory finished files are written to and served from.
	Dir string `mapstructure:"dir" validate:"required"`

	// YtdlpPath is the yt-dlp executable used to perform downloads.
	YtdlpPath string `mapstructure:"ytdlp_path" validate:"required"`

	TimeoutMinutes int `mapstructure:"timeout_minutes" validate:"required,gte=1"`
}
