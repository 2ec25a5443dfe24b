// Package config defines the application configuration structure and loads
// it from environment variables and optional config files. Configuration is
// validated on load; the server refuses to start with an invalid topology,
// most notably more than one worker process on top of the in-memory job
// store.
package config
