// Package postgres provides PostgreSQL-backed implementations of the store
// interfaces, using the pgx driver through database/sql. Database errors are
// mapped to the shared store error types via MapError so callers never
// depend on driver-specific error values.
package postgres
