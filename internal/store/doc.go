// Package store defines the persistence interfaces and shared error types
// used by the job store implementations under internal/platform. Consumers
// depend on these interfaces, never on a concrete backend.
package store
