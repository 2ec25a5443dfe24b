// Package domain contains the core entities of the download service and
// their validation and lifecycle rules. Entities here have no dependencies
// on storage, transport, or the download engine.
package domain
