// Package api contains the HTTP handlers for the download service: creating
// jobs, polling their progress, cancelling them, and serving finished files.
// Handlers translate between HTTP and the service layer; shared response and
// validation helpers live in the shared subpackage.
package api
