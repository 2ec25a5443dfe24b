// Package job provides background processing of download jobs. The Runner
// owns a buffered queue and a pool of workers that execute downloads through
// a fetch.Fetcher, persisting progress to a store.JobStore as it goes, and a
// janitor that purges finished jobs past their retention window and aborts
// stalled ones.
package job
