// Package task runs background work on requests: a bounded in-memory queue
// feeds a worker pool, and the Dispatcher moves received requests into
// PROCESSING, recovers requests left behind by a previous run and fails
// requests stuck in PROCESSING.
package task
