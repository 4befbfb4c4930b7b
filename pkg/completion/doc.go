// Package completion wraps the store with the append-only completion log:
// per-day deduplication on append, history and distinct-date queries for
// the engines, and the synced-at marker for the outbox.
package completion
