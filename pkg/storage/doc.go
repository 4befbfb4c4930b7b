/*
Package storage provides Grove's durable local store.

BoltStore persists all entities as JSON values in per-entity BoltDB buckets:
habits, completions, snapshots, xp_events, sync_ops. Completion records are
keyed by habit and logical date, which enforces the one-completion-per-day
invariant at the storage level and makes per-habit history a prefix scan.

The Store interface is the single injection point for persistence; the
Coordinator receives it at construction and MemoryStore stands in for
BoltStore in tests. Corrupt persisted records are skipped and logged during
scans rather than failing the caller.
*/
package storage
