/*
Package outbox implements the durable sync queue.

Every local write enqueues a SyncOperation; a single background worker
drains them in enqueue order, globally, so cross-entity causal ordering is
preserved. The state machine per operation is

	pending → syncing → {synced | failed}

with transient remote failures rescheduled under exponential backoff until
the retry budget runs out, and terminal remote failures abandoned
immediately. Abandoned operations go to the Reporter collaborator and the
event broker; the local write is never rolled back.

Durability notes: operations stranded in syncing by a crash are reset to
pending on startup, post-enqueue nudges and periodic passes coalesce into
one serialized drain, and synced operations are pruned after a retention
window. The queue warns when over capacity but never rejects a write.
*/
package outbox
