/*
Package coordinator is Grove's action layer. Every user-visible action
(create a habit, complete it, log in, watch an ad) runs the same local-first
pipeline synchronously:

 1. append to the relevant append-only log,
 2. recompute the habit's progress snapshot wholesale,
 3. append any XP events the action earned,
 4. publish progress events,
 5. enqueue sync operations for the remote.

If a local step fails, everything appended so far is rolled back and nothing
is queued. Remote failures never affect local state. All mutations for a
habit are serialized under a per-habit lock, so derived values are computed
against a stable log.
*/
package coordinator
