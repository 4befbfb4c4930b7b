/*
Package types defines the core data structures used throughout Grove.

The model follows one rule: displayed progress is always derivable from
append-only logs, never trusted as mutable counters.

  - Habit: user-defined recurring activity with an optional weekday schedule
  - CompletionRecord: append-only completion log entry, one per
    (habit, logical date)
  - HabitProgressSnapshot: materialized view of streak/decay/growth state,
    recomputed wholesale from the log on every change
  - XpEvent: append-only XP ledger entry
  - SyncOperation: pending remote mutation in the outbox

All enums are typed string constants so tier logic can switch exhaustively.
JSON field names are snake_case and form the persisted/remote wire contract;
they must round-trip exactly.

Sync operations follow a state machine:

	pending → syncing → {synced | failed}

where failed operations below the retry budget become pending again, and
failed operations at the budget are abandoned.
*/
package types
