package storage

import (
	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/types"
)

// Store defines the interface for Grove's durable local state. The primary
// implementation is BoltDB-backed; MemoryStore provides an in-memory fake
// for tests. All errors are classified through pkg/errdefs: missing entities
// return ErrNotFound, storage failures return ErrLocalStore.
type Store interface {
	// Habits
	CreateHabit(habit *types.Habit) error
	GetHabit(id string) (*types.Habit, error)
	GetHabitByName(userID, name string) (*types.Habit, error)
	ListHabits(userID string) ([]*types.Habit, error)
	UpdateHabit(habit *types.Habit) error
	DeleteHabit(id string) error

	// Completion log. Records are keyed by (habit, logical date), which is
	// what enforces the one-record-per-day invariant at the storage level.
	PutCompletion(rec *types.CompletionRecord) error
	GetCompletion(habitID string, date dates.LogicalDate) (*types.CompletionRecord, error)
	ListCompletionsByHabit(habitID string) ([]*types.CompletionRecord, error)
	ListCompletionsByUser(userID string) ([]*types.CompletionRecord, error)
	DeleteCompletion(habitID string, date dates.LogicalDate) error
	DeleteCompletionsByHabit(habitID string) error

	// Progress snapshots (materialized views, safe to destroy and rebuild)
	PutSnapshot(snapshot *types.HabitProgressSnapshot) error
	GetSnapshot(habitID string) (*types.HabitProgressSnapshot, error)
	DeleteSnapshot(habitID string) error

	// XP ledger
	AppendXpEvent(event *types.XpEvent) error
	ListXpEventsByUser(userID string) ([]*types.XpEvent, error)
	DeleteXpEvent(id string) error

	// Sync operations (outbox)
	CreateSyncOperation(op *types.SyncOperation) error
	GetSyncOperation(id string) (*types.SyncOperation, error)
	ListSyncOperations() ([]*types.SyncOperation, error)
	ListSyncOperationsByStatus(status types.SyncStatus) ([]*types.SyncOperation, error)
	UpdateSyncOperation(op *types.SyncOperation) error
	DeleteSyncOperation(id string) error

	// Utility
	Close() error
}
