package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/types"
)

// runStoreTests runs a subtest against both Store implementations.
func runStoreTests(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("bolt", func(t *testing.T) {
		s, err := NewBoltStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func testHabit(id, name string) *types.Habit {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return &types.Habit{
		ID:        id,
		UserID:    "user-1",
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestHabitCRUD tests habit persistence
func TestHabitCRUD(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		h := testHabit("habit-1", "meditate")
		require.NoError(t, s.CreateHabit(h))

		got, err := s.GetHabit("habit-1")
		require.NoError(t, err)
		assert.Equal(t, "meditate", got.Name)

		got, err = s.GetHabitByName("user-1", "meditate")
		require.NoError(t, err)
		assert.Equal(t, "habit-1", got.ID)

		_, err = s.GetHabitByName("user-1", "jog")
		assert.True(t, errdefs.IsNotFound(err))
		_, err = s.GetHabitByName("someone-else", "meditate")
		assert.True(t, errdefs.IsNotFound(err))

		got.Name = "meditate daily"
		require.NoError(t, s.UpdateHabit(got))
		got, err = s.GetHabit("habit-1")
		require.NoError(t, err)
		assert.Equal(t, "meditate daily", got.Name)

		habits, err := s.ListHabits("user-1")
		require.NoError(t, err)
		assert.Len(t, habits, 1)

		require.NoError(t, s.DeleteHabit("habit-1"))
		_, err = s.GetHabit("habit-1")
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// TestCompletionKeying tests that records are keyed by habit and day
func TestCompletionKeying(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		d := dates.LogicalDate(20000)
		rec := &types.CompletionRecord{
			ID:          "rec-1",
			HabitID:     "habit-1",
			UserID:      "user-1",
			LogicalDate: d,
		}
		require.NoError(t, s.PutCompletion(rec))

		// Same habit and day overwrites rather than duplicating.
		rec2 := *rec
		rec2.ID = "rec-2"
		require.NoError(t, s.PutCompletion(&rec2))

		recs, err := s.ListCompletionsByHabit("habit-1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "rec-2", recs[0].ID)

		got, err := s.GetCompletion("habit-1", d)
		require.NoError(t, err)
		assert.Equal(t, "rec-2", got.ID)

		_, err = s.GetCompletion("habit-1", d.Next())
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// TestCompletionScans tests per-habit and per-user listing
func TestCompletionScans(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		for i, habitID := range []string{"habit-1", "habit-1", "habit-2"} {
			require.NoError(t, s.PutCompletion(&types.CompletionRecord{
				ID:          "rec",
				HabitID:     habitID,
				UserID:      "user-1",
				LogicalDate: dates.LogicalDate(20000 + i),
			}))
		}

		recs, err := s.ListCompletionsByHabit("habit-1")
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		recs, err = s.ListCompletionsByUser("user-1")
		require.NoError(t, err)
		assert.Len(t, recs, 3)

		require.NoError(t, s.DeleteCompletionsByHabit("habit-1"))
		recs, err = s.ListCompletionsByHabit("habit-1")
		require.NoError(t, err)
		assert.Empty(t, recs)

		// habit-2 untouched
		recs, err = s.ListCompletionsByHabit("habit-2")
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})
}

// TestSnapshotCRUD tests materialized-view persistence
func TestSnapshotCRUD(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		snap := &types.HabitProgressSnapshot{
			HabitID:       "habit-1",
			CurrentStreak: 4,
			GrowthTier:    types.GrowthSeedling,
			DecayTier:     types.DecayHealthy,
		}
		require.NoError(t, s.PutSnapshot(snap))

		got, err := s.GetSnapshot("habit-1")
		require.NoError(t, err)
		assert.Equal(t, 4, got.CurrentStreak)

		require.NoError(t, s.DeleteSnapshot("habit-1"))
		_, err = s.GetSnapshot("habit-1")
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// TestXpEvents tests the ledger bucket
func TestXpEvents(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		require.NoError(t, s.AppendXpEvent(&types.XpEvent{ID: "ev-1", UserID: "user-1", Amount: 10}))
		require.NoError(t, s.AppendXpEvent(&types.XpEvent{ID: "ev-2", UserID: "user-2", Amount: 5}))

		evs, err := s.ListXpEventsByUser("user-1")
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, 10, evs[0].Amount)

		require.NoError(t, s.DeleteXpEvent("ev-1"))
		evs, err = s.ListXpEventsByUser("user-1")
		require.NoError(t, err)
		assert.Empty(t, evs)
	})
}

// TestSyncOperations tests the outbox bucket
func TestSyncOperations(t *testing.T) {
	runStoreTests(t, func(t *testing.T, s Store) {
		for i, status := range []types.SyncStatus{types.SyncPending, types.SyncPending, types.SyncSynced} {
			require.NoError(t, s.CreateSyncOperation(&types.SyncOperation{
				ID:     string(rune('a' + i)),
				Kind:   types.SyncCreate,
				Status: status,
			}))
		}

		ops, err := s.ListSyncOperations()
		require.NoError(t, err)
		assert.Len(t, ops, 3)

		pending, err := s.ListSyncOperationsByStatus(types.SyncPending)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		op, err := s.GetSyncOperation("a")
		require.NoError(t, err)
		op.Status = types.SyncFailed
		require.NoError(t, s.UpdateSyncOperation(op))

		failed, err := s.ListSyncOperationsByStatus(types.SyncFailed)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "a", failed[0].ID)

		require.NoError(t, s.DeleteSyncOperation("a"))
		_, err = s.GetSyncOperation("a")
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// TestCorruptRecordsSkipped tests that scans survive unparseable records
func TestCorruptRecordsSkipped(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.CreateHabit(testHabit("habit-1", "meditate")))
	s.Corrupt("habits", "habit-2", []byte("{not json"))

	habits, err := s.ListHabits("user-1")
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

// TestBoltPersistsAcrossReopen tests durability of the bolt file
func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateHabit(testHabit("habit-1", "meditate")))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetHabit("habit-1")
	require.NoError(t, err)
	assert.Equal(t, "meditate", got.Name)
}
