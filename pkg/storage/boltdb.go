package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/log"
	"github.com/groveapp/grove/pkg/types"
)

var (
	// Bucket names
	bucketHabits      = []byte("habits")
	bucketCompletions = []byte("completions")
	bucketSnapshots   = []byte("snapshots")
	bucketXpEvents    = []byte("xp_events")
	bucketSyncOps     = []byte("sync_ops")
)

// completionKey keys completion records by habit and logical date so the
// at-most-one-per-day invariant holds by construction and per-habit scans
// are prefix scans.
func completionKey(habitID string, date dates.LogicalDate) []byte {
	return []byte(habitID + "/" + date.String())
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "grove.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, errdefs.LocalStore("open database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketHabits,
			bucketCompletions,
			bucketSnapshots,
			bucketXpEvents,
			bucketSyncOps,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, errdefs.LocalStore("create buckets", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket, key []byte, v interface{}) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(key, data)
	})
	return errdefs.LocalStore("put "+string(bucket), err)
}

func (s *BoltStore) delete(bucket, key []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
	return errdefs.LocalStore("delete "+string(bucket), err)
}

// Habit operations

func (s *BoltStore) CreateHabit(habit *types.Habit) error {
	return s.put(bucketHabits, []byte(habit.ID), habit)
}

func (s *BoltStore) GetHabit(id string) (*types.Habit, error) {
	var habit types.Habit
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketHabits).Get([]byte(id))
		if data == nil {
			return errdefs.NotFoundf("habit %s", id)
		}
		return json.Unmarshal(data, &habit)
	})
	if err != nil {
		return nil, wrapView("get habit", err)
	}
	return &habit, nil
}

func (s *BoltStore) GetHabitByName(userID, name string) (*types.Habit, error) {
	var found *types.Habit
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHabits).ForEach(func(k, v []byte) error {
			var habit types.Habit
			if err := json.Unmarshal(v, &habit); err != nil {
				logCorrupt("habit", k, err)
				return nil
			}
			if habit.UserID == userID && habit.Name == name {
				found = &habit
			}
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.LocalStore("scan habits", err)
	}
	if found == nil {
		return nil, errdefs.NotFoundf("habit %q", name)
	}
	return found, nil
}

func (s *BoltStore) ListHabits(userID string) ([]*types.Habit, error) {
	var habits []*types.Habit
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHabits).ForEach(func(k, v []byte) error {
			var habit types.Habit
			if err := json.Unmarshal(v, &habit); err != nil {
				logCorrupt("habit", k, err)
				return nil
			}
			if userID == "" || habit.UserID == userID {
				habits = append(habits, &habit)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.LocalStore("list habits", err)
	}
	return habits, nil
}

func (s *BoltStore) UpdateHabit(habit *types.Habit) error {
	return s.CreateHabit(habit) // upsert
}

func (s *BoltStore) DeleteHabit(id string) error {
	return s.delete(bucketHabits, []byte(id))
}

// Completion operations

func (s *BoltStore) PutCompletion(rec *types.CompletionRecord) error {
	return s.put(bucketCompletions, completionKey(rec.HabitID, rec.LogicalDate), rec)
}

func (s *BoltStore) GetCompletion(habitID string, date dates.LogicalDate) (*types.CompletionRecord, error) {
	var rec types.CompletionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCompletions).Get(completionKey(habitID, date))
		if data == nil {
			return errdefs.NotFoundf("completion %s/%s", habitID, date)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, wrapView("get completion", err)
	}
	return &rec, nil
}

func (s *BoltStore) ListCompletionsByHabit(habitID string) ([]*types.CompletionRecord, error) {
	var recs []*types.CompletionRecord
	prefix := []byte(habitID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCompletions).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec types.CompletionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				logCorrupt("completion", k, err)
				continue
			}
			recs = append(recs, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, errdefs.LocalStore("list completions", err)
	}
	return recs, nil
}

func (s *BoltStore) ListCompletionsByUser(userID string) ([]*types.CompletionRecord, error) {
	var recs []*types.CompletionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCompletions).ForEach(func(k, v []byte) error {
			var rec types.CompletionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				logCorrupt("completion", k, err)
				return nil
			}
			if rec.UserID == userID {
				recs = append(recs, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.LocalStore("list completions", err)
	}
	return recs, nil
}

func (s *BoltStore) DeleteCompletion(habitID string, date dates.LogicalDate) error {
	return s.delete(bucketCompletions, completionKey(habitID, date))
}

func (s *BoltStore) DeleteCompletionsByHabit(habitID string) error {
	prefix := []byte(habitID + "/")
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCompletions).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	return errdefs.LocalStore("delete completions", err)
}

// Snapshot operations

func (s *BoltStore) PutSnapshot(snapshot *types.HabitProgressSnapshot) error {
	return s.put(bucketSnapshots, []byte(snapshot.HabitID), snapshot)
}

func (s *BoltStore) GetSnapshot(habitID string) (*types.HabitProgressSnapshot, error) {
	var snap types.HabitProgressSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(habitID))
		if data == nil {
			return errdefs.NotFoundf("snapshot %s", habitID)
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, wrapView("get snapshot", err)
	}
	return &snap, nil
}

func (s *BoltStore) DeleteSnapshot(habitID string) error {
	return s.delete(bucketSnapshots, []byte(habitID))
}

// XP event operations

func (s *BoltStore) AppendXpEvent(event *types.XpEvent) error {
	return s.put(bucketXpEvents, []byte(event.ID), event)
}

func (s *BoltStore) ListXpEventsByUser(userID string) ([]*types.XpEvent, error) {
	var events []*types.XpEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketXpEvents).ForEach(func(k, v []byte) error {
			var ev types.XpEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				logCorrupt("xp event", k, err)
				return nil
			}
			if ev.UserID == userID {
				events = append(events, &ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.LocalStore("list xp events", err)
	}
	return events, nil
}

func (s *BoltStore) DeleteXpEvent(id string) error {
	return s.delete(bucketXpEvents, []byte(id))
}

// Sync operation operations

func (s *BoltStore) CreateSyncOperation(op *types.SyncOperation) error {
	return s.put(bucketSyncOps, []byte(op.ID), op)
}

func (s *BoltStore) GetSyncOperation(id string) (*types.SyncOperation, error) {
	var op types.SyncOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSyncOps).Get([]byte(id))
		if data == nil {
			return errdefs.NotFoundf("sync operation %s", id)
		}
		return json.Unmarshal(data, &op)
	})
	if err != nil {
		return nil, wrapView("get sync operation", err)
	}
	return &op, nil
}

func (s *BoltStore) ListSyncOperations() ([]*types.SyncOperation, error) {
	return s.listSyncOps(func(*types.SyncOperation) bool { return true })
}

func (s *BoltStore) ListSyncOperationsByStatus(status types.SyncStatus) ([]*types.SyncOperation, error) {
	return s.listSyncOps(func(op *types.SyncOperation) bool { return op.Status == status })
}

func (s *BoltStore) listSyncOps(keep func(*types.SyncOperation) bool) ([]*types.SyncOperation, error) {
	var ops []*types.SyncOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncOps).ForEach(func(k, v []byte) error {
			var op types.SyncOperation
			if err := json.Unmarshal(v, &op); err != nil {
				logCorrupt("sync operation", k, err)
				return nil
			}
			if keep(&op) {
				ops = append(ops, &op)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errdefs.LocalStore("list sync operations", err)
	}
	return ops, nil
}

func (s *BoltStore) UpdateSyncOperation(op *types.SyncOperation) error {
	return s.CreateSyncOperation(op)
}

func (s *BoltStore) DeleteSyncOperation(id string) error {
	return s.delete(bucketSyncOps, []byte(id))
}

// wrapView keeps not-found classification intact while wrapping everything
// else as a local store failure.
func wrapView(op string, err error) error {
	if errdefs.IsNotFound(err) {
		return err
	}
	return errdefs.LocalStore(op, err)
}

// logCorrupt records an unparseable persisted record. Corrupt records are
// skipped during scans rather than aborting the whole recompute.
func logCorrupt(kind string, key []byte, err error) {
	logger := log.WithComponent("storage")
	logger.Warn().
		Str("kind", kind).
		Str("key", string(key)).
		Err(err).
		Msg("skipping corrupt record")
}
