package storage

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/types"
)

// MemoryStore is an in-memory Store used by tests and as a reference
// implementation. It stores marshaled JSON so it shares serialization
// semantics (and corrupt-record behavior) with BoltStore.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: map[string]map[string][]byte{
			"habits":      {},
			"completions": {},
			"snapshots":   {},
			"xp_events":   {},
			"sync_ops":    {},
		},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errdefs.LocalStore("put "+bucket, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket][key] = data
	return nil
}

func (s *MemoryStore) get(bucket, key string, v interface{}) error {
	s.mu.RLock()
	data, ok := s.buckets[bucket][key]
	s.mu.RUnlock()
	if !ok {
		return errdefs.NotFoundf("%s %s", strings.TrimSuffix(bucket, "s"), key)
	}
	return json.Unmarshal(data, v)
}

func (s *MemoryStore) del(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets[bucket], key)
	return nil
}

func (s *MemoryStore) each(bucket string, fn func(key string, data []byte)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.buckets[bucket] {
		fn(k, v)
	}
}

// Corrupt injects raw bytes under a key, for corrupt-record tests.
func (s *MemoryStore) Corrupt(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket][key] = data
}

// Habit operations

func (s *MemoryStore) CreateHabit(habit *types.Habit) error {
	return s.put("habits", habit.ID, habit)
}

func (s *MemoryStore) GetHabit(id string) (*types.Habit, error) {
	var habit types.Habit
	if err := s.get("habits", id, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

func (s *MemoryStore) GetHabitByName(userID, name string) (*types.Habit, error) {
	var found *types.Habit
	s.each("habits", func(k string, data []byte) {
		var habit types.Habit
		if json.Unmarshal(data, &habit) != nil {
			return
		}
		if habit.UserID == userID && habit.Name == name {
			found = &habit
		}
	})
	if found == nil {
		return nil, errdefs.NotFoundf("habit %q", name)
	}
	return found, nil
}

func (s *MemoryStore) ListHabits(userID string) ([]*types.Habit, error) {
	var habits []*types.Habit
	s.each("habits", func(k string, data []byte) {
		var habit types.Habit
		if json.Unmarshal(data, &habit) != nil {
			return
		}
		if userID == "" || habit.UserID == userID {
			habits = append(habits, &habit)
		}
	})
	return habits, nil
}

func (s *MemoryStore) UpdateHabit(habit *types.Habit) error {
	return s.CreateHabit(habit)
}

func (s *MemoryStore) DeleteHabit(id string) error {
	return s.del("habits", id)
}

// Completion operations

func (s *MemoryStore) PutCompletion(rec *types.CompletionRecord) error {
	return s.put("completions", string(completionKey(rec.HabitID, rec.LogicalDate)), rec)
}

func (s *MemoryStore) GetCompletion(habitID string, date dates.LogicalDate) (*types.CompletionRecord, error) {
	var rec types.CompletionRecord
	if err := s.get("completions", string(completionKey(habitID, date)), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MemoryStore) ListCompletionsByHabit(habitID string) ([]*types.CompletionRecord, error) {
	prefix := habitID + "/"
	var recs []*types.CompletionRecord
	s.each("completions", func(k string, data []byte) {
		if !strings.HasPrefix(k, prefix) {
			return
		}
		var rec types.CompletionRecord
		if json.Unmarshal(data, &rec) != nil {
			return
		}
		recs = append(recs, &rec)
	})
	return recs, nil
}

func (s *MemoryStore) ListCompletionsByUser(userID string) ([]*types.CompletionRecord, error) {
	var recs []*types.CompletionRecord
	s.each("completions", func(k string, data []byte) {
		var rec types.CompletionRecord
		if json.Unmarshal(data, &rec) != nil {
			return
		}
		if rec.UserID == userID {
			recs = append(recs, &rec)
		}
	})
	return recs, nil
}

func (s *MemoryStore) DeleteCompletion(habitID string, date dates.LogicalDate) error {
	return s.del("completions", string(completionKey(habitID, date)))
}

func (s *MemoryStore) DeleteCompletionsByHabit(habitID string) error {
	prefix := habitID + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.buckets["completions"] {
		if strings.HasPrefix(k, prefix) {
			delete(s.buckets["completions"], k)
		}
	}
	return nil
}

// Snapshot operations

func (s *MemoryStore) PutSnapshot(snapshot *types.HabitProgressSnapshot) error {
	return s.put("snapshots", snapshot.HabitID, snapshot)
}

func (s *MemoryStore) GetSnapshot(habitID string) (*types.HabitProgressSnapshot, error) {
	var snap types.HabitProgressSnapshot
	if err := s.get("snapshots", habitID, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemoryStore) DeleteSnapshot(habitID string) error {
	return s.del("snapshots", habitID)
}

// XP event operations

func (s *MemoryStore) AppendXpEvent(event *types.XpEvent) error {
	return s.put("xp_events", event.ID, event)
}

func (s *MemoryStore) ListXpEventsByUser(userID string) ([]*types.XpEvent, error) {
	var events []*types.XpEvent
	s.each("xp_events", func(k string, data []byte) {
		var ev types.XpEvent
		if json.Unmarshal(data, &ev) != nil {
			return
		}
		if ev.UserID == userID {
			events = append(events, &ev)
		}
	})
	return events, nil
}

func (s *MemoryStore) DeleteXpEvent(id string) error {
	return s.del("xp_events", id)
}

// Sync operation operations

func (s *MemoryStore) CreateSyncOperation(op *types.SyncOperation) error {
	return s.put("sync_ops", op.ID, op)
}

func (s *MemoryStore) GetSyncOperation(id string) (*types.SyncOperation, error) {
	var op types.SyncOperation
	if err := s.get("sync_ops", id, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *MemoryStore) ListSyncOperations() ([]*types.SyncOperation, error) {
	return s.listSyncOps(func(*types.SyncOperation) bool { return true })
}

func (s *MemoryStore) ListSyncOperationsByStatus(status types.SyncStatus) ([]*types.SyncOperation, error) {
	return s.listSyncOps(func(op *types.SyncOperation) bool { return op.Status == status })
}

func (s *MemoryStore) listSyncOps(keep func(*types.SyncOperation) bool) ([]*types.SyncOperation, error) {
	var ops []*types.SyncOperation
	s.each("sync_ops", func(k string, data []byte) {
		var op types.SyncOperation
		if json.Unmarshal(data, &op) != nil {
			return
		}
		if keep(&op) {
			ops = append(ops, &op)
		}
	})
	return ops, nil
}

func (s *MemoryStore) UpdateSyncOperation(op *types.SyncOperation) error {
	return s.CreateSyncOperation(op)
}

func (s *MemoryStore) DeleteSyncOperation(id string) error {
	return s.del("sync_ops", id)
}
