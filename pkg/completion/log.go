package completion

import (
	"sort"
	"time"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
)

// Log is the append-only completion log for all habits. Writes go through
// Append, which deduplicates within a logical day; records are immutable
// afterwards except for the synced-at marker.
type Log struct {
	store storage.Store
}

// NewLog creates a completion log over the given store.
func NewLog(store storage.Store) *Log {
	return &Log{store: store}
}

// Append adds a record to the log. If a record already exists for the same
// habit and logical date, the existing record is returned and created is
// false — duplicates are deduplicated, not rejected.
func (l *Log) Append(rec *types.CompletionRecord) (existing *types.CompletionRecord, created bool, err error) {
	prior, err := l.store.GetCompletion(rec.HabitID, rec.LogicalDate)
	if err == nil {
		return prior, false, nil
	}
	if !errdefs.IsNotFound(err) {
		return nil, false, err
	}

	if err := l.store.PutCompletion(rec); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Dates returns the distinct logical dates on which the habit was
// completed, ascending.
func (l *Log) Dates(habitID string) ([]dates.LogicalDate, error) {
	recs, err := l.store.ListCompletionsByHabit(habitID)
	if err != nil {
		return nil, err
	}
	ds := make([]dates.LogicalDate, 0, len(recs))
	for _, rec := range recs {
		ds = append(ds, rec.LogicalDate)
	}
	return dates.Dedupe(ds), nil
}

// History returns the habit's records sorted by logical date ascending.
func (l *Log) History(habitID string) ([]*types.CompletionRecord, error) {
	recs, err := l.store.ListCompletionsByHabit(habitID)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].LogicalDate < recs[j].LogicalDate })
	return recs, nil
}

// Get returns the record for a habit on a logical date.
func (l *Log) Get(habitID string, date dates.LogicalDate) (*types.CompletionRecord, error) {
	return l.store.GetCompletion(habitID, date)
}

// Delete removes a record. Only an explicit user delete goes through here.
func (l *Log) Delete(habitID string, date dates.LogicalDate) error {
	return l.store.DeleteCompletion(habitID, date)
}

// MarkSynced stamps the record's synced-at time, the only mutation allowed
// after creation.
func (l *Log) MarkSynced(habitID string, date dates.LogicalDate, at time.Time) error {
	rec, err := l.store.GetCompletion(habitID, date)
	if err != nil {
		return err
	}
	rec.SyncedAt = &at
	return l.store.PutCompletion(rec)
}

// CompletedOn reports whether the habit has a completion on the date.
func (l *Log) CompletedOn(habitID string, date dates.LogicalDate) (bool, error) {
	_, err := l.store.GetCompletion(habitID, date)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, err
}
