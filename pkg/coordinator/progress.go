package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/decay"
	"github.com/groveapp/grove/pkg/events"
	"github.com/groveapp/grove/pkg/growth"
	"github.com/groveapp/grove/pkg/metrics"
	"github.com/groveapp/grove/pkg/streak"
	"github.com/groveapp/grove/pkg/types"
	"github.com/groveapp/grove/pkg/weather"
)

// recomputeSnapshot rebuilds the habit's snapshot wholesale from the
// completion log and persists it. Snapshots are never patched in place.
func (c *Coordinator) recomputeSnapshot(habit *types.Habit, today dates.LogicalDate) (*types.HabitProgressSnapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SnapshotRecomputeDuration)

	ds, err := c.cl.Dates(habit.ID)
	if err != nil {
		return nil, err
	}

	current := streak.Current(ds, today)
	dec := decay.Evaluate(ds, today)

	snap := &types.HabitProgressSnapshot{
		HabitID:           habit.ID,
		CurrentStreak:     current,
		LongestStreak:     streak.Longest(ds),
		DecayTier:         dec.Tier,
		RecoveryRemaining: dec.RecoveryRemaining,
		GrowthTier:        growth.TierFor(current),
		TotalCompletions:  len(ds),
	}
	if len(ds) > 0 {
		last := ds[len(ds)-1]
		snap.LastCompletionLogicalDate = &last
	}

	if err := c.store.PutSnapshot(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Weather derives the user's aggregate weather for today from the ratio of
// completed to scheduled habits. Nothing scheduled counts as a perfect day.
func (c *Coordinator) Weather(userID string) (types.WeatherCondition, float64, error) {
	today := c.norm.Today(c.clk.Now())

	habits, err := c.store.ListHabits(userID)
	if err != nil {
		return "", 0, err
	}

	scheduled, completed := 0, 0
	for _, h := range habits {
		if !h.ScheduledOn(today) {
			continue
		}
		scheduled++
		done, err := c.cl.CompletedOn(h.ID, today)
		if err != nil {
			return "", 0, err
		}
		if done {
			completed++
		}
	}

	rate := weather.Rate(completed, scheduled)
	return weather.ConditionForRate(rate), rate, nil
}

// allScheduledComplete reports whether every habit scheduled today has a
// completion on today.
func (c *Coordinator) allScheduledComplete(userID string, today dates.LogicalDate) (bool, error) {
	habits, err := c.store.ListHabits(userID)
	if err != nil {
		return false, err
	}

	any := false
	for _, h := range habits {
		if !h.ScheduledOn(today) {
			continue
		}
		any = true
		done, err := c.cl.CompletedOn(h.ID, today)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
	}
	return any, nil
}

// enqueue marshals the payload and hands the operation to the sync queue.
// A nil queue (local-only mode) is a no-op. Backlog pressure is logged, not
// surfaced; the local write already happened.
func (c *Coordinator) enqueue(kind types.SyncKind, entityType types.EntityType, entityID string, payload any) error {
	_, backlogged, err := c.enqueueOp(kind, entityType, entityID, payload)
	if err != nil {
		return err
	}
	if backlogged {
		c.logger.Warn().Str("entity", string(entityType)).Str("entity_id", entityID).Msg("sync queue over capacity")
	}
	return nil
}

func (c *Coordinator) enqueueOp(kind types.SyncKind, entityType types.EntityType, entityID string, payload any) (opID string, backlogged bool, err error) {
	if c.queue == nil {
		return "", false, nil
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", false, err
		}
		raw = b
	}
	op, backlogged, err := c.queue.Enqueue(kind, entityType, entityID, raw)
	if err != nil {
		return "", false, err
	}
	return op.ID, backlogged, nil
}

// enqueueCompletion queues the completion record and its XP events as one
// batch of create operations, in causal order. queued always holds the IDs
// of the operations durably enqueued so far, so a failing batch can be
// unwound completely.
func (c *Coordinator) enqueueCompletion(rec *types.CompletionRecord, xpEvents []*types.XpEvent) (queued []string, backlogged bool, err error) {
	id, b, err := c.enqueueOp(types.SyncCreate, types.EntityCompletion, rec.ID, rec)
	if err != nil {
		return queued, false, err
	}
	queued = append(queued, id)
	backlogged = b
	for _, ev := range xpEvents {
		id, b, err := c.enqueueOp(types.SyncCreate, types.EntityXpEvent, ev.ID, ev)
		if err != nil {
			return queued, backlogged, err
		}
		queued = append(queued, id)
		backlogged = backlogged || b
	}
	return queued, backlogged, nil
}

// dequeue removes operations enqueued by an action that is being rolled
// back, so the queue never replays a mutation whose local state is gone.
func (c *Coordinator) dequeue(opIDs []string) {
	if c.queue == nil {
		return
	}
	for _, id := range opIDs {
		if id == "" {
			continue
		}
		if err := c.queue.Remove(id); err != nil {
			c.logger.Warn().Err(err).Str("op_id", id).Msg("could not remove rolled-back sync operation")
		}
	}
}

// publishProgress emits the progress events a completion produced. Events
// are advisory; consumers decide what to do with them.
func (c *Coordinator) publishProgress(habit *types.Habit, prev, snap *types.HabitProgressSnapshot, milestone types.XpEventType, allDaily bool, prevLevel, level int) {
	if c.broker == nil {
		return
	}
	now := c.clk.Now()

	if milestone != "" {
		c.broker.Publish(&events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventStreakMilestone,
			Timestamp: now,
			UserID:    habit.UserID,
			HabitID:   habit.ID,
			Message:   fmt.Sprintf("habit %q reached a %d-day streak", habit.Name, snap.CurrentStreak),
			Metadata:  map[string]string{"streak": fmt.Sprintf("%d", snap.CurrentStreak)},
		})
	}

	if prev != nil && prev.DecayTier != snap.DecayTier {
		c.broker.Publish(&events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventDecayTierChanged,
			Timestamp: now,
			UserID:    habit.UserID,
			HabitID:   habit.ID,
			Message:   fmt.Sprintf("habit %q moved from %s to %s", habit.Name, prev.DecayTier, snap.DecayTier),
			Metadata: map[string]string{
				"from": string(prev.DecayTier),
				"to":   string(snap.DecayTier),
			},
		})
	}

	if allDaily {
		c.broker.Publish(&events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventAllDailyBonus,
			Timestamp: now,
			UserID:    habit.UserID,
			Message:   "all scheduled habits completed today",
		})
	}

	if level > prevLevel {
		c.broker.Publish(&events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventLevelUp,
			Timestamp: now,
			UserID:    habit.UserID,
			Message:   fmt.Sprintf("reached level %d", level),
			Metadata:  map[string]string{"level": fmt.Sprintf("%d", level)},
		})
	}
}

// onOperationSynced stamps completion records once their create operation
// reaches the remote. Other entity types need no local follow-up.
func (c *Coordinator) onOperationSynced(op *types.SyncOperation) {
	if op.EntityType != types.EntityCompletion || op.Kind != types.SyncCreate {
		return
	}
	var rec types.CompletionRecord
	if err := json.Unmarshal(op.Payload, &rec); err != nil {
		c.logger.Warn().Err(err).Str("op_id", op.ID).Msg("unreadable completion payload on synced operation")
		return
	}

	mu := c.habitLock(rec.HabitID)
	mu.Lock()
	defer mu.Unlock()

	if err := c.cl.MarkSynced(rec.HabitID, rec.LogicalDate, c.clk.Now()); err != nil {
		// Record may have been deleted while the operation was in flight.
		c.logger.Debug().Err(err).Str("habit_id", rec.HabitID).Msg("could not stamp synced completion")
	}
}

// streakWith computes the streak as it will be once today's completion is
// appended, which is what decides milestone awards.
func streakWith(ds []dates.LogicalDate, today dates.LogicalDate) int {
	return streak.Current(dates.Dedupe(append(ds, today)), today)
}

// totalAmount sums the awards a single completion produced.
func totalAmount(evs []*types.XpEvent) int {
	total := 0
	for _, ev := range evs {
		total += ev.Amount
	}
	return total
}
