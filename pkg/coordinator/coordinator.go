package coordinator

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/groveapp/grove/pkg/clock"
	"github.com/groveapp/grove/pkg/completion"
	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/events"
	"github.com/groveapp/grove/pkg/log"
	"github.com/groveapp/grove/pkg/metrics"
	"github.com/groveapp/grove/pkg/outbox"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
	"github.com/groveapp/grove/pkg/xp"
)

// Config holds coordinator limits.
type Config struct {
	MaxHabits          int // habit-count limit per user
	RewardedAdDailyCap int // rewarded-ad awards per logical date
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxHabits:          20,
		RewardedAdDailyCap: 3,
	}
}

// Coordinator orchestrates user actions into the append-only logs, the
// derived snapshots, the XP ledger, and the sync queue. It is the only
// writer of the completion log and XP ledger, and it serializes all
// mutations per habit.
type Coordinator struct {
	store  storage.Store
	cl     *completion.Log
	ledger *xp.Ledger
	queue  *outbox.Queue
	broker *events.Broker
	clk    clock.Clock
	norm   dates.Normalizer
	cfg    Config
	logger zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per-habit write serialization

	userLocksMu sync.Mutex
	userLocks   map[string]*sync.Mutex // serializes user-scoped XP guards
}

// New wires a coordinator. broker may be nil; queue may be nil in tests
// that exercise local behavior only.
func New(store storage.Store, queue *outbox.Queue, broker *events.Broker, clk clock.Clock, norm dates.Normalizer, cfg Config) *Coordinator {
	if cfg.MaxHabits <= 0 {
		cfg.MaxHabits = DefaultConfig().MaxHabits
	}
	if cfg.RewardedAdDailyCap <= 0 {
		cfg.RewardedAdDailyCap = DefaultConfig().RewardedAdDailyCap
	}

	c := &Coordinator{
		store:     store,
		cl:        completion.NewLog(store),
		ledger:    xp.NewLedger(store, norm),
		queue:     queue,
		broker:    broker,
		clk:       clk,
		norm:      norm,
		cfg:       cfg,
		logger:    log.WithComponent("coordinator"),
		locks:     make(map[string]*sync.Mutex),
		userLocks: make(map[string]*sync.Mutex),
	}

	if queue != nil {
		queue.OnSynced = c.onOperationSynced
	}
	return c
}

// habitLock returns the mutex serializing writes for a habit.
func (c *Coordinator) habitLock(habitID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	mu, ok := c.locks[habitID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[habitID] = mu
	}
	return mu
}

// userLock returns the mutex serializing a user's check-then-award XP
// guards. Always acquired after the habit lock, never before, so the two
// levels cannot deadlock.
func (c *Coordinator) userLock(userID string) *sync.Mutex {
	c.userLocksMu.Lock()
	defer c.userLocksMu.Unlock()
	mu, ok := c.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		c.userLocks[userID] = mu
	}
	return mu
}

// CreateHabit validates and persists a new habit, then queues its remote
// creation.
func (c *Coordinator) CreateHabit(userID, name string, days []time.Weekday) (*types.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errdefs.Validationf("habit name must not be empty")
	}

	if _, err := c.store.GetHabitByName(userID, name); err == nil {
		return nil, errdefs.Validationf("habit %q already exists", name)
	} else if !errdefs.IsNotFound(err) {
		return nil, err
	}

	existing, err := c.store.ListHabits(userID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= c.cfg.MaxHabits {
		return nil, errdefs.Validationf("habit limit of %d reached", c.cfg.MaxHabits)
	}

	now := c.clk.Now()
	habit := &types.Habit{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          name,
		ScheduledDays: days,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.CreateHabit(habit); err != nil {
		return nil, err
	}

	if err := c.enqueue(types.SyncCreate, types.EntityHabit, habit.ID, habit); err != nil {
		// Nothing may be queued if the local action fails as a whole.
		_ = c.store.DeleteHabit(habit.ID)
		return nil, err
	}
	return habit, nil
}

// DeleteHabit removes a habit with its completions and snapshot, and
// queues the remote delete.
func (c *Coordinator) DeleteHabit(habitID string) error {
	mu := c.habitLock(habitID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := c.store.GetHabit(habitID); err != nil {
		return err
	}
	if err := c.store.DeleteCompletionsByHabit(habitID); err != nil {
		return err
	}
	if err := c.store.DeleteSnapshot(habitID); err != nil {
		return err
	}
	if err := c.store.DeleteHabit(habitID); err != nil {
		return err
	}
	return c.enqueue(types.SyncDelete, types.EntityHabit, habitID, nil)
}

// CompletionResult reports what a completion produced.
type CompletionResult struct {
	Record         *types.CompletionRecord
	Snapshot       *types.HabitProgressSnapshot
	Created        bool // false when the day was already complete
	XpAwarded      int
	Milestone      types.XpEventType // streak_7 or streak_30 when one fired
	AllDailyBonus  bool
	Level          int
	LeveledUp      bool
	SyncBacklogged bool
}

// CompleteHabit records a completion for the current instant. The full
// pipeline runs synchronously: append to the log, recompute the snapshot,
// append XP events, publish progress events, enqueue sync operations. A
// second completion on the same logical date deduplicates and awards
// nothing.
func (c *Coordinator) CompleteHabit(userID, habitID, notes string) (*CompletionResult, error) {
	mu := c.habitLock(habitID)
	mu.Lock()
	defer mu.Unlock()

	habit, err := c.store.GetHabit(habitID)
	if err != nil {
		return nil, err
	}

	now := c.clk.Now()
	today := c.norm.Today(now)

	if done, err := c.cl.CompletedOn(habitID, today); err != nil {
		return nil, err
	} else if done {
		rec, err := c.cl.Get(habitID, today)
		if err != nil {
			return nil, err
		}
		snap, err := c.recomputeSnapshot(habit, today)
		if err != nil {
			return nil, err
		}
		level, err := c.ledger.UserLevel(userID)
		if err != nil {
			return nil, err
		}
		return &CompletionResult{Record: rec, Snapshot: snap, Created: false, Level: level}, nil
	}

	prevSnap, _ := c.store.GetSnapshot(habitID)
	prevLevel, err := c.ledger.UserLevel(userID)
	if err != nil {
		return nil, err
	}

	// Streak including today's completion decides milestones.
	ds, err := c.cl.Dates(habitID)
	if err != nil {
		return nil, err
	}
	newStreak := streakWith(ds, today)

	milestone := types.XpEventType("")
	switch newStreak {
	case 7:
		milestone = types.XpStreak7
	case 30:
		milestone = types.XpStreak30
	}
	if milestone != "" {
		// Milestones fire once per crossing; guard against replays.
		if has, err := c.ledger.HasEventOn(userID, milestone, today, habitID); err != nil {
			return nil, err
		} else if has {
			milestone = ""
		}
	}

	rec := &types.CompletionRecord{
		ID:           uuid.New().String(),
		HabitID:      habitID,
		UserID:       userID,
		OccurredAt:   now,
		LogicalDate:  today,
		XpAwarded:    xp.AwardHabitCompletion,
		WasMilestone: milestone != "",
		Notes:        notes,
		CreatedAt:    now,
	}

	var appended []*types.XpEvent
	rollback := func() {
		for _, ev := range appended {
			_ = c.ledger.Remove(ev.ID)
		}
		_ = c.cl.Delete(habitID, today)
	}

	award := func(t types.XpEventType, hID string) error {
		ev := xp.NewEvent(userID, t, hID, now)
		if err := c.ledger.Append(ev); err != nil {
			return err
		}
		appended = append(appended, ev)
		rec.XpAwarded = totalAmount(appended)
		return nil
	}

	if _, created, err := c.cl.Append(rec); err != nil {
		return nil, err
	} else if !created {
		// Lost a race we should never lose under the habit lock.
		return nil, errdefs.Validationf("habit already completed on %s", today)
	}
	metrics.CompletionsTotal.Inc()

	if err := award(types.XpHabitCompletion, habitID); err != nil {
		rollback()
		return nil, err
	}
	if milestone != "" {
		if err := award(milestone, habitID); err != nil {
			rollback()
			return nil, err
		}
	}

	allDaily, err := c.awardAllDailyBonus(userID, today, award)
	if err != nil {
		rollback()
		return nil, err
	}
	rec.WasBonusDay = allDaily

	// Record carries its final award flags.
	if err := c.store.PutCompletion(rec); err != nil {
		rollback()
		return nil, err
	}

	snap, err := c.recomputeSnapshot(habit, today)
	if err != nil {
		rollback()
		return nil, err
	}

	queued, backlogged, err := c.enqueueCompletion(rec, appended)
	if err != nil {
		// Nothing may stay queued when the action fails as a whole.
		c.dequeue(queued)
		rollback()
		return nil, err
	}

	level, err := c.ledger.UserLevel(userID)
	if err != nil {
		return nil, err
	}

	c.publishProgress(habit, prevSnap, snap, milestone, allDaily, prevLevel, level)

	logger := log.WithHabitID(habitID)
	logger.Debug().
		Str("logical_date", today.String()).
		Int("xp_awarded", rec.XpAwarded).
		Int("streak", snap.CurrentStreak).
		Msg("completion recorded")

	return &CompletionResult{
		Record:         rec,
		Snapshot:       snap,
		Created:        true,
		XpAwarded:      rec.XpAwarded,
		Milestone:      milestone,
		AllDailyBonus:  allDaily,
		Level:          level,
		LeveledUp:      level > prevLevel,
		SyncBacklogged: backlogged,
	}, nil
}

// awardAllDailyBonus checks whether today earned the all-daily bonus and
// awards it at most once per logical date. The check and the append run
// under the user lock: two completions on different habits are serialized
// only per habit, so without it both could pass the guard and double-award.
func (c *Coordinator) awardAllDailyBonus(userID string, today dates.LogicalDate, award func(types.XpEventType, string) error) (bool, error) {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	allDaily, err := c.allScheduledComplete(userID, today)
	if err != nil || !allDaily {
		return false, err
	}
	if has, err := c.ledger.HasEventOn(userID, types.XpAllDailyBonus, today, ""); err != nil {
		return false, err
	} else if has {
		return false, nil
	}
	if err := award(types.XpAllDailyBonus, ""); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCompletion removes a completion (explicit user delete only) and
// rebuilds the snapshot.
func (c *Coordinator) DeleteCompletion(habitID string, date dates.LogicalDate) error {
	mu := c.habitLock(habitID)
	mu.Lock()
	defer mu.Unlock()

	habit, err := c.store.GetHabit(habitID)
	if err != nil {
		return err
	}
	rec, err := c.cl.Get(habitID, date)
	if err != nil {
		return err
	}
	if err := c.cl.Delete(habitID, date); err != nil {
		return err
	}
	if _, err := c.recomputeSnapshot(habit, c.norm.Today(c.clk.Now())); err != nil {
		return err
	}
	return c.enqueue(types.SyncDelete, types.EntityCompletion, rec.ID, nil)
}

// DailyLogin awards login XP at most once per logical date. The user lock
// keeps concurrent logins from both passing the once-per-day guard.
func (c *Coordinator) DailyLogin(userID string) (awarded bool, err error) {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	now := c.clk.Now()
	today := c.norm.Today(now)

	if has, err := c.ledger.HasEventOn(userID, types.XpDailyLogin, today, ""); err != nil {
		return false, err
	} else if has {
		return false, nil
	}

	ev := xp.NewEvent(userID, types.XpDailyLogin, "", now)
	if err := c.ledger.Append(ev); err != nil {
		return false, err
	}
	if err := c.enqueue(types.SyncCreate, types.EntityXpEvent, ev.ID, ev); err != nil {
		_ = c.ledger.Remove(ev.ID)
		return false, err
	}

	logger := log.WithUserID(userID)
	logger.Debug().Str("logical_date", today.String()).Msg("daily login awarded")
	return true, nil
}

// RewardedAd awards ad XP up to the configured daily cap. The cap check and
// the append run under the user lock.
func (c *Coordinator) RewardedAd(userID string) (awarded bool, err error) {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	now := c.clk.Now()
	today := c.norm.Today(now)

	n, err := c.ledger.CountEventsOn(userID, types.XpRewardedAd, today, "")
	if err != nil {
		return false, err
	}
	if n >= c.cfg.RewardedAdDailyCap {
		return false, nil
	}

	ev := xp.NewEvent(userID, types.XpRewardedAd, "", now)
	if err := c.ledger.Append(ev); err != nil {
		return false, err
	}
	if err := c.enqueue(types.SyncCreate, types.EntityXpEvent, ev.ID, ev); err != nil {
		_ = c.ledger.Remove(ev.ID)
		return false, err
	}

	logger := log.WithUserID(userID)
	logger.Debug().Str("logical_date", today.String()).Int("ads_today", n+1).Msg("rewarded ad awarded")
	return true, nil
}

// ManualAward appends a manual XP adjustment.
func (c *Coordinator) ManualAward(userID string, amount int, habitID string) error {
	if amount == 0 {
		return errdefs.Validationf("manual award amount must not be zero")
	}
	now := c.clk.Now()
	ev := &types.XpEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      types.XpManual,
		Amount:    amount,
		HabitID:   habitID,
		EarnedAt:  now,
		CreatedAt: now,
	}
	if err := c.ledger.Append(ev); err != nil {
		return err
	}
	if err := c.enqueue(types.SyncCreate, types.EntityXpEvent, ev.ID, ev); err != nil {
		_ = c.ledger.Remove(ev.ID)
		return err
	}
	return nil
}

// Progress rebuilds and returns the habit's snapshot.
func (c *Coordinator) Progress(habitID string) (*types.HabitProgressSnapshot, error) {
	habit, err := c.store.GetHabit(habitID)
	if err != nil {
		return nil, err
	}
	return c.recomputeSnapshot(habit, c.norm.Today(c.clk.Now()))
}

// TotalXP returns the user's total XP and level.
func (c *Coordinator) TotalXP(userID string) (total, level int, err error) {
	total, err = c.ledger.TotalXP(userID)
	if err != nil {
		return 0, 0, err
	}
	return total, xp.Level(total), nil
}
