package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groveapp/grove/pkg/clock"
	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/outbox"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
	"github.com/groveapp/grove/pkg/xp"
)

const testUser = "user-1"

// okRemote accepts every operation.
type okRemote struct{}

func (okRemote) Create(ctx context.Context, et types.EntityType, id string, payload []byte) error {
	return nil
}
func (okRemote) Update(ctx context.Context, et types.EntityType, id string, payload []byte) error {
	return nil
}
func (okRemote) Delete(ctx context.Context, et types.EntityType, id string) error { return nil }

type fixture struct {
	store *storage.MemoryStore
	clk   *clock.Fake
	queue *outbox.Queue
	coord *Coordinator
}

// newFixture wires a coordinator over a memory store, a fake clock starting
// at noon UTC, and a queue backed by an always-accepting remote.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	clk := clock.NewFake(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	norm := dates.NewNormalizer(3*time.Hour, time.UTC)

	queue, err := outbox.New(store, okRemote{}, clk, nil, nil, outbox.Config{})
	require.NoError(t, err)

	coord := New(store, queue, nil, clk, norm, Config{MaxHabits: 3, RewardedAdDailyCap: 2})
	return &fixture{store: store, clk: clk, queue: queue, coord: coord}
}

func (f *fixture) addHabit(t *testing.T, name string) *types.Habit {
	t.Helper()
	h, err := f.coord.CreateHabit(testUser, name, nil)
	require.NoError(t, err)
	return h
}

// nextDay advances the clock to noon of the following day.
func (f *fixture) nextDay() {
	f.clk.Advance(24 * time.Hour)
}

// TestCreateHabitValidation tests name and cap rules
func TestCreateHabitValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.CreateHabit(testUser, "  ", nil)
	assert.True(t, errdefs.IsValidation(err))

	f.addHabit(t, "meditate")
	_, err = f.coord.CreateHabit(testUser, "meditate", nil)
	assert.True(t, errdefs.IsValidation(err), "duplicate name must be rejected")

	f.addHabit(t, "run")
	f.addHabit(t, "read")
	_, err = f.coord.CreateHabit(testUser, "write", nil)
	assert.True(t, errdefs.IsValidation(err), "habit cap must be enforced")

	// Another user has their own namespace and cap.
	_, err = f.coord.CreateHabit("user-2", "meditate", nil)
	assert.NoError(t, err)
}

// TestCompleteHabit tests the basic completion pipeline
func TestCompleteHabit(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	res, err := f.coord.CompleteHabit(testUser, h.ID, "felt good")
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "felt good", res.Record.Notes)
	assert.Equal(t, 1, res.Snapshot.CurrentStreak)
	assert.Equal(t, types.GrowthSeedling, res.Snapshot.GrowthTier)
	assert.Equal(t, types.DecayHealthy, res.Snapshot.DecayTier)

	// Single habit means completing it completes all scheduled habits.
	assert.True(t, res.AllDailyBonus)
	assert.Equal(t, xp.AwardHabitCompletion+xp.AwardAllDailyBonus, res.XpAwarded)
	assert.True(t, res.Record.WasBonusDay)

	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 60, total)
}

// TestCompleteHabitIdempotentPerDay tests same-day deduplication
func TestCompleteHabitIdempotentPerDay(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	first, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	require.True(t, first.Created)

	f.clk.Advance(2 * time.Hour) // still the same logical day
	second, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Zero(t, second.XpAwarded)

	// No double XP.
	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 60, total)
}

// TestCompleteHabitGraceWindow tests post-midnight attribution
func TestCompleteHabitGraceWindow(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	// 00:45 on the 16th falls inside the grace window of the 15th.
	f.clk.Set(time.Date(2026, 3, 16, 0, 45, 0, 0, time.UTC))
	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", res.Record.LogicalDate.String())

	// Later the same real day is a new logical day, so the streak grows.
	f.clk.Set(time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC))
	res, err = f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "2026-03-16", res.Record.LogicalDate.String())
	assert.Equal(t, 2, res.Snapshot.CurrentStreak)
}

// TestStreakMilestones tests the 7-day milestone award and its guard
func TestStreakMilestones(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	for i := 0; i < 6; i++ {
		res, err := f.coord.CompleteHabit(testUser, h.ID, "")
		require.NoError(t, err)
		assert.Empty(t, res.Milestone, "day %d", i+1)
		f.nextDay()
	}

	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.XpStreak7, res.Milestone)
	assert.True(t, res.Record.WasMilestone)
	assert.Equal(t, 7, res.Snapshot.CurrentStreak)
	assert.Equal(t, xp.AwardHabitCompletion+xp.AwardStreak7+xp.AwardAllDailyBonus, res.XpAwarded)
}

// TestAllDailyBonusRequiresAll tests the bonus fires only on the last
// scheduled habit of the day, once.
func TestAllDailyBonusRequiresAll(t *testing.T) {
	f := newFixture(t)
	h1 := f.addHabit(t, "meditate")
	h2 := f.addHabit(t, "run")

	res, err := f.coord.CompleteHabit(testUser, h1.ID, "")
	require.NoError(t, err)
	assert.False(t, res.AllDailyBonus)

	res, err = f.coord.CompleteHabit(testUser, h2.ID, "")
	require.NoError(t, err)
	assert.True(t, res.AllDailyBonus)
	assert.True(t, res.Record.WasBonusDay)
}

// TestAllDailyBonusRespectsSchedule tests that unscheduled habits do not
// block the bonus.
func TestAllDailyBonusRespectsSchedule(t *testing.T) {
	f := newFixture(t)
	h1 := f.addHabit(t, "meditate")

	// 2026-03-15 is a Sunday; this habit is Monday-only and not scheduled.
	_, err := f.coord.CreateHabit(testUser, "weekly review", []time.Weekday{time.Monday})
	require.NoError(t, err)

	res, err := f.coord.CompleteHabit(testUser, h1.ID, "")
	require.NoError(t, err)
	assert.True(t, res.AllDailyBonus)
}

// TestLevelUp tests level derivation and the level-up flag
func TestLevelUp(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	// 60 XP on day one (completion + all-daily bonus).
	_, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	_, level, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	// Day two crosses 100 XP.
	f.nextDay()
	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Level)
}

// TestDailyLoginIdempotent tests at-most-one login award per logical day
func TestDailyLoginIdempotent(t *testing.T) {
	f := newFixture(t)

	awarded, err := f.coord.DailyLogin(testUser)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = f.coord.DailyLogin(testUser)
	require.NoError(t, err)
	assert.False(t, awarded)

	f.nextDay()
	awarded, err = f.coord.DailyLogin(testUser)
	require.NoError(t, err)
	assert.True(t, awarded)

	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 2*xp.AwardDailyLogin, total)
}

// TestRewardedAdCap tests the per-day ad award cap
func TestRewardedAdCap(t *testing.T) {
	f := newFixture(t) // cap is 2 in the fixture

	for i := 0; i < 2; i++ {
		awarded, err := f.coord.RewardedAd(testUser)
		require.NoError(t, err)
		assert.True(t, awarded, "award %d", i+1)
	}

	awarded, err := f.coord.RewardedAd(testUser)
	require.NoError(t, err)
	assert.False(t, awarded)

	// The cap resets with the logical day.
	f.nextDay()
	awarded, err = f.coord.RewardedAd(testUser)
	require.NoError(t, err)
	assert.True(t, awarded)
}

// TestManualAward tests manual adjustments
func TestManualAward(t *testing.T) {
	f := newFixture(t)

	assert.True(t, errdefs.IsValidation(f.coord.ManualAward(testUser, 0, "")))

	require.NoError(t, f.coord.ManualAward(testUser, -30, ""))
	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, -30, total)
}

// TestDeleteCompletion tests removal and snapshot rebuild
func TestDeleteCompletion(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.CurrentStreak)

	require.NoError(t, f.coord.DeleteCompletion(h.ID, res.Record.LogicalDate))

	snap, err := f.coord.Progress(h.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CurrentStreak)
	assert.Equal(t, 0, snap.TotalCompletions)

	err = f.coord.DeleteCompletion(h.ID, res.Record.LogicalDate)
	assert.True(t, errdefs.IsNotFound(err))
}

// TestDeleteHabit tests cascade removal
func TestDeleteHabit(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")
	_, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.coord.DeleteHabit(h.ID))

	_, err = f.store.GetHabit(h.ID)
	assert.True(t, errdefs.IsNotFound(err))
	recs, err := f.store.ListCompletionsByHabit(h.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = f.store.GetSnapshot(h.ID)
	assert.True(t, errdefs.IsNotFound(err))

	assert.True(t, errdefs.IsNotFound(f.coord.DeleteHabit(h.ID)))
}

// TestWeather tests aggregate weather derivation
func TestWeather(t *testing.T) {
	f := newFixture(t)
	h1 := f.addHabit(t, "meditate")
	f.addHabit(t, "run")

	condition, rate, err := f.coord.Weather(testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WeatherStormy, condition)
	assert.Equal(t, 0.0, rate)

	_, err = f.coord.CompleteHabit(testUser, h1.ID, "")
	require.NoError(t, err)

	condition, rate, err = f.coord.Weather(testUser)
	require.NoError(t, err)
	assert.Equal(t, types.WeatherPartlyCloudy, condition)
	assert.Equal(t, 0.5, rate)
}

// TestDecayAfterMissedDays tests snapshot decay derivation end to end
func TestDecayAfterMissedDays(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	_, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)

	// Miss two days.
	f.nextDay()
	f.nextDay()
	f.nextDay()

	snap, err := f.coord.Progress(h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DecayCloudy, snap.DecayTier)
	assert.Equal(t, 0, snap.CurrentStreak)
	assert.Equal(t, 2, snap.RecoveryRemaining)

	// Completing again keeps the tier until recovery is met.
	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.DecayCloudy, res.Snapshot.DecayTier)
	assert.Equal(t, 1, res.Snapshot.RecoveryRemaining)

	f.nextDay()
	res, err = f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.DecayHealthy, res.Snapshot.DecayTier)
}

// TestSyncPipeline tests that completions flow through the outbox and get
// their synced-at stamp.
func TestSyncPipeline(t *testing.T) {
	f := newFixture(t)
	h := f.addHabit(t, "meditate")

	res, err := f.coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.False(t, res.SyncBacklogged)
	require.Nil(t, res.Record.SyncedAt)

	// Habit create + completion create + two XP events.
	ops, err := f.store.ListSyncOperations()
	require.NoError(t, err)
	assert.Len(t, ops, 4)

	require.NoError(t, f.queue.Drain(context.Background()))

	counts, err := f.queue.Status()
	require.NoError(t, err)
	assert.Equal(t, 4, counts[types.SyncSynced])

	rec, err := f.store.GetCompletion(h.ID, res.Record.LogicalDate)
	require.NoError(t, err)
	assert.NotNil(t, rec.SyncedAt)
}

// flakySyncStore fails the nth CreateSyncOperation call.
type flakySyncStore struct {
	storage.Store
	calls  int
	failOn int
}

func (s *flakySyncStore) CreateSyncOperation(op *types.SyncOperation) error {
	s.calls++
	if s.failOn != 0 && s.calls == s.failOn {
		return errdefs.LocalStore("create sync_ops", assert.AnError)
	}
	return s.Store.CreateSyncOperation(op)
}

// TestCompleteHabitEnqueueFailureUnwindsQueue tests that a partly-enqueued
// completion batch leaves nothing behind: no record, no XP, no sync ops.
func TestCompleteHabitEnqueueFailureUnwindsQueue(t *testing.T) {
	flaky := &flakySyncStore{Store: storage.NewMemoryStore()}
	clk := clock.NewFake(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	norm := dates.NewNormalizer(3*time.Hour, time.UTC)
	queue, err := outbox.New(flaky, okRemote{}, clk, nil, nil, outbox.Config{})
	require.NoError(t, err)
	coord := New(flaky, queue, nil, clk, norm, Config{MaxHabits: 3, RewardedAdDailyCap: 2})

	h, err := coord.CreateHabit(testUser, "meditate", nil)
	require.NoError(t, err)

	// Completing the only habit queues three creates: the record, the
	// completion XP event and the all-daily bonus event. Fail the last one.
	flaky.failOn = 4
	_, err = coord.CompleteHabit(testUser, h.ID, "")
	require.Error(t, err)

	recs, err := flaky.ListCompletionsByHabit(h.ID)
	require.NoError(t, err)
	assert.Empty(t, recs, "completion must be rolled back")

	evs, err := flaky.ListXpEventsByUser(testUser)
	require.NoError(t, err)
	assert.Empty(t, evs, "XP events must be rolled back")

	ops, err := flaky.ListSyncOperations()
	require.NoError(t, err)
	require.Len(t, ops, 1, "only the habit create may stay queued")
	assert.Equal(t, types.EntityHabit, ops[0].EntityType)

	// The day is still completable once the store recovers.
	flaky.failOn = 0
	res, err := coord.CompleteHabit(testUser, h.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Created)
}

// TestAllDailyBonusConcurrentCompletions tests that completions racing on
// different habits award the bonus exactly once.
func TestAllDailyBonusConcurrentCompletions(t *testing.T) {
	f := newFixture(t)
	read := f.addHabit(t, "read")
	run := f.addHabit(t, "run")

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, h := range []*types.Habit{read, run} {
		wg.Add(1)
		go func(i int, habitID string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.coord.CompleteHabit(testUser, habitID, "")
		}(i, h.ID)
	}
	close(start)
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	evs, err := f.store.ListXpEventsByUser(testUser)
	require.NoError(t, err)
	bonuses := 0
	for _, ev := range evs {
		if ev.Type == types.XpAllDailyBonus {
			bonuses++
		}
	}
	assert.Equal(t, 1, bonuses, "bonus must fire once per logical date")

	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 2*xp.AwardHabitCompletion+xp.AwardAllDailyBonus, total)
}

// TestDailyLoginConcurrent tests the once-per-day guard under racing calls
func TestDailyLoginConcurrent(t *testing.T) {
	f := newFixture(t)

	start := make(chan struct{})
	var wg sync.WaitGroup
	awarded := make([]bool, 2)
	errs := make([]error, 2)
	for i := range awarded {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			awarded[i], errs[i] = f.coord.DailyLogin(testUser)
		}(i)
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, awarded[0], awarded[1], "exactly one call may award")

	total, _, err := f.coord.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, xp.AwardDailyLogin, total)
}
