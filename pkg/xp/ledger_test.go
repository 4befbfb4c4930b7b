package xp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
)

const testUser = "user-1"

func newTestLedger() *Ledger {
	norm := dates.NewNormalizer(3*time.Hour, time.UTC)
	return NewLedger(storage.NewMemoryStore(), norm)
}

// TestAmount tests the fixed award table
func TestAmount(t *testing.T) {
	tests := []struct {
		typ  types.XpEventType
		want int
	}{
		{types.XpHabitCompletion, 10},
		{types.XpAllDailyBonus, 50},
		{types.XpStreak7, 100},
		{types.XpStreak30, 500},
		{types.XpDailyLogin, 5},
		{types.XpRewardedAd, 50},
		{types.XpManual, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Amount(tt.typ), "type=%s", tt.typ)
	}
}

// TestLevel tests level derivation from total XP
func TestLevel(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{145, 2},
		{200, 3},
		{-10, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.total), "total=%d", tt.total)
	}
}

// TestAppendAndTotal tests that totals are sums over the log
func TestAppendAndTotal(t *testing.T) {
	l := newTestLedger()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(NewEvent(testUser, types.XpHabitCompletion, "habit-1", now)))
	require.NoError(t, l.Append(NewEvent(testUser, types.XpDailyLogin, "", now)))

	total, err := l.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	level, err := l.UserLevel(testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	// Other users are unaffected.
	total, err = l.TotalXP("someone-else")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

// TestManualAmountPreserved tests that manual events keep explicit amounts,
// including negative deductions alongside regular awards.
func TestManualAmountPreserved(t *testing.T) {
	l := newTestLedger()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(NewEvent(testUser, types.XpHabitCompletion, "habit-1", now)))

	ev := &types.XpEvent{
		UserID:    testUser,
		Type:      types.XpManual,
		Amount:    -25,
		EarnedAt:  now,
		CreatedAt: now,
	}
	require.NoError(t, l.Append(ev))
	assert.NotEmpty(t, ev.ID)

	total, err := l.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, AwardHabitCompletion-25, total)
}

// TestRemove tests rollback removal
func TestRemove(t *testing.T) {
	l := newTestLedger()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	ev := NewEvent(testUser, types.XpStreak7, "habit-1", now)
	require.NoError(t, l.Append(ev))
	require.NoError(t, l.Remove(ev.ID))

	total, err := l.TotalXP(testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

// TestHasEventOn tests the logical-date idempotency guard
func TestHasEventOn(t *testing.T) {
	l := newTestLedger()

	// 00:45 on the 16th normalizes to the 15th under the 3h grace.
	lateNight := time.Date(2026, 3, 16, 0, 45, 0, 0, time.UTC)
	require.NoError(t, l.Append(NewEvent(testUser, types.XpDailyLogin, "", lateNight)))

	d15, err := dates.Parse("2026-03-15")
	require.NoError(t, err)
	d16, err := dates.Parse("2026-03-16")
	require.NoError(t, err)

	has, err := l.HasEventOn(testUser, types.XpDailyLogin, d15, "")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = l.HasEventOn(testUser, types.XpDailyLogin, d16, "")
	require.NoError(t, err)
	assert.False(t, has)
}

// TestHasEventOnHabitFilter tests milestone guards scoped to a habit
func TestHasEventOnHabitFilter(t *testing.T) {
	l := newTestLedger()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	d := dates.FromTime(now)

	require.NoError(t, l.Append(NewEvent(testUser, types.XpStreak7, "habit-1", now)))

	has, err := l.HasEventOn(testUser, types.XpStreak7, d, "habit-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = l.HasEventOn(testUser, types.XpStreak7, d, "habit-2")
	require.NoError(t, err)
	assert.False(t, has)
}

// TestCountEventsOn tests the per-day counter behind the ad cap
func TestCountEventsOn(t *testing.T) {
	l := newTestLedger()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	d := dates.FromTime(now)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(NewEvent(testUser, types.XpRewardedAd, "", now.Add(time.Duration(i)*time.Hour))))
	}
	// Next calendar day, outside the grace window.
	require.NoError(t, l.Append(NewEvent(testUser, types.XpRewardedAd, "", now.Add(24*time.Hour))))

	n, err := l.CountEventsOn(testUser, types.XpRewardedAd, d, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
