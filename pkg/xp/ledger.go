package xp

import (
	"time"

	"github.com/google/uuid"

	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/metrics"
	"github.com/groveapp/grove/pkg/storage"
	"github.com/groveapp/grove/pkg/types"
)

// Fixed award table.
const (
	AwardHabitCompletion = 10
	AwardAllDailyBonus   = 50
	AwardStreak7         = 100
	AwardStreak30        = 500
	AwardDailyLogin      = 5
	AwardRewardedAd      = 50

	// XpPerLevel is the XP required per level: level = totalXp/100 + 1.
	XpPerLevel = 100
)

// Amount returns the fixed award for an event type, or 0 for manual awards.
func Amount(t types.XpEventType) int {
	switch t {
	case types.XpHabitCompletion:
		return AwardHabitCompletion
	case types.XpAllDailyBonus:
		return AwardAllDailyBonus
	case types.XpStreak7:
		return AwardStreak7
	case types.XpStreak30:
		return AwardStreak30
	case types.XpDailyLogin:
		return AwardDailyLogin
	case types.XpRewardedAd:
		return AwardRewardedAd
	default:
		return 0
	}
}

// Level computes the level for a total XP amount.
func Level(totalXp int) int {
	if totalXp < 0 {
		totalXp = 0
	}
	return totalXp/XpPerLevel + 1
}

// Ledger is the append-only XP event log. Total XP and level are always
// sums over the log, never cached counters.
type Ledger struct {
	store storage.Store
	norm  dates.Normalizer
}

// NewLedger creates a ledger over the given store. The normalizer maps
// event instants to logical dates for the idempotency guards.
func NewLedger(store storage.Store, norm dates.Normalizer) *Ledger {
	return &Ledger{store: store, norm: norm}
}

// Append records an XP event. The ID and amount are filled in if unset
// (manual events keep their explicit amount).
func (l *Ledger) Append(ev *types.XpEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Amount == 0 && ev.Type != types.XpManual {
		ev.Amount = Amount(ev.Type)
	}
	if err := l.store.AppendXpEvent(ev); err != nil {
		return err
	}
	// Manual adjustments may be negative; counters only go up.
	if ev.Amount >= 0 {
		metrics.XpAwardedTotal.WithLabelValues(string(ev.Type)).Add(float64(ev.Amount))
	} else {
		metrics.XpDeductedTotal.WithLabelValues(string(ev.Type)).Add(float64(-ev.Amount))
	}
	return nil
}

// Remove deletes an event, used only to roll back a failed action.
func (l *Ledger) Remove(id string) error {
	return l.store.DeleteXpEvent(id)
}

// TotalXP sums all event amounts for the user.
func (l *Ledger) TotalXP(userID string) (int, error) {
	evs, err := l.store.ListXpEventsByUser(userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ev := range evs {
		total += ev.Amount
	}
	return total, nil
}

// UserLevel returns the user's level derived from total XP.
func (l *Ledger) UserLevel(userID string) (int, error) {
	total, err := l.TotalXP(userID)
	if err != nil {
		return 0, err
	}
	return Level(total), nil
}

// HasEventOn reports whether the user already has an event of the given
// type on the logical date. habitID narrows the check when non-empty. This
// is the idempotency guard for daily-login, all-daily-bonus, and milestone
// awards.
func (l *Ledger) HasEventOn(userID string, t types.XpEventType, date dates.LogicalDate, habitID string) (bool, error) {
	n, err := l.CountEventsOn(userID, t, date, habitID)
	return n > 0, err
}

// CountEventsOn counts the user's events of the given type on the logical
// date, used for the rewarded-ad daily cap.
func (l *Ledger) CountEventsOn(userID string, t types.XpEventType, date dates.LogicalDate, habitID string) (int, error) {
	evs, err := l.store.ListXpEventsByUser(userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ev := range evs {
		if ev.Type != t {
			continue
		}
		if habitID != "" && ev.HabitID != habitID {
			continue
		}
		if l.norm.LogicalDateOf(ev.EarnedAt) == date {
			n++
		}
	}
	return n, nil
}

// NewEvent builds an event with its fixed amount.
func NewEvent(userID string, t types.XpEventType, habitID string, earnedAt time.Time) *types.XpEvent {
	return &types.XpEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      t,
		Amount:    Amount(t),
		HabitID:   habitID,
		EarnedAt:  earnedAt,
		CreatedAt: earnedAt,
	}
}
