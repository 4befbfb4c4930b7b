package types

import (
	"encoding/json"
	"time"

	"github.com/groveapp/grove/pkg/dates"
)

// Habit is a user-defined recurring activity.
type Habit struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Notes         string         `json:"notes,omitempty"`
	ScheduledDays []time.Weekday `json:"scheduled_days,omitempty"` // empty = every day
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ScheduledOn reports whether the habit is scheduled on the given date.
func (h *Habit) ScheduledOn(d dates.LogicalDate) bool {
	if len(h.ScheduledDays) == 0 {
		return true
	}
	wd := d.Weekday()
	for _, day := range h.ScheduledDays {
		if day == wd {
			return true
		}
	}
	return false
}

// CompletionRecord is one entry in the append-only completion log. At most
// one record exists per (habit, logical date); duplicates within the same
// logical day are deduplicated, not rejected. Immutable after creation
// except SyncedAt.
type CompletionRecord struct {
	ID           string            `json:"id"`
	HabitID      string            `json:"habit_id"`
	UserID       string            `json:"user_id"`
	OccurredAt   time.Time         `json:"occurred_at"`
	LogicalDate  dates.LogicalDate `json:"logical_date"`
	XpAwarded    int               `json:"xp_awarded"`
	WasBonusDay  bool              `json:"was_bonus_day"`
	WasMilestone bool              `json:"was_milestone"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	SyncedAt     *time.Time        `json:"synced_at,omitempty"`
}

// DecayTier is the penalty state derived from consecutive missed days.
type DecayTier string

const (
	DecayHealthy DecayTier = "healthy"
	DecayWarning DecayTier = "warning"
	DecayCloudy  DecayTier = "cloudy"
	DecayStormy  DecayTier = "stormy"
)

// GrowthTier is the visual progression state derived from streak length.
type GrowthTier string

const (
	GrowthSeedling    GrowthTier = "seedling"
	GrowthGrowing     GrowthTier = "growing"
	GrowthFlourishing GrowthTier = "flourishing"
)

// WeatherCondition is the five-tier condition derived from the aggregate
// same-day completion rate.
type WeatherCondition string

const (
	WeatherRainbow      WeatherCondition = "rainbow"
	WeatherSunny        WeatherCondition = "sunny"
	WeatherPartlyCloudy WeatherCondition = "partly_cloudy"
	WeatherCloudy       WeatherCondition = "cloudy"
	WeatherStormy       WeatherCondition = "stormy"
)

// HabitProgressSnapshot is a materialized view of a habit's progress. It is
// recomputed wholesale from the completion log on every change and is never
// authoritative.
type HabitProgressSnapshot struct {
	HabitID                   string             `json:"habit_id"`
	CurrentStreak             int                `json:"current_streak"`
	LongestStreak             int                `json:"longest_streak"`
	DecayTier                 DecayTier          `json:"decay_tier"`
	RecoveryRemaining         int                `json:"recovery_remaining"`
	GrowthTier                GrowthTier         `json:"growth_tier"`
	LastCompletionLogicalDate *dates.LogicalDate `json:"last_completion_logical_date,omitempty"`
	TotalCompletions          int                `json:"total_completions"`
}

// XpEventType identifies how XP was earned.
type XpEventType string

const (
	XpHabitCompletion XpEventType = "habit_completion"
	XpAllDailyBonus   XpEventType = "all_daily_bonus"
	XpStreak7         XpEventType = "streak_7"
	XpStreak30        XpEventType = "streak_30"
	XpDailyLogin      XpEventType = "daily_login"
	XpRewardedAd      XpEventType = "rewarded_ad"
	XpManual          XpEventType = "manual"
)

// XpEvent is one entry in the append-only XP ledger. Total XP is the sum of
// amounts for a user; level = totalXp/100 + 1.
type XpEvent struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Type      XpEventType `json:"type"`
	Amount    int         `json:"amount"`
	HabitID   string      `json:"habit_id,omitempty"`
	EarnedAt  time.Time   `json:"earned_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// SyncKind is the kind of remote mutation an operation carries.
type SyncKind string

const (
	SyncCreate SyncKind = "create"
	SyncUpdate SyncKind = "update"
	SyncDelete SyncKind = "delete"
)

// SyncStatus is the lifecycle state of a queued operation.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// EntityType names the entity a sync operation targets.
type EntityType string

const (
	EntityHabit      EntityType = "habit"
	EntityCompletion EntityType = "completion"
	EntityXpEvent    EntityType = "xp_event"
)

// SyncOperation is one pending mutation in the outbox. Created alongside
// every local write; mutated only by the queue worker after enqueue.
type SyncOperation struct {
	ID            string          `json:"id"`
	Kind          SyncKind        `json:"kind"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Status        SyncStatus      `json:"status"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
}

// Abandoned reports whether the operation will not be retried again. The
// queue worker moves retryable failures straight back to pending, so a
// persisted failed status is always terminal.
func (op *SyncOperation) Abandoned() bool {
	return op.Status == SyncFailed
}
