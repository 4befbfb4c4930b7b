package dates

import "time"

// DefaultGracePeriod is the window after local midnight during which a
// completion still counts for the previous logical date.
const DefaultGracePeriod = 3 * time.Hour

// Normalizer maps instants to logical dates using the user's location and
// the post-midnight grace period. A completion occurring after local
// midnight but before midnight+grace is attributed to the previous day.
type Normalizer struct {
	Grace    time.Duration
	Location *time.Location
}

// NewNormalizer creates a normalizer. A zero grace uses the default; a nil
// location uses time.Local.
func NewNormalizer(grace time.Duration, loc *time.Location) Normalizer {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if loc == nil {
		loc = time.Local
	}
	return Normalizer{Grace: grace, Location: loc}
}

// LogicalDateOf returns the logical date a completion at instant t counts
// toward. Shifting the local time back by the grace period folds the
// [midnight, midnight+grace) window onto the previous day.
func (n Normalizer) LogicalDateOf(t time.Time) LogicalDate {
	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	grace := n.Grace
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return FromTime(t.In(loc).Add(-grace))
}

// Today returns the current logical date for the given instant.
func (n Normalizer) Today(now time.Time) LogicalDate {
	return n.LogicalDateOf(now)
}
