package dates

import (
	"fmt"
	"sort"
	"time"
)

const dayFormat = "2006-01-02"

// LogicalDate is a calendar day, stored as days since the Unix epoch. All
// streak, decay, and XP reasoning operates on logical dates, never on raw
// timestamps.
type LogicalDate int

// FromTime returns the calendar date of t in t's location, with no grace
// adjustment applied.
func FromTime(t time.Time) LogicalDate {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return LogicalDate(days)
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (LogicalDate, error) {
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid logical date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// Add returns the date n days later (n may be negative).
func (d LogicalDate) Add(n int) LogicalDate { return d + LogicalDate(n) }

// Sub returns the number of days from other to d.
func (d LogicalDate) Sub(other LogicalDate) int { return int(d - other) }

// Next returns the following day.
func (d LogicalDate) Next() LogicalDate { return d + 1 }

// Prev returns the preceding day.
func (d LogicalDate) Prev() LogicalDate { return d - 1 }

// Time returns midnight of the date in loc.
func (d LogicalDate) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := time.Unix(int64(d)*86400, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Weekday returns the day of week of the date.
func (d LogicalDate) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

func (d LogicalDate) String() string {
	return d.Time(time.UTC).Format(dayFormat)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d LogicalDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *LogicalDate) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid logical date %s", b)
	}
	parsed, err := Parse(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Dedupe returns the distinct dates of ds in ascending order.
func Dedupe(ds []LogicalDate) []LogicalDate {
	if len(ds) == 0 {
		return nil
	}
	seen := make(map[LogicalDate]bool, len(ds))
	out := make([]LogicalDate, 0, len(ds))
	for _, d := range ds {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
