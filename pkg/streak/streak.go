package streak

import (
	"github.com/groveapp/grove/pkg/dates"
)

// Current returns the length of the streak running up to today. The streak
// is alive if the most recent completion is today or yesterday; otherwise
// it is broken and the length is 0. Duplicate dates count once.
func Current(completed []dates.LogicalDate, today dates.LogicalDate) int {
	ds := dates.Dedupe(completed)
	if len(ds) == 0 {
		return 0
	}

	last := ds[len(ds)-1]
	if last != today && last != today.Prev() {
		return 0
	}

	expected := last
	count := 0
	for i := len(ds) - 1; i >= 0; i-- {
		switch {
		case ds[i] == expected:
			count++
			expected = expected.Prev()
		case ds[i] < expected:
			// gap
			return count
		}
	}
	return count
}

// Longest returns the longest run of consecutive days anywhere in the
// history. A day-difference of exactly 1 extends the run; anything else
// resets it.
func Longest(completed []dates.LogicalDate) int {
	ds := dates.Dedupe(completed)
	if len(ds) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(ds); i++ {
		if ds[i].Sub(ds[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
