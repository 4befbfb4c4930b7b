package decay

import (
	"github.com/groveapp/grove/pkg/dates"
	"github.com/groveapp/grove/pkg/types"
)

// State is the decay condition of a habit, fully derived from its
// completion history.
type State struct {
	Tier types.DecayTier
	// DaysMissed is the number of logical days strictly between the last
	// completion and today. Zero while the habit is current.
	DaysMissed int
	// RecoveryRemaining is the number of further completions required to
	// return to healthy. Zero when healthy.
	RecoveryRemaining int
}

// TierFor maps consecutive missed days to a decay tier.
func TierFor(daysMissed int) types.DecayTier {
	switch {
	case daysMissed <= 0:
		return types.DecayHealthy
	case daysMissed == 1:
		return types.DecayWarning
	case daysMissed <= 3:
		return types.DecayCloudy
	default:
		return types.DecayStormy
	}
}

// RecoveryRequirement returns the number of completions needed to recover
// from a tier.
func RecoveryRequirement(tier types.DecayTier) int {
	switch tier {
	case types.DecayWarning:
		return 1
	case types.DecayCloudy:
		return 2
	case types.DecayStormy:
		return 3
	default:
		return 0
	}
}

// Evaluate derives the decay state from completion history. While days are
// being missed the tier follows the table directly. Once completions resume,
// the habit stays in the tier of its most recent gap until enough
// completions have accumulated since that gap to meet the tier's recovery
// requirement — returning healthy on the first completion alone only for
// the warning tier.
func Evaluate(completed []dates.LogicalDate, today dates.LogicalDate) State {
	ds := dates.Dedupe(completed)
	if len(ds) == 0 {
		return State{Tier: types.DecayHealthy}
	}

	last := ds[len(ds)-1]
	missed := today.Sub(last) - 1
	if missed < 0 {
		missed = 0
	}
	if missed > 0 {
		tier := TierFor(missed)
		return State{
			Tier:              tier,
			DaysMissed:        missed,
			RecoveryRemaining: RecoveryRequirement(tier),
		}
	}

	// Current again; check whether the most recent gap is fully recovered.
	for i := len(ds) - 1; i > 0; i-- {
		gap := ds[i].Sub(ds[i-1]) - 1
		if gap == 0 {
			continue
		}
		tier := TierFor(gap)
		done := len(ds) - i // completions on or after the gap's end
		remaining := RecoveryRequirement(tier) - done
		if remaining > 0 {
			return State{Tier: tier, RecoveryRemaining: remaining}
		}
		break
	}

	return State{Tier: types.DecayHealthy}
}
