package growth

import "github.com/groveapp/grove/pkg/types"

// Streak thresholds for each growth tier. Strictly increasing, no
// hysteresis: the tier falls as soon as the streak does.
const (
	GrowingThreshold     = 15
	FlourishingThreshold = 30
)

// TierFor maps the current streak length to a growth tier.
func TierFor(currentStreak int) types.GrowthTier {
	switch {
	case currentStreak >= FlourishingThreshold:
		return types.GrowthFlourishing
	case currentStreak >= GrowingThreshold:
		return types.GrowthGrowing
	default:
		return types.GrowthSeedling
	}
}
