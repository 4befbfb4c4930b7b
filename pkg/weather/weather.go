package weather

import "github.com/groveapp/grove/pkg/types"

// ConditionForRate maps an aggregate same-day completion rate in [0,1] to a
// condition. Thresholds are inclusive on the lower bound of each tier, so a
// rate of exactly 0.75 is sunny and exactly 1.0 is rainbow.
func ConditionForRate(rate float64) types.WeatherCondition {
	switch {
	case rate >= 1.0:
		return types.WeatherRainbow
	case rate >= 0.75:
		return types.WeatherSunny
	case rate >= 0.50:
		return types.WeatherPartlyCloudy
	case rate >= 0.25:
		return types.WeatherCloudy
	default:
		return types.WeatherStormy
	}
}

// Condition computes the condition from completed and scheduled habit
// counts for the day. A day with nothing scheduled is vacuously complete.
func Condition(completed, scheduled int) types.WeatherCondition {
	return ConditionForRate(Rate(completed, scheduled))
}

// Rate returns completed/scheduled clamped to [0,1], treating an empty
// schedule as fully complete.
func Rate(completed, scheduled int) float64 {
	if scheduled <= 0 {
		return 1.0
	}
	r := float64(completed) / float64(scheduled)
	if r > 1.0 {
		r = 1.0
	}
	if r < 0 {
		r = 0
	}
	return r
}
