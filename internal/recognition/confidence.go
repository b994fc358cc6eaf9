package recognition

import (
	"fmt"
	"math"
)

// DefaultThreshold is the maximum descriptor distance at which two faces are
// considered the same person.
const DefaultThreshold = 0.6

// Confidence maps a descriptor distance to a human readable percentage.
// It is a display curve, not a calibrated probability.
func Confidence(distance, threshold float64) string {
	rng := 1.0 - threshold
	linearVar := (1.0 - distance) / (rng * 2.0)

	// Rejected matches are never scored by the analyzer; kept for callers
	// that want a figure for a miss.
	if distance > threshold {
		return formatPercent(linearVar * 100)
	}

	// Within the threshold linearVar is >= 0.5 in exact arithmetic. Clamping
	// keeps the fractional power away from negative bases and caps an exact
	// match at 100%.
	linearVar = math.Min(math.Max(linearVar, 0.5), 1.0)
	value := (linearVar + (1.0-linearVar)*math.Pow((linearVar-0.5)*2, 0.2)) * 100
	return formatPercent(value)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", math.Round(v*100)/100)
}
