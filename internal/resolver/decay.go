package resolver

import (
	"math"
	"time"
)

// RecencyDecay computes the staleness multiplier for an observation.
// Formula: decayed = max(floor, 2^(-ageDays / halfLifeDays))
// Missing or future timestamps are treated as current (no decay).
func RecencyDecay(asOf time.Time, now time.Time, decay DecayConfig) float64 {
	if asOf.IsZero() {
		return 1.0
	}

	ageDays := now.Sub(asOf).Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}

	halfLife := decay.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 7 // safe default
	}

	decayed := math.Pow(2, -ageDays/halfLife)

	if decayed < decay.Floor {
		return decay.Floor
	}
	return decayed
}
