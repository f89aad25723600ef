// Package algo implements energy analysis, recharge injection and
// refueller rendezvous resolution over flight plans.
package algo

import (
	"math"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// TimeTolerance for floating-point time comparison.
const TimeTolerance = 0.001

// timeEqual compares times with tolerance.
func timeEqual(t1, t2 float64) bool {
	return math.Abs(t1-t2) < TimeTolerance
}

// consumption returns the flight time a step draws from the battery.
// Recharge actions draw nothing.
func consumption(s core.Step) float64 {
	if s.Waypoint.IsRecharge() {
		return 0
	}
	return s.Duration()
}

// clampCharge limits a charge to [0, capacity].
func clampCharge(charge, capacity float64) float64 {
	if math.IsNaN(charge) || charge < 0 {
		return 0
	}
	return math.Min(charge, capacity)
}
