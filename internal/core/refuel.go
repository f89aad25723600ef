package core

import (
	"fmt"
	"math"
)

// RefuelConfig controls when and for how long recharge stops are made.
type RefuelConfig struct {
	// RemainingFlightTimeAtRefuel is the margin (seconds) left in the
	// battery at which a recharge stop is triggered.
	RemainingFlightTimeAtRefuel float64
	// RefuelDuration is the dwell (seconds) needed for a full recharge.
	RefuelDuration float64
}

// Validate checks the refuel parameters.
func (c RefuelConfig) Validate() error {
	if c.RemainingFlightTimeAtRefuel < 0 || math.IsNaN(c.RemainingFlightTimeAtRefuel) {
		return fmt.Errorf("%w: remaining flight time at refuel %v must be non-negative",
			ErrInvalidParameter, c.RemainingFlightTimeAtRefuel)
	}
	if c.RefuelDuration <= 0 || math.IsNaN(c.RefuelDuration) {
		return fmt.Errorf("%w: refuel duration %v must be positive", ErrInvalidParameter, c.RefuelDuration)
	}
	return nil
}
