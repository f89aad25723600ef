package core

import "errors"

var (
	// ErrInvalidParameter is returned for bad geometry or configuration inputs.
	ErrInvalidParameter = errors.New("relay: invalid parameter")
	// ErrMalformedFlightPlan is returned when a plan violates its structural invariants.
	ErrMalformedFlightPlan = errors.New("relay: malformed flight plan")
	// ErrInfeasiblePlan is returned when no injection density makes a route energy-feasible.
	ErrInfeasiblePlan = errors.New("relay: infeasible plan")
	// ErrNoFeasibleRefueller is returned when refueller candidates are exhausted.
	ErrNoFeasibleRefueller = errors.New("relay: no feasible refueller")
	// ErrRendezvousTimingInfeasible is returned when a refueller cannot arrive in time.
	ErrRendezvousTimingInfeasible = errors.New("relay: rendezvous timing infeasible")
	// ErrReservationConflict is returned when a commit would double-book a resource.
	ErrReservationConflict = errors.New("relay: reservation conflict")
)

// ErrorKind returns a short label for the error kind wrapped by err.
// Used for metric labels; unknown errors map to "error".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrMalformedFlightPlan):
		return "malformed_flight_plan"
	case errors.Is(err, ErrInfeasiblePlan):
		return "infeasible_plan"
	case errors.Is(err, ErrNoFeasibleRefueller):
		return "no_feasible_refueller"
	case errors.Is(err, ErrRendezvousTimingInfeasible):
		return "rendezvous_timing_infeasible"
	case errors.Is(err, ErrReservationConflict):
		return "reservation_conflict"
	default:
		return "error"
	}
}
