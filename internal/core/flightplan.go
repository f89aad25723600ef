package core

import (
	"fmt"

	"github.com/brunoga/deep"
)

// FlightPlan is an ordered route plus actions assigned to one bot model.
type FlightPlan struct {
	ID        string
	BotModel  string
	BotID     string // Empty until a bot is assigned
	Start     Pos
	Waypoints []Waypoint
	// FullyDefined is set once the plan is proven energy-feasible.
	FullyDefined bool
}

// NewFlightPlan creates a partially defined plan.
// Waypoints without an id are given a fresh one.
func NewFlightPlan(model string, start Pos, waypoints []Waypoint) (*FlightPlan, error) {
	fp := &FlightPlan{
		ID:        NewID(),
		BotModel:  model,
		Start:     start,
		Waypoints: make([]Waypoint, len(waypoints)),
	}
	copy(fp.Waypoints, waypoints)
	for i := range fp.Waypoints {
		if fp.Waypoints[i].ID == "" {
			fp.Waypoints[i].ID = NewID()
		}
	}
	if err := fp.Validate(false); err != nil {
		return nil, err
	}
	return fp, nil
}

// Validate checks that legs chain positionally from Start and that
// actions are well formed. Empty plans are only rejected when fullyDefined.
func (fp *FlightPlan) Validate(fullyDefined bool) error {
	if fp.BotModel == "" {
		return fmt.Errorf("%w: plan %s has no bot model", ErrMalformedFlightPlan, fp.ID)
	}
	if fullyDefined && len(fp.Waypoints) == 0 {
		return fmt.Errorf("%w: fully defined plan %s has no waypoints", ErrMalformedFlightPlan, fp.ID)
	}

	pos := fp.Start
	seen := make(map[string]bool, len(fp.Waypoints))
	for i, wp := range fp.Waypoints {
		if wp.ID == "" {
			return fmt.Errorf("%w: waypoint %d has no id", ErrMalformedFlightPlan, i)
		}
		if seen[wp.ID] {
			return fmt.Errorf("%w: duplicate waypoint id %s", ErrMalformedFlightPlan, wp.ID)
		}
		seen[wp.ID] = true

		switch wp.Kind {
		case KindLeg:
			if !wp.From.Near(pos) {
				return fmt.Errorf("%w: leg %d starts at %v, expected %v", ErrMalformedFlightPlan, i, wp.From, pos)
			}
			pos = wp.To
		case KindAction:
			if wp.Label == "" {
				return fmt.Errorf("%w: action %d has no label", ErrMalformedFlightPlan, i)
			}
			if wp.Duration < 0 {
				return fmt.Errorf("%w: action %d has negative duration %v", ErrMalformedFlightPlan, i, wp.Duration)
			}
		default:
			return fmt.Errorf("%w: waypoint %d has unknown kind %d", ErrMalformedFlightPlan, i, wp.Kind)
		}
	}
	return nil
}

// Clone returns a deep copy that keeps all ids.
func (fp *FlightPlan) Clone() *FlightPlan {
	return deep.MustCopy(fp)
}

// End returns the position after the last waypoint.
func (fp *FlightPlan) End() Pos {
	pos := fp.Start
	for _, wp := range fp.Waypoints {
		if wp.IsLeg() {
			pos = wp.To
		}
	}
	return pos
}

// Step is a waypoint with its timing inside a plan.
type Step struct {
	Index      int
	Waypoint   Waypoint
	Start, End float64 // Elapsed seconds from plan start
	From, To   Pos     // Equal for actions
}

// Duration returns the step length in seconds.
func (s Step) Duration() float64 { return s.End - s.Start }

// Steps walks the plan at the given speed.
func (fp *FlightPlan) Steps(speed float64) []Step {
	steps := make([]Step, 0, len(fp.Waypoints))
	pos := fp.Start
	elapsed := 0.0
	for i, wp := range fp.Waypoints {
		s := Step{Index: i, Waypoint: wp, Start: elapsed, From: pos, To: pos}
		if wp.IsLeg() {
			if speed > 0 {
				elapsed += Distance(wp.From, wp.To) / speed
			}
			s.From, s.To = wp.From, wp.To
			pos = wp.To
		} else {
			elapsed += wp.Duration
		}
		s.End = elapsed
		steps = append(steps, s)
	}
	return steps
}

// Duration returns total plan time in seconds at the given speed.
func (fp *FlightPlan) Duration(speed float64) float64 {
	steps := fp.Steps(speed)
	if len(steps) == 0 {
		return 0
	}
	return steps[len(steps)-1].End
}

// FirstTagged returns the step of the first action carrying tag.
func (fp *FlightPlan) FirstTagged(tag string, speed float64) (Step, bool) {
	for _, s := range fp.Steps(speed) {
		if s.Waypoint.HasTag(tag) {
			return s, true
		}
	}
	return Step{}, false
}

// RechargeStops returns all waypoints where the bot is being recharged.
func (fp *FlightPlan) RechargeStops() []Waypoint {
	var out []Waypoint
	for _, wp := range fp.Waypoints {
		if wp.IsRecharge() {
			out = append(out, wp)
		}
	}
	return out
}

// RefuelEvent is a rendezvous implied by contiguous recharge actions.
type RefuelEvent struct {
	WaypointIDs    []string
	Pos            Pos
	Time           float64 // Elapsed seconds from plan start
	Duration       float64
	RecipientBotID string
	RefuellerBotID string // Empty until resolved
}

// RefuelEvents groups contiguous recharge actions into rendezvous events.
func (fp *FlightPlan) RefuelEvents(speed float64) []RefuelEvent {
	var events []RefuelEvent
	var cur *RefuelEvent
	for _, s := range fp.Steps(speed) {
		if !s.Waypoint.IsRecharge() {
			cur = nil
			continue
		}
		if cur == nil {
			events = append(events, RefuelEvent{
				Pos:            s.From,
				Time:           s.Start,
				RecipientBotID: fp.BotID,
			})
			cur = &events[len(events)-1]
		}
		cur.WaypointIDs = append(cur.WaypointIDs, s.Waypoint.ID)
		cur.Duration += s.Duration()
	}
	return events
}
