package algo

import (
	"fmt"
	"math"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Injector rewrites plans so they never run out of charge.
//
// Stops are placed by lookahead: once projected remaining charge would
// fall to the RemainingFlightTimeAtRefuel margin, a recharge of
// RefuelDuration is inserted at that point.
type Injector struct {
	Config core.RefuelConfig
}

// NewInjector creates an injector with validated parameters.
func NewInjector(cfg core.RefuelConfig) (*Injector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Injector{Config: cfg}, nil
}

// InjectionResult is a fully defined plan and how it was obtained.
type InjectionResult struct {
	Plan    *core.FlightPlan
	Stops   []string // Ids of the injected recharge waypoints, one per stop
	Profile *EnergyProfile
}

// Inject returns a fully defined copy of fp. Plans without deficits are
// returned with their waypoints unchanged.
func (in *Injector) Inject(fp *core.FlightPlan, model core.BotModel, initialCharge float64) (*InjectionResult, error) {
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if fp.BotModel != model.Name {
		return nil, fmt.Errorf("%w: plan %s is for model %s, not %s",
			core.ErrInvalidParameter, fp.ID, fp.BotModel, model.Name)
	}
	if err := fp.Validate(false); err != nil {
		return nil, err
	}

	plan := fp.Clone()
	usable := model.FlightTime - in.Config.RemainingFlightTimeAtRefuel
	bound := in.stopBound(plan, model, usable)

	res := &InjectionResult{Plan: plan}
	for {
		profile, err := ProfileEnergy(plan, model, initialCharge)
		if err != nil {
			return nil, err
		}
		if profile.Feasible() {
			res.Profile = profile
			break
		}
		if usable <= TimeTolerance {
			return nil, fmt.Errorf("%w: model %s has %.1fs of usable flight time per charge with a %.1fs margin",
				core.ErrInfeasiblePlan, model.Name, model.FlightTime, in.Config.RemainingFlightTimeAtRefuel)
		}
		if len(res.Stops) >= bound {
			return nil, fmt.Errorf("%w: plan %s still short of charge after %d stops",
				core.ErrInfeasiblePlan, plan.ID, len(res.Stops))
		}

		id, err := in.insertStop(plan, model, profile, profile.Deficits[0])
		if err != nil {
			return nil, err
		}
		res.Stops = append(res.Stops, id)
	}

	plan.FullyDefined = true
	if err := plan.Validate(true); err != nil {
		return nil, err
	}
	return res, nil
}

// stopBound caps the number of stops: one per usable window of
// consumption, plus one per waypoint for stops forced onto boundaries.
func (in *Injector) stopBound(fp *core.FlightPlan, model core.BotModel, usable float64) int {
	if usable <= TimeTolerance {
		return 0
	}
	total := 0.0
	for _, s := range fp.Steps(model.Speed) {
		total += consumption(s)
	}
	return len(fp.Waypoints) + int(math.Ceil(total/usable)) + 2
}

// insertStop rewrites plan in place for the given deficit and returns the
// id of the recharge waypoint it inserted.
func (in *Injector) insertStop(plan *core.FlightPlan, model core.BotModel, profile *EnergyProfile, d Deficit) (string, error) {
	steps := plan.Steps(model.Speed)
	margin := in.Config.RemainingFlightTimeAtRefuel

	// Find the start of the charge segment holding the deficit
	start := 0
	remaining := profile.Initial
	for i := d.Index - 1; i >= 0; i-- {
		if steps[i].Waypoint.IsRecharge() {
			start = i + 1
			remaining = profile.Capacity
			break
		}
	}

	for i := start; i <= d.Index; i++ {
		cost := consumption(steps[i])
		if remaining-cost >= margin-TimeTolerance {
			remaining -= cost
			continue
		}
		offset := math.Max(remaining-margin, 0)
		return in.splitAt(plan, steps[i], offset)
	}

	// The deficit step always crosses the margin
	return "", fmt.Errorf("%w: no trigger point before deficit at waypoint %d", core.ErrInfeasiblePlan, d.Index)
}

func (in *Injector) splitAt(plan *core.FlightPlan, s core.Step, offset float64) (string, error) {
	r := in.Config.RefuelDuration
	wp := s.Waypoint

	if offset <= TimeTolerance {
		stop := generated(core.NewAction(core.LabelBeingRecharged, r))
		plan.Waypoints = splice(plan.Waypoints, s.Index, stop, wp)
		return stop.ID, nil
	}

	if wp.IsLeg() {
		split, err := core.Interpolate(wp.From, wp.To, offset/s.Duration())
		if err != nil {
			return "", err
		}
		stop := generated(core.NewAction(core.LabelBeingRecharged, r))
		plan.Waypoints = splice(plan.Waypoints, s.Index,
			generated(core.NewLeg(wp.From, split)),
			stop,
			generated(core.NewLeg(split, wp.To)),
		)
		return stop.ID, nil
	}

	// Overlay the recharge onto the action from the trigger point on
	rest := wp.Duration - offset
	stop := generated(core.NewAction(core.CombineLabels(wp.Label, core.LabelBeingRecharged), math.Min(r, rest)))
	pieces := []core.Waypoint{
		generated(core.NewAction(wp.Label, offset)),
		stop,
	}
	switch {
	case timeEqual(r, rest):
	case r < rest:
		pieces = append(pieces, generated(core.NewAction(wp.Label, rest-r)))
	default:
		pieces = append(pieces, generated(core.NewAction(core.LabelBeingRecharged, r-rest)))
	}
	plan.Waypoints = splice(plan.Waypoints, s.Index, pieces...)
	return stop.ID, nil
}

func generated(wp core.Waypoint) core.Waypoint {
	wp.Generated = true
	return wp
}

// splice replaces the waypoint at i with repl.
func splice(wps []core.Waypoint, i int, repl ...core.Waypoint) []core.Waypoint {
	out := make([]core.Waypoint, 0, len(wps)+len(repl)-1)
	out = append(out, wps[:i]...)
	out = append(out, repl...)
	return append(out, wps[i+1:]...)
}
