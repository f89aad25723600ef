package algo

import (
	"fmt"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// RefuellerPlan builds the partially defined plan of a refueller: fly to
// the rendezvous, dwell giving recharge, then fly to home if given.
func RefuellerPlan(model core.BotModel, from, rendezvous core.Pos, dwell float64, home *core.Pos) (*core.FlightPlan, error) {
	if dwell <= 0 {
		return nil, fmt.Errorf("%w: dwell %v must be positive", core.ErrInvalidParameter, dwell)
	}
	var wps []core.Waypoint
	if !from.Near(rendezvous) {
		wps = append(wps, generated(core.NewLeg(from, rendezvous)))
	}
	wps = append(wps, generated(core.NewAction(core.LabelGivingRecharge, dwell)))
	if home != nil && !home.Near(rendezvous) {
		wps = append(wps, generated(core.NewLeg(rendezvous, *home)))
	}
	return core.NewFlightPlan(model.Name, from, wps)
}

// DeliveryPlan builds tower -> target -> payload action, returning to the
// tower unless stay is set.
func DeliveryPlan(model core.BotModel, tower, target core.Pos, duration float64, stay bool) (*core.FlightPlan, error) {
	if duration < 0 {
		return nil, fmt.Errorf("%w: payload duration %v must be non-negative", core.ErrInvalidParameter, duration)
	}
	var wps []core.Waypoint
	if !tower.Near(target) {
		wps = append(wps, generated(core.NewLeg(tower, target)))
	}
	wps = append(wps, generated(core.NewAction(core.LabelPayload, duration)))
	if !stay && !tower.Near(target) {
		wps = append(wps, generated(core.NewLeg(target, tower)))
	}
	return core.NewFlightPlan(model.Name, tower, wps)
}

// NewNode builds a schedule node for an injected plan flown by botID.
func NewNode(botID string, model core.BotModel, res *InjectionResult, launch, initialCharge float64, launchTower string) *core.ScheduleNode {
	res.Plan.BotID = botID
	return &core.ScheduleNode{
		BotID:         botID,
		Model:         model.Name,
		Plan:          res.Plan,
		Launch:        launch,
		Duration:      res.Plan.Duration(model.Speed),
		InitialCharge: clampCharge(initialCharge, model.FlightTime),
		EndCharge:     res.Profile.Final(),
		LaunchTower:   launchTower,
		Events:        res.Plan.RefuelEvents(model.Speed),
		InjectedStops: len(res.Stops),
	}
}
