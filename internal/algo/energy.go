package algo

import (
	"math"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Sample is the remaining charge at a waypoint boundary.
type Sample struct {
	Index     int // Waypoint just completed; -1 for the plan start
	Elapsed   float64
	Remaining float64
	Pos       core.Pos
}

// Deficit marks where remaining charge would first drop below zero
// within a charge segment.
type Deficit struct {
	Index   int     // Waypoint during which charge runs out
	Elapsed float64 // Seconds from plan start
	Offset  float64 // Seconds into the waypoint
	Pos     core.Pos
}

// EnergyProfile is the charge timeline of a plan.
type EnergyProfile struct {
	Capacity     float64
	Initial      float64
	Duration     float64
	Samples      []Sample
	MinRemaining float64
	Deficits     []Deficit
}

// Feasible reports whether the plan never runs out of charge.
func (p *EnergyProfile) Feasible() bool {
	return len(p.Deficits) == 0
}

// Final returns the remaining charge at the end of the plan.
func (p *EnergyProfile) Final() float64 {
	if len(p.Samples) == 0 {
		return p.Initial
	}
	return p.Samples[len(p.Samples)-1].Remaining
}

// ProfileEnergy walks the plan and computes the charge timeline.
//
// Legs and ordinary actions deplete charge linearly. Actions tagged
// being_recharged deplete nothing and leave the bot at full capacity.
// At most one deficit is reported per charge segment.
func ProfileEnergy(fp *core.FlightPlan, model core.BotModel, initialCharge float64) (*EnergyProfile, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}

	capacity := model.FlightTime
	remaining := clampCharge(initialCharge, capacity)
	p := &EnergyProfile{
		Capacity:     capacity,
		Initial:      remaining,
		MinRemaining: remaining,
	}
	p.Samples = append(p.Samples, Sample{Index: -1, Remaining: remaining, Pos: fp.Start})

	inDeficit := false
	for _, s := range fp.Steps(model.Speed) {
		if s.Waypoint.IsRecharge() {
			remaining = capacity
			inDeficit = false
		} else {
			cost := consumption(s)
			if !inDeficit && remaining-cost < -TimeTolerance {
				p.Deficits = append(p.Deficits, deficitAt(s, math.Max(remaining, 0), cost))
				inDeficit = true
			}
			remaining -= cost
		}

		p.MinRemaining = math.Min(p.MinRemaining, remaining)
		p.Samples = append(p.Samples, Sample{
			Index:     s.Index,
			Elapsed:   s.End,
			Remaining: remaining,
			Pos:       s.To,
		})
		p.Duration = s.End
	}

	return p, nil
}

func deficitAt(s core.Step, offset, cost float64) Deficit {
	d := Deficit{
		Index:   s.Index,
		Elapsed: s.Start + offset,
		Offset:  offset,
		Pos:     s.From,
	}
	if s.Waypoint.IsLeg() && cost > 0 {
		if pos, err := core.Interpolate(s.From, s.To, math.Min(offset/cost, 1)); err == nil {
			d.Pos = pos
		}
	}
	return d
}
