package state

import (
	"context"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/registry"
	"github.com/elektrokombinacija/relay-refuel/internal/scheduler"
	"github.com/elektrokombinacija/relay-refuel/internal/sim"
)

// Replay schedules q against a fleet built from cfg, simulates the
// committed schedule every step seconds and wraps it for playback.
func Replay(ctx context.Context, cfg config.Config, q scheduler.Query, step float64) (*State, error) {
	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	s, err := scheduler.New(reg, scheduler.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	outcome, err := s.ScheduleFlexible(ctx, q)
	if err != nil {
		return nil, err
	}

	snap := reg.Snapshot()
	sc := sim.DefaultConfig()
	sc.Schedule = outcome.Schedule
	sc.Models = snap
	sc.TimeStep = step
	sc.KeepFrames = true
	res, err := sim.RunSimulation(ctx, sc)
	if err != nil {
		return nil, err
	}
	return NewState(snap.Towers(), outcome.Schedule, snap, res)
}
