// Package sim replays a committed schedule on a fixed time step.
//
// The simulator is a read-only consumer: it samples every bot's position,
// remaining charge and activity, and checks that each refueller is at the
// rendezvous giving recharge while its recipient is being recharged.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elektrokombinacija/relay-refuel/internal/algo"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/log"
	"github.com/elektrokombinacija/relay-refuel/internal/metrics"
)

// Activities reported for bots outside an action.
const (
	ActivityIdle   = "idle"
	ActivityFlying = "flying"
)

// Models resolves bot models by name. registry.Snapshot implements it.
type Models interface {
	Model(name string) (core.BotModel, bool)
}

// SimulationConfig configures a replay.
type SimulationConfig struct {
	Schedule *core.Schedule
	Models   Models

	// Time step for sampling (seconds)
	TimeStep float64

	// Maximum refueller distance from the recipient during a recharge
	Tolerance float64

	// Keep every sampled frame in the result
	KeepFrames bool

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default replay configuration.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		TimeStep:  1,
		Tolerance: 1,
	}
}

// BotState is one bot at one instant.
type BotState struct {
	BotID    string   `json:"bot_id"`
	Pos      core.Pos `json:"pos"`
	Charge   float64  `json:"charge"`
	Activity string   `json:"activity"`
}

// Frame is every bot at one instant, by bot id.
type Frame struct {
	Time float64    `json:"time"`
	Bots []BotState `json:"bots"`
}

// BotMetrics summarises one bot over the replay.
type BotMetrics struct {
	MinCharge   float64 `json:"min_charge"`
	MinChargeAt float64 `json:"min_charge_at"`
	Distance    float64 `json:"distance"`
}

// Rendezvous is the outcome of one recharge event.
type Rendezvous struct {
	Recipient string   `json:"recipient"`
	Refueller string   `json:"refueller"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	Pos       core.Pos `json:"pos"`
	Checks    int      `json:"checks"`
	Misses    int      `json:"misses"`
}

// Met reports whether the refueller was present at every check.
func (r Rendezvous) Met() bool {
	return r.Misses == 0
}

// SimulationMetrics collects results of a replay.
type SimulationMetrics struct {
	// Timing
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	SimulatedTime float64   `json:"simulated_time"`
	Steps         int       `json:"steps"`

	// Energy
	Bots             map[string]*BotMetrics `json:"bots"`
	EnergyViolations int                    `json:"energy_violations"`

	// Rendezvous
	Rendezvous []Rendezvous `json:"rendezvous"`
	Checks     int          `json:"checks"`
	Misses     int          `json:"misses"`

	Frames []Frame `json:"frames,omitempty"`
}

// track is the precomputed timeline of one node.
type track struct {
	node    *core.ScheduleNode
	steps   []core.Step
	profile *algo.EnergyProfile
}

// Simulator replays one schedule.
type Simulator struct {
	mu sync.Mutex

	config SimulationConfig
	tracks []*track // Schedule order

	currentTime float64
	last        map[string]core.Pos
	metrics     SimulationMetrics
}

// NewSimulator prepares a replay of cfg.Schedule.
func NewSimulator(cfg SimulationConfig) (*Simulator, error) {
	if cfg.Schedule == nil || len(cfg.Schedule.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", core.ErrInvalidParameter)
	}
	if cfg.Models == nil {
		return nil, fmt.Errorf("%w: no model source", core.ErrInvalidParameter)
	}
	if cfg.TimeStep <= 0 || math.IsNaN(cfg.TimeStep) {
		return nil, fmt.Errorf("%w: time step %v must be positive", core.ErrInvalidParameter, cfg.TimeStep)
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}

	s := &Simulator{
		config: cfg,
		last:   make(map[string]core.Pos),
		metrics: SimulationMetrics{
			Bots: make(map[string]*BotMetrics),
		},
	}

	var err error
	cfg.Schedule.Walk(func(n *core.ScheduleNode) {
		if err != nil {
			return
		}
		m, ok := cfg.Models.Model(n.Model)
		if !ok {
			err = fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, n.BotID, n.Model)
			return
		}
		p, perr := algo.ProfileEnergy(n.Plan, m, n.InitialCharge)
		if perr != nil {
			err = perr
			return
		}
		s.tracks = append(s.tracks, &track{node: n, steps: n.Plan.Steps(m.Speed), profile: p})
		s.metrics.Bots[n.BotID] = &BotMetrics{MinCharge: math.Inf(1)}

		for _, ev := range n.Events {
			start := n.Launch + ev.Time
			s.metrics.Rendezvous = append(s.metrics.Rendezvous, Rendezvous{
				Recipient: n.BotID,
				Refueller: ev.RefuellerBotID,
				Start:     start,
				End:       start + ev.Duration,
				Pos:       ev.Pos,
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run samples the schedule from its first launch to its last landing.
func (s *Simulator) Run(ctx context.Context) (*SimulationMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.StartTime = time.Now()
	start, end := s.config.Schedule.Start(), s.config.Schedule.End()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t := start + float64(i)*s.config.TimeStep
		if t > end+algo.TimeTolerance {
			break
		}
		s.currentTime = t
		s.step(t)
	}

	s.config.Metrics.AddMisses(s.metrics.Misses)
	s.metrics.EndTime = time.Now()
	s.metrics.SimulatedTime = end - start

	s.config.Logger.Info("simulation finished",
		slog.String("schedule", s.config.Schedule.ID),
		slog.Int("steps", s.metrics.Steps),
		slog.Int("checks", s.metrics.Checks),
		slog.Int("misses", s.metrics.Misses),
		slog.Int("energy_violations", s.metrics.EnergyViolations))

	out := s.metrics
	return &out, nil
}

// step samples every bot at t.
func (s *Simulator) step(t float64) {
	s.metrics.Steps++

	frame := Frame{Time: t}
	states := make(map[string]BotState, len(s.tracks))
	for _, tr := range s.tracks {
		st := tr.at(t)
		states[st.BotID] = st
		frame.Bots = append(frame.Bots, st)

		bm := s.metrics.Bots[st.BotID]
		if st.Charge < bm.MinCharge {
			bm.MinCharge = st.Charge
			bm.MinChargeAt = t
		}
		if prev, ok := s.last[st.BotID]; ok {
			bm.Distance += core.Distance(prev, st.Pos)
		}
		s.last[st.BotID] = st.Pos
		if st.Charge < -algo.TimeTolerance {
			s.metrics.EnergyViolations++
		}
	}

	for i := range s.metrics.Rendezvous {
		rv := &s.metrics.Rendezvous[i]
		// Boundaries are skipped: neighbouring steps share them.
		if t <= rv.Start+algo.TimeTolerance || t >= rv.End-algo.TimeTolerance {
			continue
		}
		rv.Checks++
		s.metrics.Checks++

		recipient := states[rv.Recipient]
		refueller, ok := states[rv.Refueller]
		if ok && hasTag(recipient.Activity, core.LabelBeingRecharged) &&
			hasTag(refueller.Activity, core.LabelGivingRecharge) &&
			core.Distance(recipient.Pos, refueller.Pos) <= s.config.Tolerance {
			continue
		}
		rv.Misses++
		s.metrics.Misses++
		s.config.Logger.Debug("rendezvous miss",
			slog.Float64("time", t),
			slog.String("recipient", rv.Recipient),
			slog.String("refueller", rv.Refueller),
			slog.String("recipient_activity", recipient.Activity),
			slog.String("refueller_activity", refueller.Activity))
	}

	if s.config.KeepFrames {
		sort.Slice(frame.Bots, func(i, j int) bool { return frame.Bots[i].BotID < frame.Bots[j].BotID })
		s.metrics.Frames = append(s.metrics.Frames, frame)
	}
}

// at returns the node's state at absolute time t.
func (tr *track) at(t float64) BotState {
	n := tr.node
	st := BotState{BotID: n.BotID, Activity: ActivityIdle}
	elapsed := t - n.Launch

	switch {
	case elapsed < 0 || len(tr.steps) == 0:
		st.Pos = n.Plan.Start
		st.Charge = tr.profile.Initial
		return st
	case elapsed >= n.Duration:
		st.Pos = n.Plan.End()
		st.Charge = tr.profile.Final()
		return st
	}

	i := sort.Search(len(tr.steps), func(i int) bool { return tr.steps[i].End > elapsed })
	if i == len(tr.steps) {
		i--
	}
	step := tr.steps[i]
	into := elapsed - step.Start
	before := tr.profile.Samples[i].Remaining

	st.Pos = step.From
	if step.Waypoint.IsLeg() {
		st.Activity = ActivityFlying
		if d := step.Duration(); d > 0 {
			if pos, err := core.Interpolate(step.From, step.To, math.Min(into/d, 1)); err == nil {
				st.Pos = pos
			}
		}
	} else {
		st.Activity = step.Waypoint.Label
	}

	if step.Waypoint.IsRecharge() {
		st.Charge = before
	} else {
		st.Charge = before - into
	}
	return st
}

func hasTag(activity, tag string) bool {
	for _, f := range strings.Fields(activity) {
		if f == tag {
			return true
		}
	}
	return false
}

// Metrics returns the metrics collected so far.
func (s *Simulator) Metrics() SimulationMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// ExportMetrics writes metrics to a JSON file.
func (s *Simulator) ExportMetrics(path string) error {
	s.mu.Lock()
	m := s.metrics
	s.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RunSimulation replays a schedule with the given config.
func RunSimulation(ctx context.Context, cfg SimulationConfig) (*SimulationMetrics, error) {
	s, err := NewSimulator(cfg)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
