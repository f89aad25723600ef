// Package state manages the replay viewer state.
package state

import (
	"fmt"
	"math"
	"sort"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/sim"
)

// BotView is one bot as drawn at the current playback time.
type BotView struct {
	ID       string
	Role     core.Role
	Pos      core.Pos
	Charge   float64
	Capacity float64
	Activity string
	Root     bool
}

// ChargeFraction returns the charge as 0-1 of capacity.
func (b BotView) ChargeFraction() float64 {
	if b.Capacity <= 0 {
		return 0
	}
	return math.Max(0, math.Min(b.Charge/b.Capacity, 1))
}

// Link is a recharge in progress at the current playback time.
type Link struct {
	Recipient, Refueller core.Pos
	Met                  bool
}

// State holds all viewer state.
type State struct {
	Towers   []*core.Tower
	Schedule *core.Schedule
	Result   *sim.SimulationMetrics
	Playback *PlaybackState
	Selected string

	roles    map[string]core.Role
	capacity map[string]float64
}

// NewState wraps a simulated schedule for playback. The result must
// carry frames.
func NewState(towers []*core.Tower, sched *core.Schedule, models sim.Models, res *sim.SimulationMetrics) (*State, error) {
	if sched == nil || res == nil || len(res.Frames) == 0 {
		return nil, fmt.Errorf("%w: replay needs a schedule with frames", core.ErrInvalidParameter)
	}

	s := &State{
		Towers:   towers,
		Schedule: sched,
		Result:   res,
		roles:    make(map[string]core.Role),
		capacity: make(map[string]float64),
	}
	for id, n := range sched.Nodes {
		m, ok := models.Model(n.Model)
		if !ok {
			return nil, fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, id, n.Model)
		}
		s.roles[id] = m.Role
		s.capacity[id] = m.FlightTime
	}

	first, last := res.Frames[0].Time, res.Frames[len(res.Frames)-1].Time
	s.Playback = NewPlaybackState(first, last)
	return s, nil
}

// frameIndex returns the last frame at or before t.
func (s *State) frameIndex(t float64) int {
	frames := s.Result.Frames
	i := sort.Search(len(frames), func(i int) bool { return frames[i].Time > t })
	return max(i-1, 0)
}

// Bots returns every bot interpolated to the current playback time.
func (s *State) Bots() []BotView {
	frames := s.Result.Frames
	t := s.Playback.CurrentTime
	i := s.frameIndex(t)
	cur := frames[i]

	alpha := 0.0
	var next *sim.Frame
	if i+1 < len(frames) {
		next = &frames[i+1]
		if dt := next.Time - cur.Time; dt > 0 {
			alpha = math.Max(0, math.Min((t-cur.Time)/dt, 1))
		}
	}

	views := make([]BotView, 0, len(cur.Bots))
	for j, b := range cur.Bots {
		v := BotView{
			ID:       b.BotID,
			Role:     s.roles[b.BotID],
			Pos:      b.Pos,
			Charge:   b.Charge,
			Capacity: s.capacity[b.BotID],
			Activity: b.Activity,
			Root:     b.BotID == s.Schedule.Root,
		}
		// Frames list bots in the same sorted order.
		if next != nil && j < len(next.Bots) && next.Bots[j].BotID == b.BotID {
			nb := next.Bots[j]
			v.Pos = core.Pos{
				X: b.Pos.X + alpha*(nb.Pos.X-b.Pos.X),
				Y: b.Pos.Y + alpha*(nb.Pos.Y-b.Pos.Y),
				Z: b.Pos.Z + alpha*(nb.Pos.Z-b.Pos.Z),
			}
			v.Charge = b.Charge + alpha*(nb.Charge-b.Charge)
		}
		views = append(views, v)
	}
	return views
}

// PathHistory returns the positions of a bot up to the current time.
func (s *State) PathHistory(botID string) []core.Pos {
	last := s.frameIndex(s.Playback.CurrentTime)
	var history []core.Pos
	for _, f := range s.Result.Frames[:last+1] {
		for _, b := range f.Bots {
			if b.BotID != botID {
				continue
			}
			if n := len(history); n == 0 || core.Distance(history[n-1], b.Pos) > core.PosTolerance {
				history = append(history, b.Pos)
			}
		}
	}
	return history
}

// PlanRoute returns the planned polyline of a bot.
func (s *State) PlanRoute(botID string) []core.Pos {
	n := s.Schedule.Node(botID)
	if n == nil {
		return nil
	}
	route := []core.Pos{n.Plan.Start}
	for _, wp := range n.Plan.Waypoints {
		if wp.IsLeg() {
			route = append(route, wp.To)
		}
	}
	return route
}

// ActiveLinks returns the recharges in progress at the current time.
func (s *State) ActiveLinks() []Link {
	t := s.Playback.CurrentTime
	byID := make(map[string]core.Pos)
	for _, b := range s.Bots() {
		byID[b.ID] = b.Pos
	}

	var links []Link
	for _, rv := range s.Result.Rendezvous {
		if t < rv.Start || t > rv.End {
			continue
		}
		links = append(links, Link{
			Recipient: byID[rv.Recipient],
			Refueller: byID[rv.Refueller],
			Met:       rv.Met(),
		})
	}
	return links
}

// Bounds returns the world extent of towers and every sampled position.
func (s *State) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	grow := func(p core.Pos) {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	for _, t := range s.Towers {
		grow(t.Position)
	}
	for _, f := range s.Result.Frames {
		for _, b := range f.Bots {
			grow(b.Pos)
		}
	}
	return
}

// Select marks a bot as selected, or clears the selection for "".
func (s *State) Select(botID string) {
	if _, ok := s.roles[botID]; ok || botID == "" {
		s.Selected = botID
	}
}
