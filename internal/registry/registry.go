// Package registry holds the shared bots, towers and payloads, and books
// their time windows.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/brunoga/deep"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

const timeTolerance = 0.001

// State is the registry content. Snapshots hold a deep copy of it.
type State struct {
	Now      float64
	Models   map[string]core.BotModel
	Bots     map[string]*core.Bot
	Towers   map[string]*core.Tower
	Payloads map[string]*core.Payload
	// Compat maps a payload type to the models allowed to carry it.
	Compat   map[string][]string
	BotTime  *Allocator // One window at a time per bot
	Launches *Allocator // Per tower, capacity is its parallel launchers
}

func newState() State {
	return State{
		Models:   make(map[string]core.BotModel),
		Bots:     make(map[string]*core.Bot),
		Towers:   make(map[string]*core.Tower),
		Payloads: make(map[string]*core.Payload),
		Compat:   make(map[string][]string),
		BotTime:  NewAllocator(),
		Launches: NewAllocator(),
	}
}

// Registry is the process-wide store. Reads go through snapshots; Commit
// is the only mutation after setup.
type Registry struct {
	mu    sync.RWMutex
	state State
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{state: newState()}
}

// FromConfig builds a registry from configuration.
func FromConfig(cfg config.Config) (*Registry, error) {
	r := New()
	r.SetNow(cfg.Planning.Now)

	for _, m := range cfg.BotModels {
		model, err := core.NewBotModel(m.Name, core.Role(m.Role), m.FlightTime, m.Speed)
		if err != nil {
			return nil, err
		}
		if err := r.AddModel(model); err != nil {
			return nil, err
		}
	}
	for _, ct := range cfg.Towers {
		t := core.NewTower(ct.ID, ct.Pos())
		if ct.ParallelLaunchers > 0 {
			t.ParallelLaunchers = ct.ParallelLaunchers
		}
		t.LaunchTime = ct.LaunchTime
		if err := r.AddTower(t); err != nil {
			return nil, err
		}
		for _, cb := range ct.Bots {
			model, ok := r.Model(cb.Model)
			if !ok {
				return nil, fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, cb.ID, cb.Model)
			}
			b := core.NewBot(cb.ID, model, t)
			if cb.Charge > 0 {
				b.Charge = min(cb.Charge, model.FlightTime)
			}
			if err := r.AddBot(b); err != nil {
				return nil, err
			}
		}
		for _, cp := range ct.Payloads {
			if err := r.AddPayload(&core.Payload{ID: cp.ID, Type: cp.Type, TowerID: ct.ID}); err != nil {
				return nil, err
			}
		}
	}
	for _, pt := range cfg.PayloadTypes {
		r.SetCompatibility(pt.Name, pt.Models)
	}
	return r, nil
}

// AddModel registers a bot model.
func (r *Registry) AddModel(m core.BotModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Models[m.Name]; ok {
		return fmt.Errorf("%w: model %s already registered", core.ErrInvalidParameter, m.Name)
	}
	r.state.Models[m.Name] = m
	return nil
}

// AddTower registers a tower and its launch capacity.
func (r *Registry) AddTower(t *core.Tower) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		return fmt.Errorf("%w: tower without id", core.ErrInvalidParameter)
	}
	if _, ok := r.state.Towers[t.ID]; ok {
		return fmt.Errorf("%w: tower %s already registered", core.ErrInvalidParameter, t.ID)
	}
	capacity, _ := t.Launcher()
	r.state.Towers[t.ID] = t
	r.state.Launches.SetCapacity(t.ID, capacity)
	return nil
}

// AddBot registers a bot and docks it at its home tower.
func (r *Registry) AddBot(b *core.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.state.Models[b.Model]
	if !ok {
		return fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, b.ID, b.Model)
	}
	if _, ok := r.state.Bots[b.ID]; ok {
		return fmt.Errorf("%w: bot %s already registered", core.ErrInvalidParameter, b.ID)
	}
	if b.Charge > m.FlightTime || b.Charge < 0 {
		return fmt.Errorf("%w: bot %s charge %v outside [0, %v]", core.ErrInvalidParameter, b.ID, b.Charge, m.FlightTime)
	}
	if b.HomeTower != "" {
		t, ok := r.state.Towers[b.HomeTower]
		if !ok {
			return fmt.Errorf("%w: bot %s has unknown home tower %s", core.ErrInvalidParameter, b.ID, b.HomeTower)
		}
		if b.Position.Near(t.Position) {
			t.Dock(b.ID)
		}
	}
	r.state.Bots[b.ID] = b
	return nil
}

// AddPayload registers a payload at its tower.
func (r *Registry) AddPayload(p *core.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.state.Towers[p.TowerID]
	if !ok {
		return fmt.Errorf("%w: payload %s has unknown tower %s", core.ErrInvalidParameter, p.ID, p.TowerID)
	}
	if _, ok := r.state.Payloads[p.ID]; ok {
		return fmt.Errorf("%w: payload %s already registered", core.ErrInvalidParameter, p.ID)
	}
	r.state.Payloads[p.ID] = p
	if !t.HasPayload(p.ID) {
		t.Payloads = append(t.Payloads, p.ID)
	}
	return nil
}

// SetCompatibility restricts a payload type to the given models.
func (r *Registry) SetCompatibility(payloadType string, models []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Compat[payloadType] = append([]string(nil), models...)
}

// Model looks up a registered bot model.
func (r *Registry) Model(name string) (core.BotModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.state.Models[name]
	return m, ok
}

// Now returns the registry clock.
func (r *Registry) Now() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Now
}

// SetNow sets the registry clock.
func (r *Registry) SetNow(t float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Now = t
}

// Advance moves the registry clock forward.
func (r *Registry) Advance(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Now += dt
}

// Snapshot returns an immutable copy for resolution.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Snapshot{state: deep.MustCopy(r.state)}
}

// BotBooking reserves a bot for a plan and records where it ends up.
type BotBooking struct {
	BotID     string
	PlanID    string
	From, To  float64
	EndPos    core.Pos
	EndCharge float64
}

// LaunchBooking reserves a launcher slot at a tower.
type LaunchBooking struct {
	TowerID  string
	BotID    string
	From, To float64
}

// PayloadBooking consumes a payload at its delivery position.
type PayloadBooking struct {
	PayloadID string
	BotID     string
	Position  core.Pos
}

// Commitment is everything one schedule reserves.
type Commitment struct {
	ScheduleID string
	Bots       []BotBooking
	Launches   []LaunchBooking
	Payload    *PayloadBooking
}

// Receipt lists the allocations made by a commit.
type Receipt struct {
	ScheduleID  string
	Allocations []string
}

// Commit applies a commitment atomically. Any conflict returns
// ErrReservationConflict and leaves the registry untouched.
func (r *Registry) Commit(c Commitment) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(c); err != nil {
		return nil, err
	}

	rec := &Receipt{ScheduleID: c.ScheduleID}
	for _, bb := range c.Bots {
		id, err := r.state.BotTime.Allocate(bb.BotID, bb.From, bb.To, bb.PlanID)
		if err != nil {
			// check already proved every window free
			panic(err)
		}
		rec.Allocations = append(rec.Allocations, id)
	}
	for _, lb := range c.Launches {
		id, err := r.state.Launches.Allocate(lb.TowerID, lb.From, lb.To, c.ScheduleID)
		if err != nil {
			panic(err)
		}
		rec.Allocations = append(rec.Allocations, id)
	}

	for _, bb := range c.Bots {
		r.land(bb)
	}
	if pb := c.Payload; pb != nil {
		p := r.state.Payloads[pb.PayloadID]
		if t, ok := r.state.Towers[p.TowerID]; ok {
			t.RemovePayload(p.ID)
		}
		p.TowerID = ""
		p.Delivered = true
		p.Position = pb.Position
	}
	return rec, nil
}

// check verifies a commitment against current state and itself.
func (r *Registry) check(c Commitment) error {
	seen := make(map[string]bool, len(c.Bots))
	for _, bb := range c.Bots {
		b, ok := r.state.Bots[bb.BotID]
		if !ok {
			return fmt.Errorf("%w: unknown bot %s", core.ErrReservationConflict, bb.BotID)
		}
		if seen[bb.BotID] {
			return fmt.Errorf("%w: bot %s booked twice", core.ErrReservationConflict, bb.BotID)
		}
		seen[bb.BotID] = true
		if bb.To < bb.From {
			return fmt.Errorf("%w: bot %s window ends before it starts", core.ErrInvalidParameter, bb.BotID)
		}
		if bb.From < b.AvailableFrom-timeTolerance {
			return fmt.Errorf("%w: bot %s busy until %.1fs", core.ErrReservationConflict, bb.BotID, b.AvailableFrom)
		}
		if !r.state.BotTime.Available(bb.BotID, bb.From, bb.To) {
			return fmt.Errorf("%w: bot %s is booked during [%.1f, %.1f)",
				core.ErrReservationConflict, bb.BotID, bb.From, bb.To)
		}
	}

	for i, lb := range c.Launches {
		if _, ok := r.state.Towers[lb.TowerID]; !ok {
			return fmt.Errorf("%w: unknown tower %s", core.ErrReservationConflict, lb.TowerID)
		}
		pending := 0
		for _, o := range c.Launches[:i] {
			if o.TowerID == lb.TowerID && o.From < lb.To && lb.From < o.To {
				pending++
			}
		}
		if r.state.Launches.Free(lb.TowerID, lb.From, lb.To) <= pending {
			return fmt.Errorf("%w: tower %s has no launcher free at %.1fs",
				core.ErrReservationConflict, lb.TowerID, lb.From)
		}
	}

	if pb := c.Payload; pb != nil {
		p, ok := r.state.Payloads[pb.PayloadID]
		if !ok {
			return fmt.Errorf("%w: unknown payload %s", core.ErrReservationConflict, pb.PayloadID)
		}
		if p.Delivered || p.TowerID == "" {
			return fmt.Errorf("%w: payload %s already taken", core.ErrReservationConflict, pb.PayloadID)
		}
	}
	return nil
}

// land moves a bot to the end of its plan, docking it at a tower there.
func (r *Registry) land(bb BotBooking) {
	b := r.state.Bots[bb.BotID]
	for _, t := range r.state.Towers {
		t.Undock(b.ID)
	}
	b.Position = bb.EndPos
	b.Charge = bb.EndCharge
	b.AvailableFrom = bb.To
	b.Plans = append(b.Plans, bb.PlanID)

	if t := r.towerAt(bb.EndPos); t != nil {
		t.Dock(b.ID)
		b.Recharge(r.state.Models[b.Model])
	}
}

// towerAt returns the tower at pos, lowest id first.
func (r *Registry) towerAt(pos core.Pos) *core.Tower {
	ids := make([]string, 0, len(r.state.Towers))
	for id := range r.state.Towers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if t := r.state.Towers[id]; t.Position.Near(pos) {
			return t
		}
	}
	return nil
}
