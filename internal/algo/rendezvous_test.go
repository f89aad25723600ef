package algo

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// fakeAvail is an in-memory Availability.
type fakeAvail struct {
	now      float64
	models   map[string]core.BotModel
	towers   map[string]*core.Tower
	bots     map[string]*core.Bot
	busy     map[string][]window
	launches map[string][]window
}

func newFakeAvail() *fakeAvail {
	return &fakeAvail{
		models:   make(map[string]core.BotModel),
		towers:   make(map[string]*core.Tower),
		bots:     make(map[string]*core.Bot),
		busy:     make(map[string][]window),
		launches: make(map[string][]window),
	}
}

func (f *fakeAvail) addTower(id string, pos core.Pos) *core.Tower {
	t := core.NewTower(id, pos)
	f.towers[id] = t
	return t
}

func (f *fakeAvail) addBot(id string, m core.BotModel, home *core.Tower) *core.Bot {
	f.models[m.Name] = m
	b := core.NewBot(id, m, home)
	home.Dock(id)
	f.bots[id] = b
	return b
}

func (f *fakeAvail) Now() float64 { return f.now }

func (f *fakeAvail) Model(name string) (core.BotModel, bool) {
	m, ok := f.models[name]
	return m, ok
}

func (f *fakeAvail) Tower(id string) (*core.Tower, bool) {
	t, ok := f.towers[id]
	return t, ok
}

func (f *fakeAvail) Bot(id string) (*core.Bot, bool) {
	b, ok := f.bots[id]
	return b, ok
}

func (f *fakeAvail) RefuelCandidates() []*core.Bot {
	var out []*core.Bot
	for _, b := range f.bots {
		if f.models[b.Model].CanRefuel() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeAvail) DockedAt(botID string) (string, bool) {
	for id, t := range f.towers {
		if t.IsDocked(botID) {
			return id, true
		}
	}
	return "", false
}

func overlaps(ws []window, from, to float64) int {
	n := 0
	for _, w := range ws {
		if w.from < to && from < w.to {
			n++
		}
	}
	return n
}

func (f *fakeAvail) BotFree(botID string, from, to float64) bool {
	return overlaps(f.busy[botID], from, to) == 0
}

func (f *fakeAvail) LaunchCapacity(towerID string, from, to float64) int {
	capacity, _ := f.towers[towerID].Launcher()
	return capacity - overlaps(f.launches[towerID], from, to)
}

func carrierModel() core.BotModel {
	return core.BotModel{Name: "carrier", Role: core.RoleCarrier, FlightTime: 1000, Speed: 10}
}

func tankerModel() core.BotModel {
	return core.BotModel{Name: "tanker", Role: core.RoleRefueller, FlightTime: 1000, Speed: 10}
}

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	cfg := DefaultResolverConfig()
	cfg.Workers = 4
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

// rootNode injects a 1200s outbound leg that needs one stop at (7000,0,0).
func rootNode(t *testing.T, r *Resolver, f *fakeAvail, launch float64) *core.ScheduleNode {
	t.Helper()
	m := carrierModel()
	f.models[m.Name] = m
	a, b := core.Pos{}, core.Pos{X: 12000}
	fp := mustPlan(t, m.Name, a, core.NewLeg(a, b))
	res, err := r.Injector().Inject(fp, m, m.FlightTime)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if len(res.Stops) != 1 {
		t.Fatalf("Expected root plan with 1 stop, got %d", len(res.Stops))
	}
	return NewNode("c1", m, res, launch, m.FlightTime, "")
}

func TestResolve_ZeroDeficitRefueller(t *testing.T) {
	f := newFakeAvail()
	t1 := f.addTower("t1", core.Pos{})
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r1", tankerModel(), t1)
	f.addBot("r2", tankerModel(), t2)

	r := testResolver(t)
	root := rootNode(t, r, f, 1000)

	res, err := r.Resolve(context.Background(), f, root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s := res.Schedule
	if s.Depth() != 2 {
		t.Errorf("Expected depth 2, got %d", s.Depth())
	}
	if root.Events[0].RefuellerBotID != "r2" {
		t.Errorf("Expected r2 to refuel, got %q", root.Events[0].RefuellerBotID)
	}

	n := s.Node("r2")
	if n == nil || n.Parent != "c1" {
		t.Fatalf("Expected r2 linked under c1, got %+v", n)
	}
	if s.SubtreeDepth("r2") != 1 || n.InjectedStops != 0 {
		t.Errorf("Expected zero-deficit leaf, got depth %d stops %d", s.SubtreeDepth("r2"), n.InjectedStops)
	}
	// 300s flight to the rendezvous at t=1700
	if !timeEqual(n.Launch, 1400) {
		t.Errorf("Expected launch at 1400, got %v", n.Launch)
	}
	if n.LaunchTower != "t2" {
		t.Errorf("Expected launch from t2, got %q", n.LaunchTower)
	}
	if !n.Plan.End().Near(t2.Position) {
		t.Errorf("Expected refueller to return home, ends at %v", n.Plan.End())
	}
	if res.Evaluated != 2 {
		t.Errorf("Expected 2 evaluations, got %d", res.Evaluated)
	}
}

func TestResolve_NoReturn(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r2", tankerModel(), t2)

	cfg := DefaultResolverConfig()
	cfg.ReturnHome = false
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	n := res.Schedule.Node("r2")
	if !n.Plan.End().Near(core.Pos{X: 7000}) {
		t.Errorf("Expected refueller to stay at the rendezvous, ends at %v", n.Plan.End())
	}
}

func TestResolve_RecursiveChain(t *testing.T) {
	f := newFakeAvail()
	t1 := f.addTower("t1", core.Pos{})
	t2 := f.addTower("t2", core.Pos{X: 5600})

	// r1 reaches the rendezvous but needs a stop on its way home
	big := core.BotModel{Name: "tanker-xl", Role: core.RoleRefueller, FlightTime: 1200, Speed: 10}
	f.addBot("r1", big, t1)
	// r2 is close but busy until after the first rendezvous
	r2 := f.addBot("r2", tankerModel(), t2)
	r2.AvailableFrom = 1700

	r := testResolver(t)
	root := rootNode(t, r, f, 1000)

	res, err := r.Resolve(context.Background(), f, root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s := res.Schedule
	if s.Depth() != 3 {
		t.Fatalf("Expected depth 3, got %d", s.Depth())
	}
	if s.Node("r1").Parent != "c1" || s.Node("r2").Parent != "r1" {
		t.Errorf("Expected chain c1 <- r1 <- r2, got r1.parent=%q r2.parent=%q",
			s.Node("r1").Parent, s.Node("r2").Parent)
	}

	n1 := s.Node("r1")
	if n1.InjectedStops != 1 || len(n1.Events) != 1 {
		t.Fatalf("Expected r1 to need one stop, got %d", n1.InjectedStops)
	}
	if !n1.Events[0].Pos.Near(core.Pos{X: 5600}) {
		t.Errorf("Expected r1 stop at (5600,0,0), got %v", n1.Events[0].Pos)
	}
	if n1.Events[0].RefuellerBotID != "r2" {
		t.Errorf("Expected r2 to refuel r1, got %q", n1.Events[0].RefuellerBotID)
	}
	// r2 waits at its tower for r1 to pass by
	if n2 := s.Node("r2"); !timeEqual(n2.Launch, 1900) || len(n2.Plan.Waypoints) != 1 {
		t.Errorf("Expected r2 to dwell at 1900 in place, got launch %v plan %+v", n2.Launch, n2.Plan.Waypoints)
	}
	if s.InjectedStops() != 2 {
		t.Errorf("Expected 2 stops in total, got %d", s.InjectedStops())
	}
}

func TestResolve_MaxDepth(t *testing.T) {
	f := newFakeAvail()
	t1 := f.addTower("t1", core.Pos{})
	t2 := f.addTower("t2", core.Pos{X: 5600})
	f.addBot("r1", core.BotModel{Name: "tanker-xl", Role: core.RoleRefueller, FlightTime: 1200, Speed: 10}, t1)
	f.addBot("r2", tankerModel(), t2).AvailableFrom = 1700

	cfg := DefaultResolverConfig()
	cfg.MaxDepth = 2
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if !errors.Is(err, core.ErrNoFeasibleRefueller) {
		t.Errorf("Expected ErrNoFeasibleRefueller beyond max depth, got %v", err)
	}
}

func TestResolve_CycleSafety(t *testing.T) {
	// Every refueller needs a refueller of its own at the rendezvous
	f := newFakeAvail()
	t1 := f.addTower("t1", core.Pos{})
	f.addBot("r1", tankerModel(), t1)
	f.addBot("r3", tankerModel(), t1)

	r := testResolver(t)
	_, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if !errors.Is(err, core.ErrNoFeasibleRefueller) {
		t.Errorf("Expected ErrNoFeasibleRefueller, got %v", err)
	}
}

func TestResolve_NoCandidates(t *testing.T) {
	f := newFakeAvail()
	r := testResolver(t)
	_, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if !errors.Is(err, core.ErrNoFeasibleRefueller) {
		t.Errorf("Expected ErrNoFeasibleRefueller, got %v", err)
	}
}

func TestResolve_TimingInfeasible(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r2", tankerModel(), t2)
	// r2 would have to launch at 400
	f.now = 500

	r := testResolver(t)
	_, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 0))
	if !errors.Is(err, core.ErrRendezvousTimingInfeasible) {
		t.Errorf("Expected ErrRendezvousTimingInfeasible, got %v", err)
	}
}

func TestResolve_BusyRefueller(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r2", tankerModel(), t2)
	f.busy["r2"] = []window{{from: 1500, to: 1600}}

	r := testResolver(t)
	_, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if !errors.Is(err, core.ErrNoFeasibleRefueller) {
		t.Errorf("Expected ErrNoFeasibleRefueller for busy bot, got %v", err)
	}
	if errors.Is(err, core.ErrRendezvousTimingInfeasible) {
		t.Error("Busy bot should not be reported as a timing failure")
	}
}

func TestResolve_LaunchSlotTaken(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	t2.LaunchTime = 30
	f.addBot("r2", tankerModel(), t2)
	f.launches["t2"] = []window{{from: 1390, to: 1420}}

	r := testResolver(t)
	_, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if !errors.Is(err, core.ErrNoFeasibleRefueller) {
		t.Errorf("Expected ErrNoFeasibleRefueller for full launcher, got %v", err)
	}

	t2.ParallelLaunchers = 2
	if _, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000)); err != nil {
		t.Errorf("Expected second launcher to be used, got %v", err)
	}
}

func TestResolve_Cancelled(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r2", tankerModel(), t2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := testResolver(t)
	_, err := r.Resolve(ctx, f, rootNode(t, r, f, 1000))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResolve_TemplateCacheFreshIDs(t *testing.T) {
	f := newFakeAvail()
	t2 := f.addTower("t2", core.Pos{X: 10000})
	f.addBot("r2", tankerModel(), t2)

	r := testResolver(t)
	a, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Resolve(context.Background(), f, rootNode(t, r, f, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if r.cache.Len() != 1 {
		t.Errorf("Expected one cached template, got %d", r.cache.Len())
	}

	pa, pb := a.Schedule.Node("r2").Plan, b.Schedule.Node("r2").Plan
	if len(pa.Waypoints) != len(pb.Waypoints) {
		t.Fatalf("Expected same structure, got %d and %d waypoints", len(pa.Waypoints), len(pb.Waypoints))
	}
	if pa.ID == pb.ID {
		t.Error("Expected fresh plan id on cache hit")
	}
	for i := range pa.Waypoints {
		if pa.Waypoints[i].ID == pb.Waypoints[i].ID {
			t.Errorf("waypoint %d: expected fresh id on cache hit", i)
		}
		if pa.Waypoints[i].Label != pb.Waypoints[i].Label {
			t.Errorf("waypoint %d: labels differ", i)
		}
	}
	if pb.BotID != "r2" {
		t.Errorf("Expected cached plan assigned to r2, got %q", pb.BotID)
	}
}
