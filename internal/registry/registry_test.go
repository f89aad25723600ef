package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

func TestAllocator(t *testing.T) {
	a := NewAllocator()

	if _, err := a.Allocate("b1", 0, 10, "p1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := a.Allocate("b1", 5, 15, "p2"); !errors.Is(err, core.ErrReservationConflict) {
		t.Errorf("Expected overlap to conflict, got %v", err)
	}
	// Half-open windows may touch
	id, err := a.Allocate("b1", 10, 20, "p3")
	if err != nil {
		t.Errorf("Expected adjacent window to fit, got %v", err)
	}
	if _, err := a.Allocate("b2", 5, 15, "p4"); err != nil {
		t.Errorf("Expected other resource to be free, got %v", err)
	}
	if _, err := a.Allocate("b1", 30, 20, "p5"); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected reversed window to be invalid, got %v", err)
	}

	ws := a.Windows("b1")
	if len(ws) != 2 || ws[0].From != 0 || ws[1].From != 10 {
		t.Errorf("Unexpected windows %+v", ws)
	}

	if !a.Release(id) || a.Release(id) {
		t.Error("Expected release to succeed exactly once")
	}
	if !a.Available("b1", 10, 20) {
		t.Error("Expected released window to be free")
	}
}

func TestAllocatorCapacity(t *testing.T) {
	a := NewAllocator()
	a.SetCapacity("t1", 2)

	for i := 0; i < 2; i++ {
		if _, err := a.Allocate("t1", 0, 30, ""); err != nil {
			t.Fatalf("launch %d: %v", i, err)
		}
	}
	if a.Free("t1", 10, 20) != 0 {
		t.Errorf("Expected no free launchers, got %d", a.Free("t1", 10, 20))
	}
	if _, err := a.Allocate("t1", 0, 30, ""); !errors.Is(err, core.ErrReservationConflict) {
		t.Errorf("Expected third launch to conflict, got %v", err)
	}
	if a.Free("t1", 30, 60) != 2 {
		t.Errorf("Expected both launchers free later, got %d", a.Free("t1", 30, 60))
	}
}

// testRegistry has one tower with a carrier, a refueller and a payload.
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	carrier := core.BotModel{Name: "carrier", Role: core.RoleCarrier, FlightTime: 1000, Speed: 10}
	tanker := core.BotModel{Name: "tanker", Role: core.RoleRefueller, FlightTime: 1000, Speed: 10}
	for _, m := range []core.BotModel{carrier, tanker} {
		if err := r.AddModel(m); err != nil {
			t.Fatal(err)
		}
	}

	t1 := core.NewTower("t1", core.Pos{})
	t1.LaunchTime = 30
	if err := r.AddTower(t1); err != nil {
		t.Fatal(err)
	}
	if err := r.AddTower(core.NewTower("t2", core.Pos{X: 1000})); err != nil {
		t.Fatal(err)
	}
	for _, b := range []*core.Bot{core.NewBot("c1", carrier, t1), core.NewBot("k1", tanker, t1)} {
		if err := r.AddBot(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.AddPayload(&core.Payload{ID: "p1", Type: "medkit", TowerID: "t1"}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRegistryAddValidation(t *testing.T) {
	r := testRegistry(t)
	m := core.BotModel{Name: "carrier", FlightTime: 1, Speed: 1}

	if err := r.AddModel(m); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected duplicate model to be rejected, got %v", err)
	}
	if err := r.AddBot(&core.Bot{ID: "x", Model: "ghost"}); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected unknown model to be rejected, got %v", err)
	}
	if err := r.AddBot(&core.Bot{ID: "x", Model: "carrier", HomeTower: "nowhere"}); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected unknown tower to be rejected, got %v", err)
	}
	if err := r.AddPayload(&core.Payload{ID: "p2", TowerID: "nowhere"}); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected payload at unknown tower to be rejected, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r := testRegistry(t)
	snap := r.Snapshot()

	_, err := r.Commit(Commitment{
		Bots:    []BotBooking{{BotID: "c1", From: 0, To: 100, EndPos: core.Pos{X: 1000}, EndCharge: 900}},
		Payload: &PayloadBooking{PayloadID: "p1", BotID: "c1", Position: core.Pos{X: 500}},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	b, _ := snap.Bot("c1")
	if !b.Position.Near(core.Pos{}) || b.AvailableFrom != 0 {
		t.Errorf("Snapshot saw commit: %+v", b)
	}
	if !snap.BotFree("c1", 0, 100) {
		t.Error("Snapshot saw booking")
	}
	if len(snap.PayloadsAt("t1", "medkit", "")) != 1 {
		t.Error("Snapshot lost payload")
	}

	// Mutating a snapshot never reaches the registry
	b.Charge = 1
	if b2, _ := r.Snapshot().Bot("c1"); b2.Charge == 1 {
		t.Error("Snapshot shares bots with registry")
	}
}

func TestCommitAppliesState(t *testing.T) {
	r := testRegistry(t)

	rec, err := r.Commit(Commitment{
		ScheduleID: "s1",
		Bots: []BotBooking{
			{BotID: "c1", PlanID: "plan-c", From: 10, To: 200, EndPos: core.Pos{X: 1000}, EndCharge: 400},
			{BotID: "k1", PlanID: "plan-k", From: 50, To: 150, EndPos: core.Pos{X: 300}, EndCharge: 500},
		},
		Launches: []LaunchBooking{{TowerID: "t1", BotID: "c1", From: 10, To: 40}},
		Payload:  &PayloadBooking{PayloadID: "p1", BotID: "c1", Position: core.Pos{X: 600}},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(rec.Allocations) != 3 {
		t.Errorf("Expected 3 allocations, got %d", len(rec.Allocations))
	}

	s := r.Snapshot()
	c1, _ := s.Bot("c1")
	if !c1.Position.Near(core.Pos{X: 1000}) || c1.AvailableFrom != 200 {
		t.Errorf("Unexpected carrier state %+v", c1)
	}
	// Landed at t2, so docked and recharged
	if c1.Charge != 1000 {
		t.Errorf("Expected docked carrier to be recharged, got %v", c1.Charge)
	}
	if tower, ok := s.DockedAt("c1"); !ok || tower != "t2" {
		t.Errorf("Expected c1 docked at t2, got %q", tower)
	}
	if len(c1.Plans) != 1 || c1.Plans[0] != "plan-c" {
		t.Errorf("Unexpected plans %v", c1.Plans)
	}

	k1, _ := s.Bot("k1")
	if k1.Charge != 500 {
		t.Errorf("Expected airborne refueller to keep end charge, got %v", k1.Charge)
	}
	if _, ok := s.DockedAt("k1"); ok {
		t.Error("Expected k1 to be undocked")
	}

	p, _ := s.Payload("p1")
	if !p.Delivered || p.TowerID != "" || !p.Position.Near(core.Pos{X: 600}) {
		t.Errorf("Unexpected payload state %+v", p)
	}
	if len(s.TowersWithPayload("medkit", "")) != 0 {
		t.Error("Expected no tower to hold medkit")
	}
}

func TestCommitAtomic(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.Commit(Commitment{Bots: []BotBooking{{BotID: "k1", From: 100, To: 200, EndPos: core.Pos{}}}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		c    Commitment
	}{
		{"bot overlap", Commitment{Bots: []BotBooking{
			{BotID: "c1", From: 0, To: 50},
			{BotID: "k1", From: 150, To: 250},
		}}},
		{"bot before availability", Commitment{Bots: []BotBooking{
			{BotID: "c1", From: 0, To: 50},
			{BotID: "k1", From: 10, To: 20},
		}}},
		{"bot twice", Commitment{Bots: []BotBooking{
			{BotID: "c1", From: 0, To: 50},
			{BotID: "c1", From: 60, To: 70},
		}}},
		{"launch overbooked", Commitment{
			Bots: []BotBooking{{BotID: "c1", From: 0, To: 50}},
			Launches: []LaunchBooking{
				{TowerID: "t1", From: 0, To: 30},
				{TowerID: "t1", From: 10, To: 40},
			},
		}},
		{"payload missing", Commitment{
			Bots:    []BotBooking{{BotID: "c1", From: 0, To: 50}},
			Payload: &PayloadBooking{PayloadID: "ghost"},
		}},
		{"unknown bot", Commitment{Bots: []BotBooking{{BotID: "ghost", From: 0, To: 50}}}},
	}

	for _, tt := range tests {
		_, err := r.Commit(tt.c)
		if !errors.Is(err, core.ErrReservationConflict) {
			t.Errorf("%s: expected ErrReservationConflict, got %v", tt.name, err)
		}
		s := r.Snapshot()
		if !s.BotFree("c1", 0, 50) {
			t.Errorf("%s: partial commit reserved c1", tt.name)
		}
		if s.LaunchCapacity("t1", 0, 40) != 1 {
			t.Errorf("%s: partial commit reserved a launcher", tt.name)
		}
	}

	// Payload can only be consumed once
	pb := &PayloadBooking{PayloadID: "p1", BotID: "c1"}
	if _, err := r.Commit(Commitment{Bots: []BotBooking{{BotID: "c1", From: 0, To: 50}}, Payload: pb}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Commit(Commitment{Bots: []BotBooking{{BotID: "c1", From: 60, To: 70}}, Payload: pb}); !errors.Is(err, core.ErrReservationConflict) {
		t.Errorf("Expected second payload use to conflict, got %v", err)
	}
}

func TestCommitConcurrent(t *testing.T) {
	r := testRegistry(t)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Snapshot()
			_, errs[i] = r.Commit(Commitment{Bots: []BotBooking{{BotID: "c1", From: 0, To: 100}}})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, core.ErrReservationConflict):
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("Expected exactly one commit to win, got %d", ok)
	}
	if ws := r.Snapshot().BotWindows("c1"); len(ws) != 1 {
		t.Errorf("Expected one booking, got %d", len(ws))
	}
}

func TestSnapshotQueries(t *testing.T) {
	r := testRegistry(t)
	r.SetCompatibility("medkit", []string{"carrier"})
	s := r.Snapshot()

	if got := s.RefuelCandidates(); len(got) != 1 || got[0].ID != "k1" {
		t.Errorf("Expected k1 as only refueller, got %v", got)
	}
	if got := s.IdleDocked("t1", "", 0); len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("Expected c1 as only idle carrier, got %v", got)
	}
	if got := s.IdleDocked("t1", "tanker", 0); len(got) != 1 || got[0].ID != "k1" {
		t.Errorf("Expected k1 by model, got %v", got)
	}
	if !s.Compatible("medkit", "carrier") || s.Compatible("medkit", "tanker") {
		t.Error("Unexpected compatibility")
	}
	if !s.Compatible("anything", "carrier") {
		t.Error("Expected unrestricted types to allow any carrier")
	}
	if got := s.TowersWithPayload("", "p1"); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("Expected t1 to hold p1, got %v", got)
	}

	r.Advance(5)
	if r.Now() != 5 || s.Now() != 0 {
		t.Errorf("Expected clock 5 and snapshot clock 0, got %v and %v", r.Now(), s.Now())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Planning.Now = 42
	cfg.BotModels = []config.BotModel{
		{Name: "hauler", Role: "carrier", FlightTime: 1000, Speed: 20},
		{Name: "tanker", Role: "refueler", FlightTime: 1500, Speed: 15},
	}
	cfg.Towers = []config.Tower{{
		ID:                "north",
		Position:          []float64{0, 5000, 100},
		ParallelLaunchers: 2,
		LaunchTime:        30,
		Bots:              []config.Bot{{ID: "h1", Model: "hauler"}, {ID: "k1", Model: "tanker", Charge: 900}},
		Payloads:          []config.Payload{{ID: "p1", Type: "medkit"}},
	}}

	r, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	s := r.Snapshot()
	if s.Now() != 42 {
		t.Errorf("Expected clock 42, got %v", s.Now())
	}
	k1, ok := s.Bot("k1")
	if !ok || k1.Charge != 900 || !k1.Position.Near(core.Pos{Y: 5000, Z: 100}) {
		t.Errorf("Unexpected k1 %+v", k1)
	}
	if tower, _ := s.DockedAt("h1"); tower != "north" {
		t.Errorf("Expected h1 docked at north, got %q", tower)
	}
	if s.LaunchCapacity("north", 0, 30) != 2 {
		t.Errorf("Expected 2 launchers, got %d", s.LaunchCapacity("north", 0, 30))
	}

	cfg.Towers[0].Bots[0].Model = "ghost"
	if _, err := FromConfig(cfg); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected unknown model to fail, got %v", err)
	}
}
