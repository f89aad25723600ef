package core

import (
	"errors"
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b Pos
		want float64
	}{
		{Pos{}, Pos{X: 3, Y: 4}, 5},
		{Pos{X: 1, Y: 1, Z: 1}, Pos{X: 1, Y: 1, Z: 1}, 0},
		{Pos{}, Pos{X: 5000, Y: 5000, Z: 5000}, 5000 * math.Sqrt(3)},
		{Pos{X: -2}, Pos{X: 2}, 4},
	}

	for _, tt := range tests {
		got := Distance(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTravelTime(t *testing.T) {
	got, err := TravelTime(Pos{}, Pos{X: 100}, 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != 5 {
		t.Errorf("Expected 5s, got %v", got)
	}

	for _, speed := range []float64{0, -1, math.NaN()} {
		if _, err := TravelTime(Pos{}, Pos{X: 1}, speed); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("speed %v: expected ErrInvalidParameter, got %v", speed, err)
		}
	}
}

func TestInterpolate(t *testing.T) {
	a, b := Pos{}, Pos{X: 10, Y: 20, Z: -10}

	mid, err := Interpolate(a, b, 0.5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !mid.Near(Pos{X: 5, Y: 10, Z: -5}) {
		t.Errorf("Expected midpoint (5,10,-5), got %v", mid)
	}

	end, _ := Interpolate(a, b, 1)
	if !end.Near(b) {
		t.Errorf("Expected end point %v, got %v", b, end)
	}

	for _, f := range []float64{-0.01, 1.01} {
		if _, err := Interpolate(a, b, f); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("fraction %v: expected ErrInvalidParameter, got %v", f, err)
		}
	}
}

func TestBotModelValidate(t *testing.T) {
	tests := []struct {
		name  string
		model BotModel
		ok    bool
	}{
		{"valid", BotModel{Name: "m", FlightTime: 100, Speed: 1}, true},
		{"refueler", BotModel{Name: "m", Role: RoleRefueller, FlightTime: 100, Speed: 1}, true},
		{"no name", BotModel{FlightTime: 100, Speed: 1}, false},
		{"zero flight time", BotModel{Name: "m", Speed: 1}, false},
		{"negative speed", BotModel{Name: "m", FlightTime: 100, Speed: -1}, false},
		{"bad role", BotModel{Name: "m", Role: "tanker", FlightTime: 100, Speed: 1}, false},
	}

	for _, tt := range tests {
		err := tt.model.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", tt.name, err)
		}
	}
}

func TestRoles(t *testing.T) {
	carrier := BotModel{Role: RoleCarrier}
	refueller := BotModel{Role: RoleRefueller}
	generic := BotModel{}

	if carrier.CanRefuel() || !carrier.CanCarry() {
		t.Error("carrier should carry but not refuel")
	}
	if !refueller.CanRefuel() || refueller.CanCarry() {
		t.Error("refueller should refuel but not carry")
	}
	if !generic.CanRefuel() || !generic.CanCarry() {
		t.Error("role-less model should do both")
	}
}

func TestLabels(t *testing.T) {
	wp := NewAction(CombineLabels(LabelPayload, LabelBeingRecharged), 10)
	if wp.Label != "payload being_recharged" {
		t.Errorf("Expected combined label, got %q", wp.Label)
	}
	if !wp.IsRecharge() || !wp.HasTag(LabelPayload) {
		t.Errorf("Expected both tags on %q", wp.Label)
	}
	if CombineLabels(wp.Label, LabelBeingRecharged) != wp.Label {
		t.Error("CombineLabels should not duplicate a tag")
	}
	if CombineLabels("", LabelBeingRecharged) != LabelBeingRecharged {
		t.Error("CombineLabels on empty label should return the tag")
	}

	leg := NewLeg(Pos{}, Pos{X: 1})
	if leg.IsRecharge() || leg.HasTag(LabelPayload) {
		t.Error("legs carry no tags")
	}
	if leg.ID == "" || leg.ID == wp.ID {
		t.Error("expected fresh unique ids")
	}
}

func TestFlightPlanValidate(t *testing.T) {
	a, b, c := Pos{}, Pos{X: 100}, Pos{X: 100, Y: 100}

	fp, err := NewFlightPlan("m", a, []Waypoint{
		NewLeg(a, b),
		NewAction(LabelPayload, 30),
		NewLeg(b, c),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := fp.Validate(true); err != nil {
		t.Errorf("Expected chained plan to be valid, got %v", err)
	}

	// Leg does not start where the previous one ended
	_, err = NewFlightPlan("m", a, []Waypoint{NewLeg(a, b), NewLeg(c, a)})
	if !errors.Is(err, ErrMalformedFlightPlan) {
		t.Errorf("Expected ErrMalformedFlightPlan for broken chain, got %v", err)
	}

	// First leg must start at the plan start
	_, err = NewFlightPlan("m", a, []Waypoint{NewLeg(b, c)})
	if !errors.Is(err, ErrMalformedFlightPlan) {
		t.Errorf("Expected ErrMalformedFlightPlan for wrong start, got %v", err)
	}

	// Empty plans are fine while partial
	empty, err := NewFlightPlan("m", a, nil)
	if err != nil {
		t.Fatalf("Empty partial plan rejected: %v", err)
	}
	if err := empty.Validate(true); !errors.Is(err, ErrMalformedFlightPlan) {
		t.Errorf("Expected empty fully defined plan to be rejected, got %v", err)
	}

	// Waypoints without ids are given one
	fp, _ = NewFlightPlan("m", a, []Waypoint{{Kind: KindLeg, From: a, To: b}})
	if fp.Waypoints[0].ID == "" {
		t.Error("Expected id to be assigned")
	}
}

func TestFlightPlanSteps(t *testing.T) {
	a, b := Pos{}, Pos{X: 100}
	fp, _ := NewFlightPlan("m", a, []Waypoint{
		NewLeg(a, b),
		NewAction(LabelPayload, 30),
		NewLeg(b, a),
	})

	steps := fp.Steps(10)
	if len(steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(steps))
	}
	if steps[0].End != 10 || steps[1].Start != 10 || steps[1].End != 40 || steps[2].End != 50 {
		t.Errorf("Unexpected step timings: %+v", steps)
	}
	if !steps[1].From.Near(b) {
		t.Errorf("Action should sit at %v, got %v", b, steps[1].From)
	}
	if fp.Duration(10) != 50 {
		t.Errorf("Expected duration 50, got %v", fp.Duration(10))
	}
	if !fp.End().Near(a) {
		t.Errorf("Expected plan to end at start, got %v", fp.End())
	}

	clone := fp.Clone()
	clone.Waypoints[1].Duration = 99
	if fp.Waypoints[1].Duration != 30 {
		t.Error("Clone should not share waypoints")
	}
	if clone.Waypoints[0].ID != fp.Waypoints[0].ID {
		t.Error("Clone should keep ids")
	}
}

func TestRefuelEventsMergeContiguousRecharges(t *testing.T) {
	a, b := Pos{}, Pos{X: 100}
	fp, _ := NewFlightPlan("m", a, []Waypoint{
		NewLeg(a, b),
		NewAction(LabelPayload, 10),
		NewAction(CombineLabels(LabelPayload, LabelBeingRecharged), 20),
		NewAction(LabelBeingRecharged, 40),
		NewLeg(b, a),
		NewAction(LabelBeingRecharged, 60),
	})
	fp.BotID = "bot-1"

	events := fp.RefuelEvents(10)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Time != 20 || events[0].Duration != 60 || len(events[0].WaypointIDs) != 2 {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if !events[0].Pos.Near(b) {
		t.Errorf("Expected first event at %v, got %v", b, events[0].Pos)
	}
	if events[1].Time != 90 || events[1].Duration != 60 || !events[1].Pos.Near(a) {
		t.Errorf("Unexpected second event: %+v", events[1])
	}
	if events[1].RecipientBotID != "bot-1" {
		t.Errorf("Expected recipient bot-1, got %q", events[1].RecipientBotID)
	}
}

func TestScheduleTree(t *testing.T) {
	root := &ScheduleNode{BotID: "p", Launch: 0, Duration: 100, InjectedStops: 2}
	s := NewSchedule(root)

	if s.Depth() != 1 {
		t.Errorf("Expected depth 1, got %d", s.Depth())
	}

	if err := s.Add("p", &ScheduleNode{BotID: "r1", Launch: -10, Duration: 50}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("p", &ScheduleNode{BotID: "r2", Launch: 20, Duration: 200, InjectedStops: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("r2", &ScheduleNode{BotID: "r3", Launch: 30, Duration: 10}); err != nil {
		t.Fatal(err)
	}

	if err := s.Add("p", &ScheduleNode{BotID: "r1"}); !errors.Is(err, ErrNoFeasibleRefueller) {
		t.Errorf("Expected duplicate bot to be rejected, got %v", err)
	}
	if err := s.Add("ghost", &ScheduleNode{BotID: "r9"}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected unknown parent to be rejected, got %v", err)
	}

	if s.Depth() != 3 {
		t.Errorf("Expected depth 3, got %d", s.Depth())
	}
	if s.SubtreeDepth("r1") != 1 || s.SubtreeDepth("r2") != 2 {
		t.Errorf("Unexpected subtree depths: r1=%d r2=%d", s.SubtreeDepth("r1"), s.SubtreeDepth("r2"))
	}
	if s.TotalElapsed() != 230 {
		t.Errorf("Expected total elapsed 230, got %v", s.TotalElapsed())
	}
	if s.InjectedStops() != 3 {
		t.Errorf("Expected 3 stops, got %d", s.InjectedStops())
	}
	if s.Node("r3").Parent != "r2" {
		t.Errorf("Expected r3 parent r2, got %q", s.Node("r3").Parent)
	}

	var order []string
	s.Walk(func(n *ScheduleNode) { order = append(order, n.BotID) })
	if len(order) != 4 || order[0] != "p" || order[3] != "r3" {
		t.Errorf("Unexpected walk order %v", order)
	}
}

func TestErrorKind(t *testing.T) {
	if ErrorKind(nil) != "success" {
		t.Error("nil should map to success")
	}
	wrapped := errors.Join(errors.New("x"), ErrRendezvousTimingInfeasible)
	if ErrorKind(wrapped) != "rendezvous_timing_infeasible" {
		t.Errorf("Unexpected kind %q", ErrorKind(wrapped))
	}
	if ErrorKind(errors.New("other")) != "error" {
		t.Error("unknown errors should map to error")
	}
}
