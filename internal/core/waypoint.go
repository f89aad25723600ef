package core

import (
	"strings"

	"github.com/google/uuid"
)

// WaypointKind classifies waypoints.
type WaypointKind int

const (
	KindLeg    WaypointKind = iota // Straight-line travel
	KindAction                     // Stationary operation
)

func (k WaypointKind) String() string {
	return [...]string{"leg", "action"}[k]
}

// Action label tags. A label is a space-joined set of tags.
const (
	LabelPayload        = "payload"
	LabelBeingRecharged = "being_recharged"
	LabelGivingRecharge = "giving_recharge"
)

// Waypoint is either a Leg (From -> To) or an Action (Label for Duration).
type Waypoint struct {
	ID   string
	Kind WaypointKind
	// Leg fields
	From, To Pos
	// Action fields
	Label    string
	Duration float64 // Seconds
	// Generated marks waypoints created by planning rather than the caller.
	Generated bool
}

// NewID returns a fresh unique identifier.
func NewID() string {
	return uuid.New().String()
}

// NewLeg creates a leg waypoint with a fresh id.
func NewLeg(from, to Pos) Waypoint {
	return Waypoint{ID: NewID(), Kind: KindLeg, From: from, To: to}
}

// NewAction creates an action waypoint with a fresh id.
func NewAction(label string, duration float64) Waypoint {
	return Waypoint{ID: NewID(), Kind: KindAction, Label: label, Duration: duration}
}

// IsLeg returns true for leg waypoints.
func (w Waypoint) IsLeg() bool { return w.Kind == KindLeg }

// IsAction returns true for action waypoints.
func (w Waypoint) IsAction() bool { return w.Kind == KindAction }

// HasTag checks whether the action label contains tag.
func (w Waypoint) HasTag(tag string) bool {
	if w.Kind != KindAction {
		return false
	}
	for _, t := range strings.Fields(w.Label) {
		if t == tag {
			return true
		}
	}
	return false
}

// IsRecharge returns true if the bot is being recharged during this action.
func (w Waypoint) IsRecharge() bool {
	return w.HasTag(LabelBeingRecharged)
}

// CombineLabels joins label and tag, skipping a tag already present.
func CombineLabels(label, tag string) string {
	for _, t := range strings.Fields(label) {
		if t == tag {
			return label
		}
	}
	if label == "" {
		return tag
	}
	return label + " " + tag
}
