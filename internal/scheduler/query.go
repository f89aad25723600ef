package scheduler

import (
	"fmt"
	"math"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Query is an open-ended delivery request: a payload of a type, or one
// payload specifically, brought to Target for Duration seconds.
type Query struct {
	PayloadType string
	PayloadID   string
	Target      core.Pos
	ArriveAt    *float64 // Absolute start of the payload action; nil for as soon as possible
	Duration    float64
	Stay        bool   // Stay at Target instead of returning to the source tower
	BotModel    string // Restrict carriers to one model
}

// At returns a pointer to t, for Query.ArriveAt.
func At(t float64) *float64 { return &t }

// Validate checks the query.
func (q Query) Validate() error {
	if q.PayloadType == "" && q.PayloadID == "" {
		return fmt.Errorf("%w: query needs a payload type or id", core.ErrInvalidParameter)
	}
	if q.Duration < 0 || math.IsNaN(q.Duration) {
		return fmt.Errorf("%w: payload duration %v must be non-negative", core.ErrInvalidParameter, q.Duration)
	}
	if q.ArriveAt != nil && math.IsNaN(*q.ArriveAt) {
		return fmt.Errorf("%w: arrival time is NaN", core.ErrInvalidParameter)
	}
	return nil
}

// Candidate is one way of serving a request, resolved against a snapshot.
type Candidate struct {
	TowerID   string
	PayloadID string
	BotID     string
	Schedule  *core.Schedule
	Evaluated int   // Refueller candidates evaluated during resolution
	Err       error // Why the candidate is infeasible
}

// Feasible reports whether the candidate resolved.
func (c *Candidate) Feasible() bool {
	return c.Err == nil && c.Schedule != nil
}

// RankFunc reports whether a should be committed before b.
// Both candidates are feasible.
type RankFunc func(a, b *Candidate) bool

// DefaultRank prefers the shortest total elapsed time, then the fewest
// injected stops, then tower, payload and bot id.
func DefaultRank(a, b *Candidate) bool {
	ea, eb := a.Schedule.TotalElapsed(), b.Schedule.TotalElapsed()
	if math.Abs(ea-eb) > 0.001 {
		return ea < eb
	}
	if sa, sb := a.Schedule.InjectedStops(), b.Schedule.InjectedStops(); sa != sb {
		return sa < sb
	}
	if a.TowerID != b.TowerID {
		return a.TowerID < b.TowerID
	}
	if a.PayloadID != b.PayloadID {
		return a.PayloadID < b.PayloadID
	}
	return a.BotID < b.BotID
}
