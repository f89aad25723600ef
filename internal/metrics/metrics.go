// Package metrics defines prometheus instrumentation for planning.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Metrics bundles planning metrics. A nil *Metrics records nothing.
type Metrics struct {
	ResolutionsTotal    *prometheus.CounterVec
	ResolutionDuration  prometheus.Histogram
	InjectedStops       prometheus.Histogram
	ScheduleDepth       prometheus.Histogram
	CandidatesEvaluated prometheus.Counter
	CommitConflicts     prometheus.Counter
	RendezvousMisses    prometheus.Counter
}

// New constructs metrics and registers them on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_resolutions_total",
				Help: "Total schedule requests by result",
			},
			[]string{"kind", "result"},
		),
		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_resolution_duration_seconds",
			Help:    "Wall time spent resolving a request",
			Buckets: prometheus.DefBuckets,
		}),
		InjectedStops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_injected_stops",
			Help:    "Recharge stops per committed schedule",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		ScheduleDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_schedule_depth",
			Help:    "Refuel tree depth per committed schedule",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),
		CandidatesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_candidates_evaluated_total",
			Help: "Refueller and source candidates evaluated",
		}),
		CommitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_commit_conflicts_total",
			Help: "Commits rejected for double-booking",
		}),
		RendezvousMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_rendezvous_misses_total",
			Help: "Simulated rendezvous where the refueller was absent",
		}),
	}
	reg.MustRegister(
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.InjectedStops,
		m.ScheduleDepth,
		m.CandidatesEvaluated,
		m.CommitConflicts,
		m.RendezvousMisses,
	)
	return m
}

// ObserveResolution records the outcome of one request.
func (m *Metrics) ObserveResolution(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(kind, core.ErrorKind(err)).Inc()
	m.ResolutionDuration.Observe(elapsed.Seconds())
}

// ObserveSchedule records the shape of a committed schedule.
func (m *Metrics) ObserveSchedule(s *core.Schedule) {
	if m == nil || s == nil {
		return
	}
	m.InjectedStops.Observe(float64(s.InjectedStops()))
	m.ScheduleDepth.Observe(float64(s.Depth()))
}

// AddCandidates counts evaluated candidates.
func (m *Metrics) AddCandidates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CandidatesEvaluated.Add(float64(n))
}

// IncConflict counts a rejected commit.
func (m *Metrics) IncConflict() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}

// AddMisses counts rendezvous misses found by simulation.
func (m *Metrics) AddMisses(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RendezvousMisses.Add(float64(n))
}
