// Package scheduler turns delivery requests into committed schedules.
//
// A request is resolved against a registry snapshot, so many requests can
// plan concurrently; the registry commit is the only point where they
// serialize. A commit that loses a race fails with ErrReservationConflict
// and the next ranked candidate is tried.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/relay-refuel/internal/algo"
	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/log"
	"github.com/elektrokombinacija/relay-refuel/internal/metrics"
	"github.com/elektrokombinacija/relay-refuel/internal/registry"
)

// Store is the registry surface the scheduler needs.
type Store interface {
	Snapshot() *registry.Snapshot
	Commit(registry.Commitment) (*registry.Receipt, error)
}

// Options configures a Scheduler.
type Options struct {
	Resolver algo.ResolverConfig
	Rank     RankFunc // DefaultRank when nil
	Workers  int      // Concurrent flexible candidates; GOMAXPROCS when zero
	Logger   *log.Logger
	Metrics  *metrics.Metrics
}

// OptionsFromConfig maps configuration onto scheduler options.
func OptionsFromConfig(cfg config.Config) Options {
	rc := algo.DefaultResolverConfig()
	rc.Refuel = cfg.RefuelConfig()
	rc.ReturnHome = cfg.Planning.RefuellerReturn
	if cfg.Planning.MaxDepth > 0 {
		rc.MaxDepth = cfg.Planning.MaxDepth
	}
	if cfg.Planning.MaxCandidates > 0 {
		rc.MaxCandidates = cfg.Planning.MaxCandidates
	}
	if cfg.Planning.CacheSize > 0 {
		rc.CacheSize = cfg.Planning.CacheSize
	}
	rc.Workers = cfg.Planning.Workers
	return Options{Resolver: rc, Workers: cfg.Planning.Workers}
}

// Scheduler resolves and commits requests.
type Scheduler struct {
	store    Store
	resolver *algo.Resolver
	rank     RankFunc
	workers  int
	lg       *log.Logger
	metrics  *metrics.Metrics
}

// New creates a scheduler over store.
func New(store Store, opts Options) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", core.ErrInvalidParameter)
	}
	resolver, err := algo.NewResolver(opts.Resolver)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		store:    store,
		resolver: resolver,
		rank:     opts.Rank,
		workers:  opts.Workers,
		lg:       opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.rank == nil {
		s.rank = DefaultRank
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s, nil
}

// Outcome is a committed schedule.
type Outcome struct {
	Schedule  *core.Schedule
	Receipt   *registry.Receipt
	TowerID   string // Tower the primary bot launched from; empty if airborne
	PayloadID string
	Tried     int // Candidates whose commit was attempted
}

// ConcreteRequest schedules an explicit plan.
type ConcreteRequest struct {
	Plan      *core.FlightPlan
	BotID     string   // Empty picks an idle bot docked at the plan start
	Launch    *float64 // Absolute launch time; nil for as soon as possible
	PayloadID string   // Payload consumed at the first payload action, if any
}

// ScheduleConcrete injects recharge stops into the plan, resolves
// refuellers for every stop and commits the result.
func (s *Scheduler) ScheduleConcrete(ctx context.Context, req ConcreteRequest) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveResolution("concrete", time.Since(start), err)
	}()

	if req.Plan == nil {
		return nil, fmt.Errorf("%w: nil flight plan", core.ErrInvalidParameter)
	}
	if req.Launch != nil && math.IsNaN(*req.Launch) {
		return nil, fmt.Errorf("%w: launch time is NaN", core.ErrInvalidParameter)
	}

	snap := s.store.Snapshot()
	model, ok := snap.Model(req.Plan.BotModel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown bot model %s", core.ErrInvalidParameter, req.Plan.BotModel)
	}
	bot, err := s.pickBot(snap, req)
	if err != nil {
		return nil, err
	}

	c := &Candidate{BotID: bot.ID, PayloadID: req.PayloadID}
	c.TowerID, _ = snap.DockedAt(bot.ID)
	if req.PayloadID != "" {
		if err := checkPayload(snap, req.PayloadID, c.TowerID, model); err != nil {
			return nil, err
		}
	}

	res, err := s.resolve(ctx, snap, bot, model, req.Plan, func(_ *algo.InjectionResult, earliest float64) float64 {
		if req.Launch != nil {
			return *req.Launch
		}
		return earliest
	})
	if err != nil {
		return nil, err
	}
	c.Schedule = res.Schedule
	c.Evaluated = res.Evaluated
	s.metrics.AddCandidates(res.Evaluated)

	return s.commit(ctx, snap, []*Candidate{c})
}

// pickBot returns the requested bot, or the lowest-id idle bot of the
// plan's model docked at a tower at the plan start.
func (s *Scheduler) pickBot(snap *registry.Snapshot, req ConcreteRequest) (*core.Bot, error) {
	if req.BotID != "" {
		b, ok := snap.Bot(req.BotID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown bot %s", core.ErrInvalidParameter, req.BotID)
		}
		if b.Model != req.Plan.BotModel {
			return nil, fmt.Errorf("%w: bot %s is a %s, plan needs a %s",
				core.ErrInvalidParameter, b.ID, b.Model, req.Plan.BotModel)
		}
		if !b.Position.Near(req.Plan.Start) {
			return nil, fmt.Errorf("%w: bot %s is at %v, plan starts at %v",
				core.ErrInvalidParameter, b.ID, b.Position, req.Plan.Start)
		}
		return b, nil
	}

	at := snap.Now()
	if req.Launch != nil {
		at = *req.Launch
	}
	for _, t := range snap.Towers() {
		if !t.Position.Near(req.Plan.Start) {
			continue
		}
		if bots := snap.IdleDocked(t.ID, req.Plan.BotModel, at); len(bots) > 0 {
			return bots[0], nil
		}
	}
	return nil, fmt.Errorf("%w: no idle %s bot docked at %v",
		core.ErrInvalidParameter, req.Plan.BotModel, req.Plan.Start)
}

func checkPayload(snap *registry.Snapshot, id, towerID string, model core.BotModel) error {
	p, ok := snap.Payload(id)
	if !ok {
		return fmt.Errorf("%w: unknown payload %s", core.ErrInvalidParameter, id)
	}
	if p.Delivered || p.TowerID == "" {
		return fmt.Errorf("%w: payload %s already delivered", core.ErrInvalidParameter, id)
	}
	if p.TowerID != towerID {
		return fmt.Errorf("%w: payload %s is held at %s, bot launches from %q",
			core.ErrInvalidParameter, id, p.TowerID, towerID)
	}
	if !snap.Compatible(p.Type, model.Name) {
		return fmt.Errorf("%w: model %s may not carry %s payloads", core.ErrInvalidParameter, model.Name, p.Type)
	}
	return nil
}

// ScheduleFlexible serves a query from whichever tower, payload and
// carrier gives the best ranked schedule.
func (s *Scheduler) ScheduleFlexible(ctx context.Context, q Query) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveResolution("flexible", time.Since(start), err)
	}()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	snap := s.store.Snapshot()
	cands, err := s.evaluate(ctx, snap, q)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no tower holds a %q payload with an idle compatible carrier",
			core.ErrInvalidParameter, q.PayloadType+q.PayloadID)
	}

	var ok []*Candidate
	var errs []error
	for _, c := range cands {
		if c.Feasible() {
			ok = append(ok, c)
			continue
		}
		s.lg.Debug("candidate rejected",
			slog.String("tower", c.TowerID),
			slog.String("bot", c.BotID),
			slog.String("kind", core.ErrorKind(c.Err)),
			slog.Any("error", c.Err))
		errs = append(errs, fmt.Errorf("tower %s bot %s: %w", c.TowerID, c.BotID, c.Err))
	}
	if len(ok) == 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(ok, func(i, j int) bool { return s.rank(ok[i], ok[j]) })
	return s.commit(ctx, snap, ok)
}

// evaluate builds and resolves every flexible candidate on the snapshot.
func (s *Scheduler) evaluate(ctx context.Context, snap *registry.Snapshot, q Query) ([]*Candidate, error) {
	var cands []*Candidate
	for _, t := range snap.TowersWithPayload(q.PayloadType, q.PayloadID) {
		payloads := snap.PayloadsAt(t.ID, q.PayloadType, q.PayloadID)
		p := payloads[0]
		for _, b := range snap.IdleDocked(t.ID, q.BotModel, math.Inf(1)) {
			if !snap.Compatible(p.Type, b.Model) {
				continue
			}
			cands = append(cands, &Candidate{TowerID: t.ID, PayloadID: p.ID, BotID: b.ID})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, c := range cands {
		g.Go(func() error {
			c.Schedule, c.Evaluated, c.Err = s.evaluateOne(gctx, snap, q, c)
			if errors.Is(c.Err, context.Canceled) || errors.Is(c.Err, context.DeadlineExceeded) {
				return c.Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, c := range cands {
		total += c.Evaluated
	}
	s.metrics.AddCandidates(len(cands) + total)
	return cands, nil
}

func (s *Scheduler) evaluateOne(ctx context.Context, snap *registry.Snapshot, q Query, c *Candidate) (*core.Schedule, int, error) {
	bot, _ := snap.Bot(c.BotID)
	tower, _ := snap.Tower(c.TowerID)
	model, ok := snap.Model(bot.Model)
	if !ok {
		return nil, 0, fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, bot.ID, bot.Model)
	}

	plan, err := algo.DeliveryPlan(model, tower.Position, q.Target, q.Duration, q.Stay)
	if err != nil {
		return nil, 0, err
	}

	res, err := s.resolve(ctx, snap, bot, model, plan, func(in *algo.InjectionResult, earliest float64) float64 {
		if q.ArriveAt == nil {
			return earliest
		}
		step, _ := in.Plan.FirstTagged(core.LabelPayload, model.Speed)
		return *q.ArriveAt - step.Start
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Schedule, res.Evaluated, nil
}

// launchFunc picks the root launch time from the injected plan and the
// bot's earliest possible launch.
type launchFunc func(res *algo.InjectionResult, earliest float64) float64

// resolve injects the root plan, times it and resolves its refuellers.
func (s *Scheduler) resolve(ctx context.Context, snap *registry.Snapshot, bot *core.Bot, model core.BotModel, plan *core.FlightPlan, at launchFunc) (*algo.Resolution, error) {
	res, err := s.resolver.Injector().Inject(plan, model, bot.Charge)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bot.ID, err)
	}

	earliest := math.Max(snap.Now(), bot.AvailableFrom)
	launch := at(res, earliest)
	if launch < earliest-algo.TimeTolerance {
		return nil, fmt.Errorf("%w: bot %s would launch at %.1fs, available from %.1fs",
			core.ErrRendezvousTimingInfeasible, bot.ID, launch, earliest)
	}

	end := launch + res.Plan.Duration(model.Speed)
	if !snap.BotFree(bot.ID, launch, end) {
		return nil, fmt.Errorf("%w: bot %s is reserved during [%.1f, %.1f)",
			core.ErrReservationConflict, bot.ID, launch, end)
	}

	towerID, docked := snap.DockedAt(bot.ID)
	if docked {
		t, _ := snap.Tower(towerID)
		if _, slot := t.Launcher(); slot > 0 && snap.LaunchCapacity(towerID, launch, launch+slot) <= 0 {
			return nil, fmt.Errorf("%w: tower %s has no launch slot at %.1fs",
				core.ErrReservationConflict, towerID, launch)
		}
	} else {
		towerID = ""
	}

	root := algo.NewNode(bot.ID, model, res, launch, bot.Charge, towerID)
	return s.resolver.Resolve(ctx, snap, root)
}

// commit tries ranked candidates in order until one commits.
func (s *Scheduler) commit(ctx context.Context, snap *registry.Snapshot, ranked []*Candidate) (*Outcome, error) {
	var errs []error
	for i, c := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := s.store.Commit(commitment(snap, c))
		if err != nil {
			if !errors.Is(err, core.ErrReservationConflict) {
				return nil, err
			}
			s.metrics.IncConflict()
			s.lg.Warn("commit conflict",
				slog.String("schedule", c.Schedule.ID),
				slog.String("tower", c.TowerID),
				slog.String("bot", c.BotID),
				slog.Any("error", err))
			errs = append(errs, err)
			continue
		}

		s.metrics.ObserveSchedule(c.Schedule)
		s.lg.Info("schedule committed",
			slog.String("schedule", c.Schedule.ID),
			slog.String("tower", c.TowerID),
			slog.String("bot", c.BotID),
			slog.String("payload", c.PayloadID),
			slog.Int("bots", len(c.Schedule.Nodes)),
			slog.Int("depth", c.Schedule.Depth()),
			slog.Int("stops", c.Schedule.InjectedStops()),
			slog.Float64("elapsed", c.Schedule.TotalElapsed()))
		return &Outcome{
			Schedule:  c.Schedule,
			Receipt:   rec,
			TowerID:   c.TowerID,
			PayloadID: c.PayloadID,
			Tried:     i + 1,
		}, nil
	}
	return nil, errors.Join(errs...)
}

// commitment lists everything a candidate's schedule reserves.
func commitment(snap *registry.Snapshot, c *Candidate) registry.Commitment {
	sched := c.Schedule
	out := registry.Commitment{ScheduleID: sched.ID}
	sched.Walk(func(n *core.ScheduleNode) {
		out.Bots = append(out.Bots, registry.BotBooking{
			BotID:     n.BotID,
			PlanID:    n.Plan.ID,
			From:      n.Launch,
			To:        n.End(),
			EndPos:    n.Plan.End(),
			EndCharge: n.EndCharge,
		})
		if n.LaunchTower == "" {
			return
		}
		if t, ok := snap.Tower(n.LaunchTower); ok {
			if _, slot := t.Launcher(); slot > 0 {
				out.Launches = append(out.Launches, registry.LaunchBooking{
					TowerID: n.LaunchTower,
					BotID:   n.BotID,
					From:    n.Launch,
					To:      n.Launch + slot,
				})
			}
		}
	})

	if c.PayloadID != "" {
		root := sched.RootNode()
		pos := root.Plan.End()
		for _, st := range root.Plan.Steps(0) {
			if st.Waypoint.HasTag(core.LabelPayload) {
				pos = st.From
				break
			}
		}
		out.Payload = &registry.PayloadBooking{PayloadID: c.PayloadID, BotID: root.BotID, Position: pos}
	}
	return out
}
