package algo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Availability is the read-only view of bots and towers a resolution
// runs against.
type Availability interface {
	Now() float64
	Model(name string) (core.BotModel, bool)
	Tower(id string) (*core.Tower, bool)
	Bot(id string) (*core.Bot, bool)
	// RefuelCandidates lists bots whose model can give recharge, by id.
	RefuelCandidates() []*core.Bot
	// DockedAt returns the tower the bot is docked at.
	DockedAt(botID string) (string, bool)
	// BotFree reports whether the bot has no reservation in [from, to).
	BotFree(botID string, from, to float64) bool
	// LaunchCapacity returns how many more launches the tower can take
	// in [from, to).
	LaunchCapacity(towerID string, from, to float64) int
}

// ResolverConfig tunes the rendezvous search.
type ResolverConfig struct {
	Refuel core.RefuelConfig
	// ReturnHome sends refuellers back to their home tower after the dwell.
	ReturnHome    bool
	MaxDepth      int // Maximum schedule depth, root included
	MaxCandidates int // Refuellers evaluated per event
	Workers       int // Concurrent evaluations; GOMAXPROCS when zero
	CacheSize     int // Injected sub-plan templates kept
}

// DefaultResolverConfig returns the defaults used when no config is given.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Refuel:        core.RefuelConfig{RemainingFlightTimeAtRefuel: 300, RefuelDuration: 60},
		ReturnHome:    true,
		MaxDepth:      8,
		MaxCandidates: 16,
		CacheSize:     256,
	}
}

// Resolver dispatches refuellers for every recharge stop of a plan,
// recursively, until no sub-plan needs further refuelling.
type Resolver struct {
	cfg      ResolverConfig
	injector *Injector
	cache    *lru.Cache[templateKey, *template]
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	injector, err := NewInjector(cfg.Refuel)
	if err != nil {
		return nil, err
	}
	if cfg.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: max depth %d must be positive", core.ErrInvalidParameter, cfg.MaxDepth)
	}
	if cfg.MaxCandidates <= 0 {
		return nil, fmt.Errorf("%w: max candidates %d must be positive", core.ErrInvalidParameter, cfg.MaxCandidates)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1
	}
	cache, err := lru.New[templateKey, *template](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, injector: injector, cache: cache}, nil
}

// Config returns the effective configuration.
func (r *Resolver) Config() ResolverConfig { return r.cfg }

// Injector returns the injector used for sub-plans.
func (r *Resolver) Injector() *Injector { return r.injector }

// Resolution is the result of resolving one root plan.
type Resolution struct {
	Schedule  *core.Schedule
	Evaluated int // Candidate evaluations across all levels
}

// Resolve builds the schedule tree rooted at root. The root bot and its
// launch window count as claimed.
func (r *Resolver) Resolve(ctx context.Context, avail Availability, root *core.ScheduleNode) (*Resolution, error) {
	sched := core.NewSchedule(root)
	res := &Resolution{Schedule: sched}

	cl := newClaims()
	cl.bots[root.BotID] = true
	if root.LaunchTower != "" {
		if w, ok := launchWindow(avail, root.LaunchTower, root.Launch); ok {
			cl.launches[root.LaunchTower] = append(cl.launches[root.LaunchTower], w)
		}
	}

	level := []*core.ScheduleNode{root}
	for depth := 1; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var jobs []job
		for _, n := range level {
			for i := range n.Events {
				jobs = append(jobs, job{parent: n, event: i})
			}
		}
		if len(jobs) == 0 {
			break
		}
		if depth >= r.cfg.MaxDepth {
			return nil, fmt.Errorf("%w: refuel chain deeper than %d levels", core.ErrNoFeasibleRefueller, r.cfg.MaxDepth)
		}

		evals, n, err := r.evaluate(ctx, avail, jobs, cl)
		res.Evaluated += n
		if err != nil {
			return nil, err
		}

		var next []*core.ScheduleNode
		for j, jb := range jobs {
			node, err := r.assign(avail, sched, cl, jb, evals[j])
			if err != nil {
				return nil, err
			}
			next = append(next, node)
		}
		level = next
	}

	return res, nil
}

type job struct {
	parent *core.ScheduleNode
	event  int
}

func (j job) ev() core.RefuelEvent { return j.parent.Events[j.event] }

type candidate struct {
	bot      *core.Bot
	node     *core.ScheduleNode
	homeDist float64
	err      error
}

func (c *candidate) zeroDeficit() bool {
	return c.node != nil && c.node.InjectedStops == 0
}

// evaluate computes every candidate sub-plan of a level concurrently.
// Results are indexed by job, in rank order.
func (r *Resolver) evaluate(ctx context.Context, avail Availability, jobs []job, cl *claims) ([][]*candidate, int, error) {
	all := avail.RefuelCandidates()
	evals := make([][]*candidate, len(jobs))
	for j, jb := range jobs {
		evals[j] = r.shortlist(avail, all, jb.ev().Pos, cl)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	count := 0
	for j := range jobs {
		for _, c := range evals[j] {
			jb, c := jobs[j], c
			count++
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				c.node, c.err = r.plan(avail, jb, c.bot)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, count, err
	}
	if err := ctx.Err(); err != nil {
		return nil, count, err
	}

	for j := range evals {
		rankCandidates(evals[j])
	}
	return evals, count, nil
}

// shortlist picks the unclaimed refuellers nearest the rendezvous.
func (r *Resolver) shortlist(avail Availability, bots []*core.Bot, at core.Pos, cl *claims) []*candidate {
	var out []*candidate
	for _, b := range bots {
		if cl.bots[b.ID] {
			continue
		}
		out = append(out, &candidate{bot: b, homeDist: core.Distance(homePos(avail, b), at)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].homeDist != out[j].homeDist {
			return out[i].homeDist < out[j].homeDist
		}
		return out[i].bot.ID < out[j].bot.ID
	})
	if len(out) > r.cfg.MaxCandidates {
		out = out[:r.cfg.MaxCandidates]
	}
	return out
}

// rankCandidates orders feasible zero-deficit sub-plans first, then by
// home tower distance, then id. Failed evaluations go last.
func rankCandidates(cs []*candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if (a.err == nil) != (b.err == nil) {
			return a.err == nil
		}
		if a.zeroDeficit() != b.zeroDeficit() {
			return a.zeroDeficit()
		}
		if a.homeDist != b.homeDist {
			return a.homeDist < b.homeDist
		}
		return a.bot.ID < b.bot.ID
	})
}

// plan builds and times the sub-plan of one refueller for one event.
// It only reads from avail.
func (r *Resolver) plan(avail Availability, jb job, bot *core.Bot) (*core.ScheduleNode, error) {
	ev := jb.ev()
	model, ok := avail.Model(bot.Model)
	if !ok {
		return nil, fmt.Errorf("%w: bot %s has unknown model %s", core.ErrNoFeasibleRefueller, bot.ID, bot.Model)
	}

	var home *core.Pos
	if r.cfg.ReturnHome {
		if t, ok := avail.Tower(bot.HomeTower); ok {
			pos := t.Position
			home = &pos
		}
	}

	res, err := r.injectCached(model, bot, ev.Pos, ev.Duration, home)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bot.ID, err)
	}

	arrival, ok := res.Plan.FirstTagged(core.LabelGivingRecharge, model.Speed)
	if !ok {
		return nil, fmt.Errorf("%w: sub-plan for bot %s lost its dwell", core.ErrMalformedFlightPlan, bot.ID)
	}

	launch := jb.parent.Launch + ev.Time - arrival.Start
	earliest := math.Max(avail.Now(), bot.AvailableFrom)
	if launch < earliest-TimeTolerance {
		return nil, fmt.Errorf("%w: bot %s would launch at %.1fs, available from %.1fs",
			core.ErrRendezvousTimingInfeasible, bot.ID, launch, earliest)
	}

	end := launch + res.Plan.Duration(model.Speed)
	if !avail.BotFree(bot.ID, launch, end) {
		return nil, fmt.Errorf("%w: bot %s is reserved during [%.1f, %.1f)",
			core.ErrNoFeasibleRefueller, bot.ID, launch, end)
	}

	tower, docked := avail.DockedAt(bot.ID)
	if !docked {
		tower = ""
	} else if w, ok := launchWindow(avail, tower, launch); ok && avail.LaunchCapacity(tower, w.from, w.to) <= 0 {
		return nil, fmt.Errorf("%w: tower %s has no launch slot at %.1fs",
			core.ErrNoFeasibleRefueller, tower, launch)
	}

	return NewNode(bot.ID, model, res, launch, bot.Charge, tower), nil
}

// assign gives the event to the best candidate still free within this
// request and links it into the schedule.
func (r *Resolver) assign(avail Availability, sched *core.Schedule, cl *claims, jb job, cands []*candidate) (*core.ScheduleNode, error) {
	var errs []error
	timingOnly := true
	for _, c := range cands {
		if c.err != nil {
			errs = append(errs, c.err)
			if !errors.Is(c.err, core.ErrRendezvousTimingInfeasible) {
				timingOnly = false
			}
			continue
		}
		if cl.bots[c.bot.ID] {
			timingOnly = false
			continue
		}
		if c.node.LaunchTower != "" {
			if w, ok := launchWindow(avail, c.node.LaunchTower, c.node.Launch); ok {
				if avail.LaunchCapacity(c.node.LaunchTower, w.from, w.to) <= cl.overlapping(c.node.LaunchTower, w) {
					timingOnly = false
					continue
				}
				cl.launches[c.node.LaunchTower] = append(cl.launches[c.node.LaunchTower], w)
			}
		}

		cl.bots[c.bot.ID] = true
		if err := sched.Add(jb.parent.BotID, c.node); err != nil {
			return nil, err
		}
		jb.parent.Events[jb.event].RefuellerBotID = c.bot.ID
		return c.node, nil
	}

	ev := jb.ev()
	kind := core.ErrNoFeasibleRefueller
	if timingOnly && len(errs) > 0 {
		kind = core.ErrRendezvousTimingInfeasible
	}
	err := fmt.Errorf("%w: no refueller for bot %s at %v (t=%.1fs) among %d candidates",
		kind, jb.parent.BotID, ev.Pos, jb.parent.Launch+ev.Time, len(cands))
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{err}, errs...)...)
	}
	return nil, err
}

func homePos(avail Availability, b *core.Bot) core.Pos {
	if t, ok := avail.Tower(b.HomeTower); ok {
		return t.Position
	}
	return b.Position
}

type window struct {
	from, to float64
}

// launchWindow returns the launch slot at t. Towers without a launch
// time do not limit launches.
func launchWindow(avail Availability, towerID string, t float64) (window, bool) {
	tw, ok := avail.Tower(towerID)
	if !ok || tw.LaunchTime <= 0 {
		return window{}, false
	}
	return window{from: t, to: t + tw.LaunchTime}, true
}

// claims tracks bots and launch slots taken within one request.
type claims struct {
	bots     map[string]bool
	launches map[string][]window
}

func newClaims() *claims {
	return &claims{bots: make(map[string]bool), launches: make(map[string][]window)}
}

func (c *claims) overlapping(tower string, w window) int {
	n := 0
	for _, o := range c.launches[tower] {
		if o.from < w.to && w.from < o.to {
			n++
		}
	}
	return n
}

// templateKey identifies an injected sub-plan up to waypoint ids.
type templateKey struct {
	model      string
	start      core.Pos
	charge     float64
	rendezvous core.Pos
	dwell      float64
	home       core.Pos
	returns    bool
}

type template struct {
	waypoints []core.Waypoint
	stops     []int // Indices of the stop waypoints
	profile   *EnergyProfile
}

// injectCached injects the refueller plan, reusing an earlier injection
// of the same geometry with fresh ids.
func (r *Resolver) injectCached(model core.BotModel, bot *core.Bot, rendezvous core.Pos, dwell float64, home *core.Pos) (*InjectionResult, error) {
	key := templateKey{
		model:      model.Name,
		start:      bot.Position,
		charge:     clampCharge(bot.Charge, model.FlightTime),
		rendezvous: rendezvous,
		dwell:      dwell,
		returns:    home != nil,
	}
	if home != nil {
		key.home = *home
	}

	if t, ok := r.cache.Get(key); ok {
		return t.instantiate(model.Name, bot.Position), nil
	}

	fp, err := RefuellerPlan(model, bot.Position, rendezvous, dwell, home)
	if err != nil {
		return nil, err
	}
	res, err := r.injector.Inject(fp, model, bot.Charge)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, newTemplate(res))
	return res, nil
}

func newTemplate(res *InjectionResult) *template {
	t := &template{
		waypoints: make([]core.Waypoint, len(res.Plan.Waypoints)),
		profile:   res.Profile,
	}
	copy(t.waypoints, res.Plan.Waypoints)
	for _, id := range res.Stops {
		for i, wp := range res.Plan.Waypoints {
			if wp.ID == id {
				t.stops = append(t.stops, i)
				break
			}
		}
	}
	return t
}

func (t *template) instantiate(model string, start core.Pos) *InjectionResult {
	wps := make([]core.Waypoint, len(t.waypoints))
	copy(wps, t.waypoints)
	for i := range wps {
		wps[i].ID = core.NewID()
	}
	res := &InjectionResult{
		Plan: &core.FlightPlan{
			ID:           core.NewID(),
			BotModel:     model,
			Start:        start,
			Waypoints:    wps,
			FullyDefined: true,
		},
		Profile: t.profile,
	}
	for _, i := range t.stops {
		res.Stops = append(res.Stops, wps[i].ID)
	}
	return res
}
