// Command relayplan schedules a payload delivery with mid-air refuelling.
//
// Without -config (or RELAY_CONFIG) it runs against a built-in demo fleet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/log"
	"github.com/elektrokombinacija/relay-refuel/internal/metrics"
	"github.com/elektrokombinacija/relay-refuel/internal/registry"
	"github.com/elektrokombinacija/relay-refuel/internal/scheduler"
	"github.com/elektrokombinacija/relay-refuel/internal/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "relayplan: %v\n", err)
		os.Exit(1)
	}
}

// Report is what relayplan writes.
type Report struct {
	ScheduleID string                 `json:"schedule_id" msgpack:"schedule_id"`
	TowerID    string                 `json:"tower_id" msgpack:"tower_id"`
	PayloadID  string                 `json:"payload_id" msgpack:"payload_id"`
	Depth      int                    `json:"depth" msgpack:"depth"`
	Stops      int                    `json:"stops" msgpack:"stops"`
	Elapsed    float64                `json:"elapsed" msgpack:"elapsed"`
	Schedule   *core.Schedule         `json:"schedule" msgpack:"schedule"`
	Simulation *sim.SimulationMetrics `json:"simulation,omitempty" msgpack:"simulation,omitempty"`
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("relayplan", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config (default $"+config.EnvPath+", else built-in demo)")
	payload := fs.String("payload", "med", "payload type to deliver")
	payloadID := fs.String("payload-id", "", "specific payload to deliver")
	target := fs.String("target", "12000,0,0", "delivery position x,y,z")
	duration := fs.Float64("duration", 10, "payload action duration (seconds)")
	arrive := fs.Float64("arrive", -1, "absolute payload start time; negative for as soon as possible")
	stay := fs.Bool("stay", false, "stay at the target instead of returning")
	format := fs.String("format", "text", "output format: text, json or msgpack")
	out := fs.String("out", "", "output file (default stdout)")
	simulate := fs.Bool("simulate", false, "replay the committed schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if len(cfg.Towers) == 0 {
		cfg = demoConfig()
	}
	pos, err := parsePos(*target)
	if err != nil {
		return err
	}

	lg := log.New(cfg.Log.Level, cfg.Log.Dir)
	m := metrics.New(prometheus.NewRegistry())

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return err
	}
	opts := scheduler.OptionsFromConfig(cfg)
	opts.Logger = lg
	opts.Metrics = m
	s, err := scheduler.New(reg, opts)
	if err != nil {
		return err
	}

	q := scheduler.Query{
		PayloadType: *payload,
		PayloadID:   *payloadID,
		Target:      pos,
		Duration:    *duration,
		Stay:        *stay,
	}
	if *arrive >= 0 {
		q.ArriveAt = scheduler.At(*arrive)
	}
	outcome, err := s.ScheduleFlexible(ctx, q)
	if err != nil {
		return err
	}

	rep := &Report{
		ScheduleID: outcome.Schedule.ID,
		TowerID:    outcome.TowerID,
		PayloadID:  outcome.PayloadID,
		Depth:      outcome.Schedule.Depth(),
		Stops:      outcome.Schedule.InjectedStops(),
		Elapsed:    outcome.Schedule.TotalElapsed(),
		Schedule:   outcome.Schedule,
	}
	if *simulate {
		sc := sim.DefaultConfig()
		sc.Schedule = outcome.Schedule
		sc.Models = reg.Snapshot()
		sc.Logger = lg
		sc.Metrics = m
		if rep.Simulation, err = sim.RunSimulation(ctx, sc); err != nil {
			return err
		}
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return write(w, *format, rep)
}

func write(w io.Writer, format string, rep *Report) error {
	switch format {
	case "text":
		printReport(w, rep)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(rep)
	default:
		return fmt.Errorf("%w: unknown format %q", core.ErrInvalidParameter, format)
	}
}

func printReport(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "=== Schedule %s ===\n", rep.ScheduleID)
	fmt.Fprintf(w, "Tower %s, payload %s, depth %d, %d stops, %.1fs elapsed\n",
		rep.TowerID, rep.PayloadID, rep.Depth, rep.Stops, rep.Elapsed)

	rep.Schedule.Walk(func(n *core.ScheduleNode) {
		fmt.Fprintf(w, "\n  %s (%s): launch %.1fs, end %.1fs, charge %.0f -> %.0f",
			n.BotID, n.Model, n.Launch, n.End(), n.InitialCharge, n.EndCharge)
		if n.Parent != "" {
			fmt.Fprintf(w, ", refuels %s", n.Parent)
		}
		fmt.Fprintln(w)
		for _, ev := range n.Events {
			fmt.Fprintf(w, "    recharge at %v, t=%.1fs for %.0fs by %s\n",
				ev.Pos, n.Launch+ev.Time, ev.Duration, ev.RefuellerBotID)
		}
	})

	if sm := rep.Simulation; sm != nil {
		fmt.Fprintf(w, "\n--- Simulation: %d steps, %d rendezvous checks, %d misses, %d energy violations ---\n",
			sm.Steps, sm.Checks, sm.Misses, sm.EnergyViolations)
	}
}

func parsePos(s string) (core.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) == 0 || len(parts) > 3 {
		return core.Pos{}, fmt.Errorf("%w: position %q needs up to 3 coordinates", core.ErrInvalidParameter, s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Pos{}, errors.Join(fmt.Errorf("%w: position %q", core.ErrInvalidParameter, s), err)
		}
		v[i] = f
	}
	return core.Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}

// demoConfig is a depot and a relay tower 10km apart on the x axis. A
// round trip to x=12000 needs three stops: relay tankers serve the two
// near x=7000 and x=10100, the depot tanker the last one near x=3100.
func demoConfig() config.Config {
	cfg := config.Default()
	cfg.BotModels = []config.BotModel{
		{Name: "carrier", Role: string(core.RoleCarrier), FlightTime: 1000, Speed: 10},
		{Name: "tanker", Role: string(core.RoleRefueller), FlightTime: 1000, Speed: 10},
	}
	cfg.Towers = []config.Tower{
		{
			ID:         "depot",
			Position:   []float64{0, 0, 0},
			LaunchTime: 30,
			Bots: []config.Bot{
				{ID: "c1", Model: "carrier"},
				{ID: "d1", Model: "tanker"},
			},
			Payloads: []config.Payload{{ID: "med-1", Type: "med"}},
		},
		{
			ID:                "relay",
			Position:          []float64{10000, 0, 0},
			ParallelLaunchers: 2,
			LaunchTime:        30,
			Bots: []config.Bot{
				{ID: "r1", Model: "tanker"},
				{ID: "r2", Model: "tanker"},
			},
		},
	}
	cfg.PayloadTypes = []config.PayloadType{{Name: "med", Models: []string{"carrier"}}}
	return cfg
}
