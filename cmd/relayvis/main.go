// Command relayvis schedules one delivery and replays it in a window.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"gioui.org/app"
	"gioui.org/unit"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/scheduler"
	"github.com/elektrokombinacija/relay-refuel/internal/vis"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

func main() {
	configPath := flag.String("config", "configs/demo.yaml", "YAML fleet config")
	payload := flag.String("payload", "med", "payload type to deliver")
	target := flag.String("target", "12000,0,0", "delivery position x,y,z")
	duration := flag.Float64("duration", 10, "payload action duration (seconds)")
	stay := flag.Bool("stay", false, "stay at the target instead of returning")
	step := flag.Float64("step", 1, "replay sampling step (seconds)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	pos, err := parsePos(*target)
	if err != nil {
		log.Fatal(err)
	}

	q := scheduler.Query{PayloadType: *payload, Target: pos, Duration: *duration, Stay: *stay}
	st, err := state.Replay(context.Background(), cfg, q, *step)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		window := new(app.Window)
		window.Option(
			app.Title("Relay Refuel Replay"),
			app.Size(unit.Dp(1400), unit.Dp(900)),
		)

		if err := vis.NewApp(st).Run(window); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func parsePos(s string) (core.Pos, error) {
	var v [3]float64
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return core.Pos{}, core.ErrInvalidParameter
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Pos{}, err
		}
		v[i] = f
	}
	return core.Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}
