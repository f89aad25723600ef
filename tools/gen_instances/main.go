// Package main generates fleet configurations for relay benchmarks.
// Generates deterministic YAML configs with configurable parameters.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/relay-refuel/internal/config"
	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// FleetParams defines parameters for fleet generation.
type FleetParams struct {
	Seed             int64
	Towers           int
	Spacing          float64 // Mean distance between neighbouring towers (m)
	Jitter           float64 // Max lateral offset of a tower (m)
	CarriersPerTower int
	TankersPerTower  int
	PayloadsPerTower int
	FlightTime       float64
	Speed            float64
	LaunchTime       float64
}

var payloadTypes = []string{"med", "parts", "sensor"}

// generateFleet lays towers out along the x axis. Every tower holds
// tankers; carriers and payloads sit on every other tower.
func generateFleet(p FleetParams) config.Config {
	rng := rand.New(rand.NewSource(p.Seed))

	cfg := config.Default()
	cfg.BotModels = []config.BotModel{
		{Name: "carrier", Role: string(core.RoleCarrier), FlightTime: p.FlightTime, Speed: p.Speed},
		{Name: "tanker", Role: string(core.RoleRefueller), FlightTime: p.FlightTime, Speed: p.Speed},
	}
	for _, pt := range payloadTypes {
		cfg.PayloadTypes = append(cfg.PayloadTypes, config.PayloadType{Name: pt, Models: []string{"carrier"}})
	}

	x := 0.0
	for i := 0; i < p.Towers; i++ {
		t := config.Tower{
			ID:                fmt.Sprintf("t%02d", i),
			Position:          []float64{x, (rng.Float64()*2 - 1) * p.Jitter, 0},
			ParallelLaunchers: 1 + rng.Intn(2),
			LaunchTime:        p.LaunchTime,
		}
		for j := 0; j < p.TankersPerTower; j++ {
			t.Bots = append(t.Bots, config.Bot{ID: fmt.Sprintf("%s-r%d", t.ID, j), Model: "tanker"})
		}
		if i%2 == 0 {
			for j := 0; j < p.CarriersPerTower; j++ {
				t.Bots = append(t.Bots, config.Bot{ID: fmt.Sprintf("%s-c%d", t.ID, j), Model: "carrier"})
			}
			for j := 0; j < p.PayloadsPerTower; j++ {
				t.Payloads = append(t.Payloads, config.Payload{
					ID:   fmt.Sprintf("%s-p%d", t.ID, j),
					Type: payloadTypes[rng.Intn(len(payloadTypes))],
				})
			}
		}
		cfg.Towers = append(cfg.Towers, t)

		// Spacing varies +-25%
		x += p.Spacing * (0.75 + rng.Float64()*0.5)
	}
	return cfg
}

func main() {
	seed := flag.Int64("seed", 42, "Random seed for deterministic generation")
	towers := flag.Int("towers", 4, "Number of towers")
	spacing := flag.Float64("spacing", 6000, "Mean tower spacing (m)")
	jitter := flag.Float64("jitter", 500, "Lateral tower offset (m)")
	carriers := flag.Int("carriers", 2, "Carriers per payload tower")
	tankers := flag.Int("tankers", 2, "Tankers per tower")
	payloads := flag.Int("payloads", 4, "Payloads per payload tower")
	flightTime := flag.Float64("flight-time", 1000, "Flight time on a full charge (s)")
	speed := flag.Float64("speed", 10, "Cruise speed (m/s)")
	launchTime := flag.Float64("launch-time", 30, "Launcher slot length (s)")
	outputDir := flag.String("output", "testdata", "Output directory")
	scalingMode := flag.Bool("scaling", false, "Generate scaling fleets (2, 4, 8, 16, 32 towers)")

	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	base := FleetParams{
		Seed:             *seed,
		Towers:           *towers,
		Spacing:          *spacing,
		Jitter:           *jitter,
		CarriersPerTower: *carriers,
		TankersPerTower:  *tankers,
		PayloadsPerTower: *payloads,
		FlightTime:       *flightTime,
		Speed:            *speed,
		LaunchTime:       *launchTime,
	}

	var params []FleetParams
	if *scalingMode {
		for _, n := range []int{2, 4, 8, 16, 32} {
			p := base
			p.Towers = n
			params = append(params, p)
		}
	} else {
		params = append(params, base)
	}

	for _, p := range params {
		cfg := generateFleet(p)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error in generated fleet (%d towers): %v\n", p.Towers, err)
			continue
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling fleet: %v\n", err)
			continue
		}

		filename := filepath.Join(*outputDir, fmt.Sprintf("fleet_%d_%d.yaml", p.Towers, p.Seed))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing fleet %s: %v\n", filename, err)
			continue
		}
		fmt.Printf("Generated: %s (%d towers, %d bots)\n", filename, len(cfg.Towers), countBots(cfg))
	}
}

func countBots(cfg config.Config) int {
	n := 0
	for _, t := range cfg.Towers {
		n += len(t.Bots)
	}
	return n
}
