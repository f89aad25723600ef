// Package config loads relay planning configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "RELAY_CONFIG"

// Refuel defines recharge stop parameters.
type Refuel struct {
	RemainingFlightTimeAtRefuel float64 `yaml:"remaining_flight_time_at_refuel"`
	RefuelDuration              float64 `yaml:"refuel_duration"`
}

// Planning defines resolver and scheduler limits.
type Planning struct {
	RefuellerReturn bool    `yaml:"refueller_return"`
	MaxDepth        int     `yaml:"max_depth"`
	MaxCandidates   int     `yaml:"max_candidates"`
	Workers         int     `yaml:"workers"`
	CacheSize       int     `yaml:"cache_size"`
	Now             float64 `yaml:"now"`
}

// Log defines logging output.
type Log struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// BotModel describes one bot model.
type BotModel struct {
	Name       string  `yaml:"name"`
	Role       string  `yaml:"role"`
	FlightTime float64 `yaml:"flight_time"`
	Speed      float64 `yaml:"speed"`
}

// Bot is a bot docked at its home tower.
type Bot struct {
	ID     string  `yaml:"id"`
	Model  string  `yaml:"model"`
	Charge float64 `yaml:"charge"` // Zero means full
}

// Payload is held at a tower.
type Payload struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// Tower defines a tower and what it holds.
type Tower struct {
	ID                string    `yaml:"id"`
	Position          []float64 `yaml:"position"`
	ParallelLaunchers int       `yaml:"parallel_launchers"`
	LaunchTime        float64   `yaml:"launch_time"`
	Bots              []Bot     `yaml:"bots"`
	Payloads          []Payload `yaml:"payloads"`
}

// Pos returns the tower position; missing coordinates are zero.
func (t Tower) Pos() core.Pos {
	var p [3]float64
	copy(p[:], t.Position)
	return core.Pos{X: p[0], Y: p[1], Z: p[2]}
}

// PayloadType lists the bot models allowed to carry a payload type.
// An empty list allows every carrier.
type PayloadType struct {
	Name   string   `yaml:"name"`
	Models []string `yaml:"models"`
}

// Config is the full configuration.
type Config struct {
	Refuel       Refuel        `yaml:"refuel"`
	Planning     Planning      `yaml:"planning"`
	Log          Log           `yaml:"log"`
	BotModels    []BotModel    `yaml:"bot_models"`
	Towers       []Tower       `yaml:"towers"`
	PayloadTypes []PayloadType `yaml:"payload_types"`
}

// Default returns configuration defaults.
func Default() Config {
	return Config{
		Refuel: Refuel{
			RemainingFlightTimeAtRefuel: 300,
			RefuelDuration:              60,
		},
		Planning: Planning{
			RefuellerReturn: true,
			MaxDepth:        8,
			MaxCandidates:   16,
			CacheSize:       256,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the file at path, or the file named by RELAY_CONFIG when
// path is empty. With neither set, defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RefuelConfig converts the refuel section.
func (c Config) RefuelConfig() core.RefuelConfig {
	return core.RefuelConfig{
		RemainingFlightTimeAtRefuel: c.Refuel.RemainingFlightTimeAtRefuel,
		RefuelDuration:              c.Refuel.RefuelDuration,
	}
}

// Validate checks values and references between sections.
func (c Config) Validate() error {
	var errs []error
	if err := c.RefuelConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Planning.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: planning.max_depth must be positive", core.ErrInvalidParameter))
	}
	if c.Planning.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("%w: planning.max_candidates must be positive", core.ErrInvalidParameter))
	}
	if c.Planning.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: planning.workers must not be negative", core.ErrInvalidParameter))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log level %q", core.ErrInvalidParameter, c.Log.Level))
	}

	models := make(map[string]bool)
	for _, m := range c.BotModels {
		if _, err := core.NewBotModel(m.Name, core.Role(m.Role), m.FlightTime, m.Speed); err != nil {
			errs = append(errs, err)
		}
		if models[m.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate bot model %s", core.ErrInvalidParameter, m.Name))
		}
		models[m.Name] = true
	}

	towers := make(map[string]bool)
	ids := make(map[string]bool)
	for _, t := range c.Towers {
		if t.ID == "" || towers[t.ID] {
			errs = append(errs, fmt.Errorf("%w: tower id %q missing or duplicated", core.ErrInvalidParameter, t.ID))
		}
		towers[t.ID] = true
		if len(t.Position) > 3 {
			errs = append(errs, fmt.Errorf("%w: tower %s position has %d coordinates", core.ErrInvalidParameter, t.ID, len(t.Position)))
		}
		if t.ParallelLaunchers < 0 || t.LaunchTime < 0 {
			errs = append(errs, fmt.Errorf("%w: tower %s launcher settings must not be negative", core.ErrInvalidParameter, t.ID))
		}
		for _, b := range t.Bots {
			if b.ID == "" || ids[b.ID] {
				errs = append(errs, fmt.Errorf("%w: bot id %q missing or duplicated", core.ErrInvalidParameter, b.ID))
			}
			ids[b.ID] = true
			if !models[b.Model] {
				errs = append(errs, fmt.Errorf("%w: bot %s has unknown model %s", core.ErrInvalidParameter, b.ID, b.Model))
			}
			if b.Charge < 0 {
				errs = append(errs, fmt.Errorf("%w: bot %s charge must not be negative", core.ErrInvalidParameter, b.ID))
			}
		}
		for _, p := range t.Payloads {
			if p.ID == "" || ids[p.ID] {
				errs = append(errs, fmt.Errorf("%w: payload id %q missing or duplicated", core.ErrInvalidParameter, p.ID))
			}
			ids[p.ID] = true
		}
	}

	for _, pt := range c.PayloadTypes {
		for _, m := range pt.Models {
			if !models[m] {
				errs = append(errs, fmt.Errorf("%w: payload type %s allows unknown model %s", core.ErrInvalidParameter, pt.Name, m))
			}
		}
	}
	return errors.Join(errs...)
}
