package registry

import (
	"sort"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Snapshot is a read-only copy of the registry taken at one instant.
// It is safe for concurrent readers.
type Snapshot struct {
	state State
}

// Now returns the clock at snapshot time.
func (s *Snapshot) Now() float64 { return s.state.Now }

// Model looks up a bot model.
func (s *Snapshot) Model(name string) (core.BotModel, bool) {
	m, ok := s.state.Models[name]
	return m, ok
}

// Tower looks up a tower.
func (s *Snapshot) Tower(id string) (*core.Tower, bool) {
	t, ok := s.state.Towers[id]
	return t, ok
}

// Bot looks up a bot.
func (s *Snapshot) Bot(id string) (*core.Bot, bool) {
	b, ok := s.state.Bots[id]
	return b, ok
}

// Payload looks up a payload.
func (s *Snapshot) Payload(id string) (*core.Payload, bool) {
	p, ok := s.state.Payloads[id]
	return p, ok
}

// Towers returns all towers by id.
func (s *Snapshot) Towers() []*core.Tower {
	out := make([]*core.Tower, 0, len(s.state.Towers))
	for _, t := range s.state.Towers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bots returns bots matching keep, by id.
func (s *Snapshot) Bots(keep func(*core.Bot, core.BotModel) bool) []*core.Bot {
	var out []*core.Bot
	for _, b := range s.state.Bots {
		if keep == nil || keep(b, s.state.Models[b.Model]) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RefuelCandidates lists bots whose model can give recharge, by id.
func (s *Snapshot) RefuelCandidates() []*core.Bot {
	return s.Bots(func(_ *core.Bot, m core.BotModel) bool { return m.CanRefuel() })
}

// DockedAt returns the tower the bot is docked at.
func (s *Snapshot) DockedAt(botID string) (string, bool) {
	for _, t := range s.Towers() {
		if t.IsDocked(botID) {
			return t.ID, true
		}
	}
	return "", false
}

// BotFree reports whether the bot has no booking in [from, to).
func (s *Snapshot) BotFree(botID string, from, to float64) bool {
	return s.state.BotTime.Available(botID, from, to)
}

// LaunchCapacity returns how many more launches the tower can take in
// [from, to).
func (s *Snapshot) LaunchCapacity(towerID string, from, to float64) int {
	return s.state.Launches.Free(towerID, from, to)
}

// IdleDocked returns bots of the given model docked at the tower and idle
// from t on, by id. An empty model matches any carrier.
func (s *Snapshot) IdleDocked(towerID, model string, t float64) []*core.Bot {
	tw, ok := s.state.Towers[towerID]
	if !ok {
		return nil
	}
	return s.Bots(func(b *core.Bot, m core.BotModel) bool {
		if !tw.IsDocked(b.ID) || b.AvailableFrom > t+timeTolerance {
			return false
		}
		if model != "" {
			return b.Model == model
		}
		return m.CanCarry()
	})
}

// Compatible reports whether the model may carry the payload type.
func (s *Snapshot) Compatible(payloadType, model string) bool {
	m, ok := s.state.Models[model]
	if !ok || !m.CanCarry() {
		return false
	}
	allowed := s.state.Compat[payloadType]
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == model {
			return true
		}
	}
	return false
}

// PayloadsAt returns undelivered payloads held at the tower matching the
// type and id filters, by id. Empty filters match everything.
func (s *Snapshot) PayloadsAt(towerID, payloadType, payloadID string) []*core.Payload {
	tw, ok := s.state.Towers[towerID]
	if !ok {
		return nil
	}
	var out []*core.Payload
	for _, id := range tw.Payloads {
		p, ok := s.state.Payloads[id]
		if !ok || p.Delivered {
			continue
		}
		if payloadType != "" && p.Type != payloadType {
			continue
		}
		if payloadID != "" && p.ID != payloadID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TowersWithPayload returns towers holding a matching payload, by id.
func (s *Snapshot) TowersWithPayload(payloadType, payloadID string) []*core.Tower {
	var out []*core.Tower
	for _, t := range s.Towers() {
		if len(s.PayloadsAt(t.ID, payloadType, payloadID)) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// BotWindows returns the bookings held by a bot, earliest first.
func (s *Snapshot) BotWindows(botID string) []Allocation {
	return s.state.BotTime.Windows(botID)
}
