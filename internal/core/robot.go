package core

import (
	"fmt"
	"math"
)

// Role classifies what a bot model is built for.
type Role string

const (
	RoleAny       Role = ""         // Carries payloads and refuels
	RoleCarrier   Role = "carrier"  // Payload transport only
	RoleRefueller Role = "refueler" // Mid-air recharging only
)

// BotModel is a shared, read-only capability descriptor.
type BotModel struct {
	Name       string
	Role       Role
	FlightTime float64 // Seconds of flight on a full charge
	Speed      float64 // m/s
}

// NewBotModel creates a validated bot model.
func NewBotModel(name string, role Role, flightTime, speed float64) (BotModel, error) {
	m := BotModel{Name: name, Role: role, FlightTime: flightTime, Speed: speed}
	if err := m.Validate(); err != nil {
		return BotModel{}, err
	}
	return m, nil
}

// Validate checks the model invariants.
func (m BotModel) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: bot model without a name", ErrInvalidParameter)
	}
	if m.FlightTime <= 0 || math.IsNaN(m.FlightTime) {
		return fmt.Errorf("%w: model %s flight time %v must be positive", ErrInvalidParameter, m.Name, m.FlightTime)
	}
	if m.Speed <= 0 || math.IsNaN(m.Speed) {
		return fmt.Errorf("%w: model %s speed %v must be positive", ErrInvalidParameter, m.Name, m.Speed)
	}
	switch m.Role {
	case RoleAny, RoleCarrier, RoleRefueller:
	default:
		return fmt.Errorf("%w: model %s has unknown role %q", ErrInvalidParameter, m.Name, m.Role)
	}
	return nil
}

// CanRefuel reports whether bots of this model may be dispatched as refuellers.
func (m BotModel) CanRefuel() bool {
	return m.Role == RoleAny || m.Role == RoleRefueller
}

// CanCarry reports whether bots of this model may transport payloads.
func (m BotModel) CanCarry() bool {
	return m.Role == RoleAny || m.Role == RoleCarrier
}

// Range returns the unrefuelled distance in meters.
func (m BotModel) Range() float64 {
	return m.FlightTime * m.Speed
}

// LegTime returns seconds to fly a straight leg. The model must be valid.
func (m BotModel) LegTime(from, to Pos) float64 {
	return Distance(from, to) / m.Speed
}

// Bot is an instance of a BotModel.
type Bot struct {
	ID        string
	Model     string
	Position  Pos
	Charge    float64 // Remaining flight time in seconds
	HomeTower string
	// AvailableFrom is the absolute time the last committed plan ends.
	AvailableFrom float64
	Plans         []string // Committed plan ids
}

// NewBot creates a fully charged bot docked at its home tower.
func NewBot(id string, model BotModel, home *Tower) *Bot {
	b := &Bot{
		ID:     id,
		Model:  model.Name,
		Charge: model.FlightTime,
	}
	if home != nil {
		b.HomeTower = home.ID
		b.Position = home.Position
	}
	return b
}

// Recharge sets the bot's charge to the model capacity.
func (b *Bot) Recharge(m BotModel) {
	b.Charge = m.FlightTime
}

// ChargeFraction returns remaining charge as a fraction of capacity.
func (b *Bot) ChargeFraction(m BotModel) float64 {
	if m.FlightTime <= 0 {
		return 0
	}
	return b.Charge / m.FlightTime
}
