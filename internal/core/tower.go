package core

// Tower is a fixed docking and supply point for bots and payloads.
type Tower struct {
	ID       string
	Position Pos
	Docked   []string // Bot ids
	Payloads []string // Payload ids
	// Launch capacity: at most ParallelLaunchers launches per LaunchTime window.
	ParallelLaunchers int
	LaunchTime        float64
}

// NewTower creates an empty tower with a single launcher.
func NewTower(id string, pos Pos) *Tower {
	return &Tower{
		ID:                id,
		Position:          pos,
		ParallelLaunchers: 1,
	}
}

// HasPayload checks if the payload is held at this tower.
func (t *Tower) HasPayload(id string) bool {
	for _, p := range t.Payloads {
		if p == id {
			return true
		}
	}
	return false
}

// IsDocked checks if the bot is docked at this tower.
func (t *Tower) IsDocked(id string) bool {
	for _, b := range t.Docked {
		if b == id {
			return true
		}
	}
	return false
}

// Dock adds a bot to the tower if not already present.
func (t *Tower) Dock(botID string) {
	if !t.IsDocked(botID) {
		t.Docked = append(t.Docked, botID)
	}
}

// Undock removes a bot from the tower.
func (t *Tower) Undock(botID string) {
	t.Docked = removeString(t.Docked, botID)
}

// RemovePayload removes a payload from the tower inventory.
func (t *Tower) RemovePayload(id string) {
	t.Payloads = removeString(t.Payloads, id)
}

// Launcher returns effective launch capacity and slot length.
func (t *Tower) Launcher() (capacity int, slot float64) {
	capacity = t.ParallelLaunchers
	if capacity <= 0 {
		capacity = 1
	}
	return capacity, t.LaunchTime
}

// Payload is a physical item held at a tower until delivered.
type Payload struct {
	ID        string
	Type      string
	TowerID   string
	Delivered bool
	Position  Pos // Delivery position once Delivered
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
