package core

import (
	"fmt"
	"math"
)

// ScheduleNode holds one bot's fully defined plan within a schedule.
type ScheduleNode struct {
	BotID         string
	Model         string
	Plan          *FlightPlan
	Launch        float64 // Absolute launch time (seconds)
	Duration      float64
	InitialCharge float64
	EndCharge     float64
	LaunchTower   string // Empty if not launched from a tower
	Parent        string // Bot refuelled by this node; empty for the root
	Children      []string
	Events        []RefuelEvent // Recharges this bot receives
	InjectedStops int
}

// End returns the absolute time the plan completes.
func (n *ScheduleNode) End() float64 {
	return n.Launch + n.Duration
}

// Schedule is the resolved tree of flight plans for one request.
// Nodes are stored in an arena keyed by bot id with explicit parent/child links.
type Schedule struct {
	ID    string
	Root  string
	Nodes map[string]*ScheduleNode
	Order []string // Insertion order, breadth first
}

// NewSchedule creates a schedule rooted at the primary bot's node.
func NewSchedule(root *ScheduleNode) *Schedule {
	s := &Schedule{
		ID:    NewID(),
		Root:  root.BotID,
		Nodes: make(map[string]*ScheduleNode),
	}
	s.Nodes[root.BotID] = root
	s.Order = append(s.Order, root.BotID)
	return s
}

// Add links node as a child of parent.
func (s *Schedule) Add(parent string, node *ScheduleNode) error {
	p, ok := s.Nodes[parent]
	if !ok {
		return fmt.Errorf("%w: unknown parent %s", ErrInvalidParameter, parent)
	}
	if _, exists := s.Nodes[node.BotID]; exists {
		return fmt.Errorf("%w: bot %s already scheduled", ErrNoFeasibleRefueller, node.BotID)
	}
	node.Parent = parent
	p.Children = append(p.Children, node.BotID)
	s.Nodes[node.BotID] = node
	s.Order = append(s.Order, node.BotID)
	return nil
}

// Node returns the node for a bot, or nil.
func (s *Schedule) Node(botID string) *ScheduleNode {
	return s.Nodes[botID]
}

// RootNode returns the primary bot's node.
func (s *Schedule) RootNode() *ScheduleNode {
	return s.Nodes[s.Root]
}

// Depth returns the number of levels in the tree.
func (s *Schedule) Depth() int {
	return s.SubtreeDepth(s.Root)
}

// SubtreeDepth returns the number of levels below and including botID.
func (s *Schedule) SubtreeDepth(botID string) int {
	n := s.Nodes[botID]
	if n == nil {
		return 0
	}
	maxChild := 0
	for _, c := range n.Children {
		if d := s.SubtreeDepth(c); d > maxChild {
			maxChild = d
		}
	}
	return 1 + maxChild
}

// Start returns the earliest launch time.
func (s *Schedule) Start() float64 {
	start := math.Inf(1)
	for _, n := range s.Nodes {
		start = math.Min(start, n.Launch)
	}
	return start
}

// End returns the latest completion time.
func (s *Schedule) End() float64 {
	end := math.Inf(-1)
	for _, n := range s.Nodes {
		end = math.Max(end, n.End())
	}
	return end
}

// TotalElapsed returns the span from first launch to last completion.
func (s *Schedule) TotalElapsed() float64 {
	if len(s.Nodes) == 0 {
		return 0
	}
	return s.End() - s.Start()
}

// InjectedStops returns the number of recharge stops across all plans.
func (s *Schedule) InjectedStops() int {
	total := 0
	for _, n := range s.Nodes {
		total += n.InjectedStops
	}
	return total
}

// Walk visits nodes in insertion order.
func (s *Schedule) Walk(fn func(*ScheduleNode)) {
	for _, id := range s.Order {
		fn(s.Nodes[id])
	}
}
