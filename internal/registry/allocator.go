package registry

import (
	"fmt"
	"sort"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
)

// Allocation is a reserved half-open window [From, To) on a resource.
type Allocation struct {
	ID       string
	Resource string
	From, To float64
	Ref      string // Plan or schedule the window belongs to
}

func (a Allocation) overlaps(from, to float64) bool {
	return a.From < to && from < a.To
}

// Allocator books time windows on named resources. A resource takes up
// to its capacity overlapping windows; the default capacity is one.
// Not safe for concurrent use.
type Allocator struct {
	Capacity    map[string]int
	Allocations map[string][]Allocation // By resource, sorted by From
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		Capacity:    make(map[string]int),
		Allocations: make(map[string][]Allocation),
	}
}

// SetCapacity sets how many windows may overlap on a resource.
func (a *Allocator) SetCapacity(resource string, n int) {
	if n < 1 {
		n = 1
	}
	a.Capacity[resource] = n
}

func (a *Allocator) capacity(resource string) int {
	if n, ok := a.Capacity[resource]; ok {
		return n
	}
	return 1
}

// Free returns capacity minus the windows overlapping [from, to).
func (a *Allocator) Free(resource string, from, to float64) int {
	n := a.capacity(resource)
	for _, w := range a.Allocations[resource] {
		if w.overlaps(from, to) {
			n--
		}
	}
	return n
}

// Available reports whether [from, to) can still be booked.
func (a *Allocator) Available(resource string, from, to float64) bool {
	return a.Free(resource, from, to) > 0
}

// Allocate books [from, to) and returns the allocation id.
func (a *Allocator) Allocate(resource string, from, to float64, ref string) (string, error) {
	if to < from {
		return "", fmt.Errorf("%w: window [%v, %v) on %s ends before it starts",
			core.ErrInvalidParameter, from, to, resource)
	}
	if !a.Available(resource, from, to) {
		return "", fmt.Errorf("%w: %s is booked during [%.1f, %.1f)",
			core.ErrReservationConflict, resource, from, to)
	}

	alloc := Allocation{ID: core.NewID(), Resource: resource, From: from, To: to, Ref: ref}
	ws := append(a.Allocations[resource], alloc)
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].From < ws[j].From })
	a.Allocations[resource] = ws
	return alloc.ID, nil
}

// Release removes an allocation. Unknown ids are ignored.
func (a *Allocator) Release(id string) bool {
	for res, ws := range a.Allocations {
		for i, w := range ws {
			if w.ID == id {
				a.Allocations[res] = append(ws[:i], ws[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Windows returns the allocations on a resource, earliest first.
func (a *Allocator) Windows(resource string) []Allocation {
	ws := a.Allocations[resource]
	out := make([]Allocation, len(ws))
	copy(out, ws)
	return out
}
