// Package core defines domain models for relay refuelling.
package core

import (
	"fmt"
	"math"
)

// PosTolerance for floating-point position comparison (meters).
const PosTolerance = 1e-6

// Pos represents a point in 3D space.
type Pos struct {
	X, Y, Z float64
}

// Add returns p + q.
func (p Pos) Add(q Pos) Pos {
	return Pos{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q.
func (p Pos) Sub(q Pos) Pos {
	return Pos{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p scaled by s.
func (p Pos) Scale(s float64) Pos {
	return Pos{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Near reports whether p and q are within PosTolerance of each other.
func (p Pos) Near(q Pos) bool {
	return Distance(p, q) <= PosTolerance
}

func (p Pos) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Pos) float64 {
	d := b.Sub(a)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// TravelTime returns seconds needed to fly from a to b at a constant speed.
func TravelTime(a, b Pos, speed float64) (float64, error) {
	if speed <= 0 || math.IsNaN(speed) {
		return 0, fmt.Errorf("%w: speed %v must be positive", ErrInvalidParameter, speed)
	}
	return Distance(a, b) / speed, nil
}

// Interpolate returns the point at fraction along the segment a -> b.
// Fraction must lie in [0, 1].
func Interpolate(a, b Pos, fraction float64) (Pos, error) {
	if fraction < 0 || fraction > 1 || math.IsNaN(fraction) {
		return Pos{}, fmt.Errorf("%w: fraction %v outside [0, 1]", ErrInvalidParameter, fraction)
	}
	return a.Add(b.Sub(a).Scale(fraction)), nil
}
