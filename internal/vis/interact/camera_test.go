package interact

import (
	"math"
	"testing"
)

func near32(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func TestWorldScreenRoundTrip(t *testing.T) {
	c := NewCamera()
	sx, sy := c.WorldToScreen(1000, 200)
	if !near32(sx, 60+50) || !near32(sy, 400-10) {
		t.Errorf("Expected (110, 390), got (%v, %v)", sx, sy)
	}
	wx, wy := c.ScreenToWorld(sx, sy)
	if math.Abs(wx-1000) > 1e-2 || math.Abs(wy-200) > 1e-2 {
		t.Errorf("Expected round trip to (1000, 200), got (%v, %v)", wx, wy)
	}
}

func TestZoomByKeepsAnchor(t *testing.T) {
	c := NewCamera()
	wx, wy := c.ScreenToWorld(300, 200)
	c.ZoomBy(2, 300, 200)

	if !near32(c.Zoom, 0.1) {
		t.Errorf("Expected zoom 0.1, got %v", c.Zoom)
	}
	sx, sy := c.WorldToScreen(wx, wy)
	if !near32(sx, 300) || !near32(sy, 200) {
		t.Errorf("Expected anchor to stay at (300, 200), got (%v, %v)", sx, sy)
	}

	c.ZoomBy(1e9, 0, 0)
	if c.Zoom != MaxZoom {
		t.Errorf("Expected zoom clamped to %v, got %v", MaxZoom, c.Zoom)
	}
}

func TestFitBoundsCorridor(t *testing.T) {
	c := NewCamera()
	// Towers on a line: no height to fit
	c.FitBounds(0, 0, 10000, 0, 1100, 600, 50)

	if !near32(c.Zoom, 0.1) {
		t.Errorf("Expected zoom 0.1, got %v", c.Zoom)
	}
	left, mid := c.WorldToScreen(0, 0)
	right, _ := c.WorldToScreen(10000, 0)
	if !near32(left, 50) || !near32(right, 1050) || !near32(mid, 300) {
		t.Errorf("Expected corridor to span [50, 1050] at y=300, got [%v, %v] at %v", left, right, mid)
	}
}
