// Package interact handles pan and zoom of the replay view.
package interact

import (
	"gioui.org/io/pointer"
)

// Zoom limits in screen pixels per world metre.
const (
	MinZoom = 0.001
	MaxZoom = 5.0
)

// Camera maps world metres to screen pixels. World y grows upwards.
type Camera struct {
	OffsetX float32 // Screen position of the world origin
	OffsetY float32
	Zoom    float32

	dragging     bool
	lastX, lastY float32
}

// NewCamera creates a camera at 1 px per 20 m.
func NewCamera() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

// Reset restores the default view.
func (c *Camera) Reset() {
	c.OffsetX = 60
	c.OffsetY = 400
	c.Zoom = 0.05
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(worldX, worldY float64) (screenX, screenY float32) {
	screenX = float32(worldX)*c.Zoom + c.OffsetX
	screenY = c.OffsetY - float32(worldY)*c.Zoom
	return
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(screenX, screenY float32) (worldX, worldY float64) {
	worldX = float64((screenX - c.OffsetX) / c.Zoom)
	worldY = float64((c.OffsetY - screenY) / c.Zoom)
	return
}

// HandleEvent pans on secondary drag and zooms on scroll.
func (c *Camera) HandleEvent(ev pointer.Event) {
	switch ev.Kind {
	case pointer.Press:
		c.dragging = ev.Buttons.Contain(pointer.ButtonSecondary) || ev.Buttons.Contain(pointer.ButtonTertiary)
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Drag:
		if c.dragging {
			c.Pan(ev.Position.X-c.lastX, ev.Position.Y-c.lastY)
		}
		c.lastX, c.lastY = ev.Position.X, ev.Position.Y

	case pointer.Release:
		c.dragging = false

	case pointer.Scroll:
		switch {
		case ev.Scroll.Y > 0:
			c.ZoomBy(1/1.1, ev.Position.X, ev.Position.Y)
		case ev.Scroll.Y < 0:
			c.ZoomBy(1.1, ev.Position.X, ev.Position.Y)
		}
	}
}

// Pan pans the camera by the given screen delta.
func (c *Camera) Pan(dx, dy float32) {
	c.OffsetX += dx
	c.OffsetY += dy
}

// ZoomBy zooms by a factor, keeping the world point under (centerX, centerY) fixed.
func (c *Camera) ZoomBy(factor float32, centerX, centerY float32) {
	worldX, worldY := c.ScreenToWorld(centerX, centerY)
	c.Zoom = clampZoom(c.Zoom * factor)

	newX, newY := c.WorldToScreen(worldX, worldY)
	c.OffsetX += centerX - newX
	c.OffsetY += centerY - newY
}

// FitBounds fits the world rectangle into the screen with a pixel margin.
// Degenerate extents (a straight corridor) fit along the other axis.
func (c *Camera) FitBounds(minX, minY, maxX, maxY float64, screenWidth, screenHeight, margin float32) {
	worldW, worldH := float32(maxX-minX), float32(maxY-minY)
	if worldW <= 0 && worldH <= 0 {
		return
	}
	availW, availH := screenWidth-2*margin, screenHeight-2*margin

	zoom := float32(MaxZoom)
	if worldW > 0 {
		zoom = min(zoom, availW/worldW)
	}
	if worldH > 0 {
		zoom = min(zoom, availH/worldH)
	}
	c.Zoom = clampZoom(zoom)

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	c.OffsetX = screenWidth/2 - float32(cx)*c.Zoom
	c.OffsetY = screenHeight/2 + float32(cy)*c.Zoom
}

func clampZoom(z float32) float32 {
	return min(max(z, MinZoom), MaxZoom)
}
