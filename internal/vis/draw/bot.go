package draw

import (
	"image/color"
	"math"

	"gioui.org/layout"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/sim"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

// Bot colors by role
var (
	ColorCarrier   = color.NRGBA{R: 100, G: 200, B: 255, A: 255}
	ColorRefueller = color.NRGBA{R: 255, G: 150, B: 100, A: 255}
	ColorAnyRole   = color.NRGBA{R: 200, G: 100, B: 255, A: 255}
	ColorSelected  = color.NRGBA{R: 255, G: 255, B: 100, A: 255}
	ColorLinkMet   = color.NRGBA{R: 120, G: 255, B: 140, A: 255}
	ColorLinkMiss  = color.NRGBA{R: 255, G: 70, B: 70, A: 255}
)

// RoleColor returns the color for a bot role.
func RoleColor(r core.Role) color.NRGBA {
	switch r {
	case core.RoleCarrier:
		return ColorCarrier
	case core.RoleRefueller:
		return ColorRefueller
	default:
		return ColorAnyRole
	}
}

// ChargeColor runs from red when empty to green when full.
func ChargeColor(fraction float64) color.NRGBA {
	f := math.Max(0, math.Min(fraction, 1))
	return color.NRGBA{R: uint8(255 * (1 - f)), G: uint8(80 + 175*f), B: 60, A: 255}
}

// Bot draws one bot with a charge bar. Docked bots are drawn small.
func Bot(gtx layout.Context, b state.BotView, camera *interact.Camera, selected bool) {
	x, y := camera.WorldToScreen(b.Pos.X, b.Pos.Y)
	size := float32(14)
	if b.Activity == sim.ActivityIdle {
		size = 8
	}

	col := RoleColor(b.Role)
	if selected {
		col = ColorSelected
	}

	switch b.Role {
	case core.RoleCarrier:
		Rect(gtx, x, y, size, size, col)
	default:
		quadcopter(gtx, x, y, size, col)
	}
	if b.Root {
		Ring(gtx, x, y, size, 1.5, col)
	}

	// Charge bar above the bot
	barW := float32(20)
	Rect(gtx, x, y-size-4, barW, 3, color.NRGBA{R: 50, G: 50, B: 55, A: 255})
	f := float32(b.ChargeFraction())
	Rect(gtx, x-barW/2+barW*f/2, y-size-4, barW*f, 3, ChargeColor(b.ChargeFraction()))
}

func quadcopter(gtx layout.Context, cx, cy, size float32, col color.NRGBA) {
	armLen := size * 0.7
	for _, angle := range []float64{45, 135, 225, 315} {
		rad := angle * math.Pi / 180
		dx := float32(math.Cos(rad)) * armLen
		dy := float32(math.Sin(rad)) * armLen
		Line(gtx, cx, cy, cx+dx, cy+dy, 2, col)
		Circle(gtx, cx+dx, cy+dy, size*0.3, col)
	}
	Circle(gtx, cx, cy, size*0.25, col)
}

// Links draws a line between each recharging pair.
func Links(gtx layout.Context, links []state.Link, camera *interact.Camera) {
	for _, l := range links {
		col := ColorLinkMet
		if !l.Met {
			col = ColorLinkMiss
		}
		x1, y1 := camera.WorldToScreen(l.Recipient.X, l.Recipient.Y)
		x2, y2 := camera.WorldToScreen(l.Refueller.X, l.Refueller.Y)
		Line(gtx, x1, y1, x2, y2, 2, col)
		Ring(gtx, x1, y1, 20, 2, col)
	}
}

// HitTest checks if a screen point lies within radius pixels of pos.
func HitTest(screenX, screenY float32, pos core.Pos, camera *interact.Camera, radius float32) bool {
	x, y := camera.WorldToScreen(pos.X, pos.Y)
	dx, dy := screenX-x, screenY-y
	return dx*dx+dy*dy <= radius*radius
}
