package draw

import (
	"image/color"

	"gioui.org/layout"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
)

// Route draws a planned polyline dashed and dimmed.
func Route(gtx layout.Context, route []core.Pos, camera *interact.Camera, col color.NRGBA) {
	col.A = 90
	for i := 0; i+1 < len(route); i++ {
		x1, y1 := camera.WorldToScreen(route[i].X, route[i].Y)
		x2, y2 := camera.WorldToScreen(route[i+1].X, route[i+1].Y)
		DashedLine(gtx, x1, y1, x2, y2, 1.5, 6, col)
	}
}

// Trail draws the flown part of a path, fading towards its start.
func Trail(gtx layout.Context, history []core.Pos, camera *interact.Camera, baseColor color.NRGBA, maxWidth float32) {
	n := len(history)
	for i := 0; i+1 < n; i++ {
		col := baseColor
		col.A = uint8(50 + float64(i)/float64(n)*150)
		w := maxWidth * (0.3 + 0.7*float32(i)/float32(n))

		x1, y1 := camera.WorldToScreen(history[i].X, history[i].Y)
		x2, y2 := camera.WorldToScreen(history[i+1].X, history[i+1].Y)
		Line(gtx, x1, y1, x2, y2, w, col)
	}
}
