package draw

import (
	"image/color"

	"gioui.org/layout"

	"github.com/elektrokombinacija/relay-refuel/internal/core"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
)

var (
	ColorTower    = color.NRGBA{R: 80, G: 180, B: 100, A: 255}
	ColorLauncher = color.NRGBA{R: 200, G: 230, B: 200, A: 255}
	ColorPayload  = color.NRGBA{R: 255, G: 200, B: 80, A: 255}
)

// Towers draws every tower as a pad with one tick per parallel launcher
// and a dot per stored payload.
func Towers(gtx layout.Context, towers []*core.Tower, camera *interact.Camera) {
	for _, t := range towers {
		x, y := camera.WorldToScreen(t.Position.X, t.Position.Y)
		Rect(gtx, x, y, 18, 18, ColorTower)

		for i := 0; i < t.ParallelLaunchers; i++ {
			Rect(gtx, x-6+float32(i)*5, y-13, 3, 6, ColorLauncher)
		}
		for i := range t.Payloads {
			Circle(gtx, x-6+float32(i)*5, y+14, 2, ColorPayload)
		}
	}
}
