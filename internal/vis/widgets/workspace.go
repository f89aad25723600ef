// Package widgets provides Gio UI widgets for the replay viewer.
package widgets

import (
	"image"
	"image/color"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/elektrokombinacija/relay-refuel/internal/vis/draw"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

// Workspace is the top-down map of towers and bots.
type Workspace struct {
	state  *state.State
	camera *interact.Camera
	fitted bool
}

// NewWorkspace creates a new workspace widget.
func NewWorkspace(st *state.State, camera *interact.Camera) *Workspace {
	return &Workspace{
		state:  st,
		camera: camera,
	}
}

// Refit fits the camera to the replay on the next frame.
func (w *Workspace) Refit() {
	w.fitted = false
}

// Layout renders the workspace.
func (w *Workspace) Layout(gtx layout.Context) layout.Dimensions {
	bounds := gtx.Constraints.Max
	defer clip.Rect(image.Rect(0, 0, bounds.X, bounds.Y)).Push(gtx.Ops).Pop()

	paint.Fill(gtx.Ops, color.NRGBA{R: 25, G: 28, B: 32, A: 255})

	if !w.fitted && bounds.X > 0 && bounds.Y > 0 {
		minX, minY, maxX, maxY := w.state.Bounds()
		w.camera.FitBounds(minX, minY, maxX, maxY, float32(bounds.X), float32(bounds.Y), 60)
		w.fitted = true
	}

	w.handlePointerEvents(gtx)

	draw.Towers(gtx, w.state.Towers, w.camera)

	bots := w.state.Bots()
	for _, b := range bots {
		col := draw.RoleColor(b.Role)
		draw.Route(gtx, w.state.PlanRoute(b.ID), w.camera, col)
		draw.Trail(gtx, w.state.PathHistory(b.ID), w.camera, col, 3)
	}

	draw.Links(gtx, w.state.ActiveLinks(), w.camera)

	for _, b := range bots {
		draw.Bot(gtx, b, w.camera, b.ID == w.state.Selected)
	}

	return layout.Dimensions{Size: bounds}
}

func (w *Workspace) handlePointerEvents(gtx layout.Context) {
	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, gtx.Constraints.Max.Y)).Push(gtx.Ops)
	event.Op(gtx.Ops, w)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  w,
			Kinds:   pointer.Press | pointer.Drag | pointer.Release | pointer.Scroll,
			ScrollY: pointer.ScrollRange{Min: -100, Max: 100},
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		w.camera.HandleEvent(pe)
		if pe.Kind == pointer.Press && pe.Buttons.Contain(pointer.ButtonPrimary) {
			w.handleClick(pe.Position.X, pe.Position.Y)
		}
	}
}

// handleClick selects the bot under the pointer, or clears the selection.
func (w *Workspace) handleClick(screenX, screenY float32) {
	for _, b := range w.state.Bots() {
		if draw.HitTest(screenX, screenY, b.Pos, w.camera, 15) {
			w.state.Select(b.ID)
			return
		}
	}
	w.state.Select("")
}
