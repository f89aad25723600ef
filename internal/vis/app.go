// Package vis implements a Gio-based replay viewer for simulated schedules.
package vis

import (
	"image/color"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/relay-refuel/internal/vis/interact"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/widgets"
)

// App is the replay viewer.
type App struct {
	state     *state.State
	theme     *material.Theme
	workspace *widgets.Workspace
	timeline  *widgets.Timeline
	toolbar   *widgets.Toolbar
	panel     *widgets.Panel
	camera    *interact.Camera
}

// NewApp creates a viewer over a prepared replay.
func NewApp(st *state.State) *App {
	camera := interact.NewCamera()
	return &App{
		state:     st,
		theme:     material.NewTheme(),
		workspace: widgets.NewWorkspace(st, camera),
		timeline:  widgets.NewTimeline(st),
		toolbar:   widgets.NewToolbar(st),
		panel:     widgets.NewPanel(st),
		camera:    camera,
	}
}

// Run starts the application event loop.
func (a *App) Run(w *app.Window) error {
	var ops op.Ops
	tag := new(int)

	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			for {
				ev, ok := gtx.Event(key.Filter{Focus: tag})
				if !ok {
					break
				}
				if ke, ok := ev.(key.Event); ok && ke.State == key.Press {
					a.handleKeyEvent(ke)
				}
			}
			event.Op(gtx.Ops, tag)

			a.layout(gtx)
			e.Frame(gtx.Ops)

			if a.state.Playback.Playing {
				a.state.Playback.Advance()
				w.Invalidate()
			}
		}
	}
}

func (a *App) handleKeyEvent(e key.Event) {
	p := a.state.Playback
	switch e.Name {
	case key.NameSpace:
		p.TogglePlay()
	case key.NameLeftArrow:
		p.StepBack()
	case key.NameRightArrow:
		p.StepForward()
	case key.NameHome:
		p.Reset()
	case "+":
		p.SetSpeed(p.Speed * 2)
	case "-":
		p.SetSpeed(p.Speed / 2)
	case "F":
		a.workspace.Refit()
	case key.NameEscape:
		a.state.Select("")
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, color.NRGBA{R: 30, G: 30, B: 35, A: 255})

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.toolbar.Layout(gtx, a.theme)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Flexed(1, a.workspace.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return a.panel.Layout(gtx, a.theme)
				}),
			)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.timeline.Layout(gtx, a.theme)
		}),
	)
}
