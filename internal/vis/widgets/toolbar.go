package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

// Toolbar provides playback buttons and a schedule summary.
type Toolbar struct {
	state *state.State

	playBtn      widget.Clickable
	resetBtn     widget.Clickable
	stepFwdBtn   widget.Clickable
	stepBackBtn  widget.Clickable
	speedUpBtn   widget.Clickable
	speedDownBtn widget.Clickable
}

// NewToolbar creates a new toolbar.
func NewToolbar(st *state.State) *Toolbar {
	return &Toolbar{
		state: st,
	}
}

// Layout renders the toolbar.
func (t *Toolbar) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	height := 48
	rect := image.Rect(0, 0, gtx.Constraints.Max.X, height)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 40, G: 43, B: 48, A: 255}, clip.Rect(rect).Op())

	t.handleClicks(gtx)

	play := ">"
	if t.state.Playback.Playing {
		play = "||"
	}

	return layout.Inset{Left: unit.Dp(10), Right: unit.Dp(10), Top: unit.Dp(8), Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.stepBackBtn, "|<") }),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.playBtn, play) }),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.stepFwdBtn, ">|") }),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.resetBtn, "[]") }),
			layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.speedDownBtn, "-") }),
			layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions { return button(gtx, th, &t.speedUpBtn, "+") }),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions { return layout.Dimensions{} }),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.summary(gtx, th)
			}),
		)
	})
}

func (t *Toolbar) summary(gtx layout.Context, th *material.Theme) layout.Dimensions {
	s, res := t.state.Schedule, t.state.Result
	text := fmt.Sprintf("%d bots  depth %d  %d stops  %.0fs  misses %d",
		len(s.Nodes), s.Depth(), s.InjectedStops(), s.TotalElapsed(), res.Misses)
	label := material.Label(th, 12, text)
	label.Color = colorLabel
	if res.Misses > 0 {
		label.Color = colorRVMissed
	}
	return label.Layout(gtx)
}

func (t *Toolbar) handleClicks(gtx layout.Context) {
	p := t.state.Playback
	for t.playBtn.Clicked(gtx) {
		p.TogglePlay()
	}
	for t.resetBtn.Clicked(gtx) {
		p.Reset()
	}
	for t.stepFwdBtn.Clicked(gtx) {
		p.StepForward()
	}
	for t.stepBackBtn.Clicked(gtx) {
		p.StepBack()
	}
	for t.speedUpBtn.Clicked(gtx) {
		p.SetSpeed(p.Speed * 2)
	}
	for t.speedDownBtn.Clicked(gtx) {
		p.SetSpeed(p.Speed / 2)
	}
}

func button(gtx layout.Context, th *material.Theme, btn *widget.Clickable, text string) layout.Dimensions {
	bg := color.NRGBA{R: 55, G: 58, B: 65, A: 255}
	if btn.Hovered() {
		bg = color.NRGBA{R: 70, G: 73, B: 80, A: 255}
	}

	return btn.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Background{}.Layout(gtx,
			func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min = image.Point{X: 32, Y: 28}
				rect := image.Rect(0, 0, gtx.Constraints.Min.X, gtx.Constraints.Min.Y)
				paint.FillShape(gtx.Ops, bg, clip.Rect(rect).Op())
				return layout.Dimensions{Size: gtx.Constraints.Min}
			},
			func(gtx layout.Context) layout.Dimensions {
				return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					label := material.Label(th, 12, text)
					label.Color = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
					return label.Layout(gtx)
				})
			},
		)
	})
}
