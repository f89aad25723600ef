package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/relay-refuel/internal/vis/draw"
	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

const panelWidth = 260

// Panel lists every bot with its charge and current activity.
type Panel struct {
	state *state.State
	list  layout.List
}

// NewPanel creates a bot panel.
func NewPanel(st *state.State) *Panel {
	return &Panel{
		state: st,
		list:  layout.List{Axis: layout.Vertical},
	}
}

// Layout renders the panel.
func (p *Panel) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	gtx.Constraints.Min.X = panelWidth
	gtx.Constraints.Max.X = panelWidth
	rect := image.Rect(0, 0, panelWidth, gtx.Constraints.Max.Y)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 40, G: 40, B: 45, A: 255}, clip.Rect(rect).Op())

	bots := p.state.Bots()
	layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return p.list.Layout(gtx, len(bots), func(gtx layout.Context, i int) layout.Dimensions {
			return p.row(gtx, th, bots[i])
		})
	})
	return layout.Dimensions{Size: image.Point{X: panelWidth, Y: gtx.Constraints.Max.Y}}
}

func (p *Panel) row(gtx layout.Context, th *material.Theme, b state.BotView) layout.Dimensions {
	name := material.Label(th, 13, b.ID)
	name.Color = draw.RoleColor(b.Role)
	if b.ID == p.state.Selected {
		name.Color = draw.ColorSelected
	}

	detail := material.Label(th, 11, fmt.Sprintf("%5.0fs  %s", b.Charge, b.Activity))
	detail.Color = draw.ChargeColor(b.ChargeFraction())

	return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(name.Layout),
			layout.Rigid(detail.Layout),
		)
	})
}
