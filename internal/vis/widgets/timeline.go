package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/relay-refuel/internal/vis/state"
)

const (
	timelineHeight = 60
	timelineMargin = 20
)

var (
	colorTrack     = color.NRGBA{R: 60, G: 65, B: 70, A: 255}
	colorProgress  = color.NRGBA{R: 100, G: 180, B: 255, A: 255}
	colorRecharge  = color.NRGBA{R: 120, G: 255, B: 140, A: 200}
	colorRVMissed  = color.NRGBA{R: 255, G: 70, B: 70, A: 220}
	colorLabel     = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	colorLabelDim  = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
	colorLabelInfo = color.NRGBA{R: 150, G: 180, B: 200, A: 255}
)

// Timeline is a time scrubber with recharge windows marked on the track.
type Timeline struct {
	state    *state.State
	dragging bool
}

// NewTimeline creates a new timeline widget.
func NewTimeline(st *state.State) *Timeline {
	return &Timeline{
		state: st,
	}
}

// Layout renders the timeline.
func (t *Timeline) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	width := gtx.Constraints.Max.X
	rect := image.Rect(0, 0, width, timelineHeight)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 35, G: 38, B: 42, A: 255}, clip.Rect(rect).Op())

	trackWidth := width - 2*timelineMargin
	t.handlePointerEvents(gtx, trackWidth)

	trackY := timelineHeight / 2
	trackHeight := 6
	track := image.Rect(timelineMargin, trackY-trackHeight/2, timelineMargin+trackWidth, trackY+trackHeight/2)
	paint.FillShape(gtx.Ops, colorTrack, clip.Rect(track).Op())

	fillWidth := int(float64(trackWidth) * t.state.Playback.Progress())
	if fillWidth > 0 {
		fill := image.Rect(timelineMargin, track.Min.Y, timelineMargin+fillWidth, track.Max.Y)
		paint.FillShape(gtx.Ops, colorProgress, clip.Rect(fill).Op())
	}

	// Recharge windows
	for _, rv := range t.state.Result.Rendezvous {
		x0 := timelineMargin + t.trackX(rv.Start, trackWidth)
		x1 := max(timelineMargin+t.trackX(rv.End, trackWidth), x0+2)
		col := colorRecharge
		if !rv.Met() {
			col = colorRVMissed
		}
		paint.FillShape(gtx.Ops, col, clip.Rect(image.Rect(x0, track.Max.Y+2, x1, track.Max.Y+6)).Op())
	}

	playheadX := timelineMargin + fillWidth
	playhead := image.Rect(playheadX-6, trackY-6, playheadX+6, trackY+6)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, clip.Rect(playhead).Op())

	t.drawTimeLabels(gtx, th)

	return layout.Dimensions{Size: image.Point{X: width, Y: timelineHeight}}
}

// trackX maps an absolute time onto the track in pixels.
func (t *Timeline) trackX(at float64, trackWidth int) int {
	p := t.state.Playback
	span := p.MaxTime - p.MinTime
	if span <= 0 {
		return 0
	}
	f := min(max((at-p.MinTime)/span, 0), 1)
	return int(f * float64(trackWidth))
}

func (t *Timeline) drawTimeLabels(gtx layout.Context, th *material.Theme) {
	p := t.state.Playback

	current := material.Label(th, 12, fmt.Sprintf("t=%.1fs", p.CurrentTime))
	current.Color = colorLabel

	speed := material.Label(th, 12, fmt.Sprintf("%.0fx", p.Speed))
	speed.Color = colorLabelInfo

	end := material.Label(th, 12, fmt.Sprintf("%.1fs", p.MaxTime))
	end.Color = colorLabelDim

	layout.Inset{Top: unit.Dp(4), Left: unit.Dp(20), Right: unit.Dp(20)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
			layout.Rigid(current.Layout),
			layout.Rigid(speed.Layout),
			layout.Rigid(end.Layout),
		)
	})
}

func (t *Timeline) handlePointerEvents(gtx layout.Context, trackWidth int) {
	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, timelineHeight)).Push(gtx.Ops)
	event.Op(gtx.Ops, t)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: t,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release,
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch pe.Kind {
		case pointer.Press:
			t.dragging = true
			t.seek(pe.Position.X, trackWidth)
		case pointer.Drag:
			if t.dragging {
				t.seek(pe.Position.X, trackWidth)
			}
		case pointer.Release:
			t.dragging = false
		}
	}
}

func (t *Timeline) seek(screenX float32, trackWidth int) {
	if trackWidth <= 0 {
		return
	}
	t.state.Playback.Pause()
	t.state.Playback.Seek((float64(screenX) - timelineMargin) / float64(trackWidth))
}
