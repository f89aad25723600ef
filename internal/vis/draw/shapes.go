// Package draw provides rendering functions for the replay viewer.
package draw

import (
	"image"
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
)

// Line draws a straight segment of the given pixel width.
func Line(gtx layout.Context, x1, y1, x2, y2, width float32, col color.NRGBA) {
	dx := x2 - x1
	dy := y2 - y1
	length := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if length < 0.1 {
		return
	}

	dx /= length
	dy /= length
	px := -dy * width / 2
	py := dx * width / 2

	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(x1+px, y1+py))
	path.LineTo(f32.Pt(x2+px, y2+py))
	path.LineTo(f32.Pt(x2-px, y2-py))
	path.LineTo(f32.Pt(x1-px, y1-py))
	path.Close()

	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}

// DashedLine draws a segment as alternating dashes of length dash.
func DashedLine(gtx layout.Context, x1, y1, x2, y2, width, dash float32, col color.NRGBA) {
	dx, dy := x2-x1, y2-y1
	length := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if length < 0.1 || dash <= 0 {
		return
	}
	for s := float32(0); s < length; s += 2 * dash {
		e := min(s+dash, length)
		Line(gtx, x1+dx*s/length, y1+dy*s/length, x1+dx*e/length, y1+dy*e/length, width, col)
	}
}

// circlePath approximates a circle with line segments.
func circlePath(gtx layout.Context, cx, cy, radius float32) clip.PathSpec {
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx+radius, cy))

	segments := 16
	for i := 1; i <= segments; i++ {
		angle := float64(i) * 2 * math.Pi / float64(segments)
		path.LineTo(f32.Pt(cx+radius*float32(math.Cos(angle)), cy+radius*float32(math.Sin(angle))))
	}
	path.Close()
	return path.End()
}

// Circle draws a filled circle.
func Circle(gtx layout.Context, cx, cy, radius float32, col color.NRGBA) {
	paint.FillShape(gtx.Ops, col, clip.Outline{Path: circlePath(gtx, cx, cy, radius)}.Op())
}

// Ring draws a circle outline.
func Ring(gtx layout.Context, cx, cy, radius, width float32, col color.NRGBA) {
	paint.FillShape(gtx.Ops, col, clip.Stroke{Path: circlePath(gtx, cx, cy, radius), Width: width}.Op())
}

// Rect draws a filled axis-aligned rectangle centered on (cx, cy).
func Rect(gtx layout.Context, cx, cy, w, h float32, col color.NRGBA) {
	r := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))
	paint.FillShape(gtx.Ops, col, clip.Rect(r).Op())
}
