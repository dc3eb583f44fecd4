package coordinator

import (
	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"
	"fmt"
	"math"
)

// Transition animates the viewport from a start view to an end view over FrameCount frames.
type Transition struct {
	EndX       float64
	EndY       float64
	FrameCount uint
	ScaleEnd   float64
	ScaleStart float64
	StartX     float64
	StartY     float64
}

func (t Transition) String() string {
	output := "{Transition "
	output += fmt.Sprintf("Start: (%g, %g) ", t.StartX, t.StartY)
	output += fmt.Sprintf("End: (%g, %g) ", t.EndX, t.EndY)
	output += fmt.Sprintf("Scale: %g -> %g ", t.ScaleStart, t.ScaleEnd)
	output += fmt.Sprintf("FrameCount: %d}", t.FrameCount)
	return output
}

func (t *Transition) Verify() error {
	if !inPlane(t.StartX) {
		t.StartX = mandelbrot.DefaultCenterX
	}
	if !inPlane(t.StartY) {
		t.StartY = mandelbrot.DefaultCenterY
	}
	if !inPlane(t.EndX) {
		t.EndX = mandelbrot.DefaultCenterX
	}
	if !inPlane(t.EndY) {
		t.EndY = mandelbrot.DefaultCenterY
	}
	if !(t.ScaleStart > 0) || math.IsInf(t.ScaleStart, 0) {
		t.ScaleStart = mandelbrot.DefaultScale
	}
	if !(t.ScaleEnd > 0) || math.IsInf(t.ScaleEnd, 0) {
		t.ScaleEnd = mandelbrot.DefaultScale * 10
	}
	if t.FrameCount == 0 {
		t.FrameCount = 1
	}
	return nil
}

// Frames returns one viewport per frame. The first frame is the start view and
// the last frame is the end view. Scale moves geometrically, and the center eases
// so it settles early when zooming in and late when zooming out.
func (t Transition) Frames() []mandelbrot.Viewport {
	count := max(t.FrameCount, 1)
	frames := make([]mandelbrot.Viewport, count)
	zoomingIn := t.ScaleEnd > t.ScaleStart

	for i := range frames {
		fraction := 0.0
		if count > 1 {
			fraction = float64(i) / float64(count-1)
		}

		eased := misc.EaseInExpo(fraction)
		if zoomingIn {
			eased = misc.EaseOutExpo(fraction)
		}

		frames[i] = mandelbrot.Viewport{
			CenterX: misc.LerpFloat64(t.StartX, t.EndX, eased),
			CenterY: misc.LerpFloat64(t.StartY, t.EndY, eased),
			Scale:   misc.LerpGeometric(t.ScaleStart, t.ScaleEnd, fraction),
		}
	}
	if count > 1 {
		frames[count-1] = mandelbrot.Viewport{CenterX: t.EndX, CenterY: t.EndY, Scale: t.ScaleEnd}
	}
	return frames
}

func inPlane(v float64) bool {
	return v >= -4 && v <= 4
}
