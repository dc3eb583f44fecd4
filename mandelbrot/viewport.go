package mandelbrot

import (
	"fmt"
	"math"
)

const (
	DefaultCenterX = -0.5
	DefaultCenterY = 0.0
	DefaultScale   = 200.0
)

// Viewport is the affine mapping from pixel space to the complex plane.
// Scale is measured in pixels per unit, so a larger scale is more zoomed in.
type Viewport struct {
	CenterX float64
	CenterY float64
	Scale   float64
}

// ComplexPoint is a point on the complex plane.
type ComplexPoint struct {
	Re float64
	Im float64
}

func (v Viewport) String() string {
	return fmt.Sprintf("{Viewport CenterX: %g CenterY: %g Scale: %g}", v.CenterX, v.CenterY, v.Scale)
}

// Validate reports ErrInvalidViewport unless the scale is positive and finite.
func (v Viewport) Validate() error {
	if !(v.Scale > 0) || math.IsInf(v.Scale, 1) {
		return fmt.Errorf("%w: scale %g must be positive", ErrInvalidViewport, v.Scale)
	}
	return nil
}

// Reset returns the canonical starting view.
func Reset() Viewport {
	return Viewport{
		CenterX: DefaultCenterX,
		CenterY: DefaultCenterY,
		Scale:   DefaultScale,
	}
}

// PixelToComplex converts the (px, py) pixel of a width x height raster to the complex plane.
// Pixels are indexed from the top left with y growing downwards, and the raster center sits on the viewport center.
func PixelToComplex(px, py, width, height int, v Viewport) (ComplexPoint, error) {
	if err := v.Validate(); err != nil {
		return ComplexPoint{}, err
	}
	return pixelToComplex(float64(px), float64(py), float64(width), float64(height), v), nil
}

func pixelToComplex(px, py, width, height float64, v Viewport) ComplexPoint {
	return ComplexPoint{
		Re: (px-width/2)/v.Scale + v.CenterX,
		Im: (py-height/2)/v.Scale + v.CenterY,
	}
}

// ComplexToPixel is the inverse of PixelToComplex. The result is fractional and may lie outside the raster.
func ComplexToPixel(c ComplexPoint, width, height int, v Viewport) (float64, float64, error) {
	if err := v.Validate(); err != nil {
		return 0, 0, err
	}
	x := (c.Re-v.CenterX)*v.Scale + float64(width)/2
	y := (c.Im-v.CenterY)*v.Scale + float64(height)/2
	return x, y, nil
}

// ApplyPan moves the view by a pointer drag of (deltaPx, deltaPy) screen pixels.
// Dragging right moves the visible window left, as if the canvas was grabbed.
func ApplyPan(v Viewport, deltaPx, deltaPy float64) (Viewport, error) {
	if err := v.Validate(); err != nil {
		return v, err
	}
	v.CenterX -= deltaPx / v.Scale
	v.CenterY -= deltaPy / v.Scale
	return v, nil
}

// ZoomAt changes the scale while keeping the complex point under pixel (px, py) where it is.
func ZoomAt(v Viewport, scale, px, py float64, width, height int) (Viewport, error) {
	if err := v.Validate(); err != nil {
		return v, err
	}
	zoomed := Viewport{CenterX: v.CenterX, CenterY: v.CenterY, Scale: scale}
	if err := zoomed.Validate(); err != nil {
		return v, err
	}

	anchor := pixelToComplex(px, py, float64(width), float64(height), v)
	zoomed.CenterX = anchor.Re - (px-float64(width)/2)/scale
	zoomed.CenterY = anchor.Im - (py-float64(height)/2)/scale
	return zoomed, nil
}
