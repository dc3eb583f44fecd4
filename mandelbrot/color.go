package mandelbrot

import (
	"fmt"
	"image/color"
	"math"
)

const (
	hueOffset  = 0.5
	hueRange   = 0.5
	saturation = 0.7
)

// PixelColor is an opaque 24 bit color.
type PixelColor struct {
	R uint8
	G uint8
	B uint8
}

var Black = PixelColor{}

// RGBA implements color.Color.
func (p PixelColor) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 0xff}.RGBA()
}

func (p PixelColor) String() string {
	return fmt.Sprintf("{PixelColor R: %d G: %d B: %d}", p.R, p.G, p.B)
}

// ToRGBA returns the color as an opaque color.RGBA.
func (p PixelColor) ToRGBA() color.RGBA {
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 0xff}
}

// FromRGBA drops the alpha channel of c.
func FromRGBA(c color.RGBA) PixelColor {
	return PixelColor{R: c.R, G: c.G, B: c.B}
}

// Speed is the divergence speed of an escaped point: sqrt(iterations / maxIterations).
// The square root spreads slow escapes near the set boundary over more of the color range.
func Speed(result EscapeResult, maxIterations uint32) float64 {
	if maxIterations == 0 {
		return 0
	}
	return math.Sqrt(float64(result.Iterations) / float64(maxIterations))
}

// Colorize maps an escape result to a color. Points that never escaped are black.
func Colorize(result EscapeResult, maxIterations uint32) PixelColor {
	if !result.Escaped {
		return Black
	}
	speed := Speed(result, maxIterations)
	return HSLToRGB(hueOffset+speed*hueRange, saturation, speed)
}

// HSLToRGB converts hue, saturation and lightness, each in [0, 1], to a color.
func HSLToRGB(h, s, l float64) PixelColor {
	if s == 0 {
		v := channel(l)
		return PixelColor{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return PixelColor{
		R: channel(hueToRGB(p, q, h+1.0/3)),
		G: channel(hueToRGB(p, q, h)),
		B: channel(hueToRGB(p, q, h-1.0/3)),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

func channel(v float64) uint8 {
	c := math.Round(v * 255)
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return uint8(c)
}
