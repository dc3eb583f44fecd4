package mandelbrot

import (
	"image/color"

	"MandelbrotExplorer/misc"
)

// A ColorMapper turns the escape result of one pixel into its color.
type ColorMapper interface {
	Color(result EscapeResult, maxIterations uint32) PixelColor
}

// HSLMapper is the default coloring, see Colorize.
type HSLMapper struct{}

func (HSLMapper) Color(result EscapeResult, maxIterations uint32) PixelColor {
	return Colorize(result, maxIterations)
}

// PaletteMapper cycles through a fixed palette by iteration count.
type PaletteMapper struct {
	EscapeColor PixelColor
	Palette     []PixelColor
}

func (pm PaletteMapper) Color(result EscapeResult, _ uint32) PixelColor {
	if !result.Escaped || len(pm.Palette) == 0 {
		return pm.EscapeColor
	}
	return pm.Palette[int(result.Iterations)%len(pm.Palette)]
}

// GeneratePaletteSettings describes a gradient of NumberColors colors from StartColor towards EndColor.
type GeneratePaletteSettings struct {
	StartColor   color.RGBA
	EndColor     color.RGBA
	NumberColors int
}

func (gps *GeneratePaletteSettings) GeneratePalette() []PixelColor {
	palette := make([]PixelColor, 0, gps.NumberColors)
	for j := 0; j < gps.NumberColors; j++ {
		fraction := float64(j) / float64(gps.NumberColors)
		palette = append(palette, FromRGBA(misc.LinearInterpolationRGB(gps.StartColor, gps.EndColor, fraction)))
	}
	return palette
}

var _ ColorMapper = HSLMapper{}
var _ ColorMapper = PaletteMapper{}
