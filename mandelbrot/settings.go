package mandelbrot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/BrugadaSyndrome/bslogger"
)

const (
	ColoringHSL     = "hsl"
	ColoringPalette = "palette"

	DefaultMaxIterations = 100
	DefaultWidth         = 400
	DefaultHeight        = 400
)

type Settings struct {
	logger bslogger.Logger

	CenterX                 float64
	CenterY                 float64
	Coloring                string
	EscapeColor             color.RGBA
	GeneratePaletteSettings []GeneratePaletteSettings
	Height                  uint32
	Limits                  Limits
	MaxIterations           uint32
	Palette                 []color.RGBA
	Scale                   float64
	Width                   uint32
}

// DefaultSettings is the view the explorer opens with.
func DefaultSettings() Settings {
	s := BaseSettings()
	s.Verify()
	return s
}

// BaseSettings holds the reset view and nothing else. Decode settings files into it so a file
// that omits the center still opens at the reset view.
func BaseSettings() Settings {
	return Settings{CenterX: DefaultCenterX, CenterY: DefaultCenterY, Scale: DefaultScale}
}

func (s *Settings) String() string {
	output := "\nMandelbrot settings\n"
	output += fmt.Sprintf("Center: (%g, %g)\n", s.CenterX, s.CenterY)
	output += fmt.Sprintf("Scale: %g\n", s.Scale)
	output += fmt.Sprintf("Max Iterations: %d\n", s.MaxIterations)
	output += fmt.Sprintf("Size: %dx%d\n", s.Width, s.Height)
	output += fmt.Sprintf("Coloring: %s\n", s.Coloring)
	output += fmt.Sprintf("Palette: %d colors\n", len(s.Palette))
	return output
}

// Verify replaces missing or out of range values with defaults. It never fails; the error return keeps
// the signature of the other settings types.
func (s *Settings) Verify() error {
	s.logger = bslogger.NewLogger("MandelbrotSettings", bslogger.Normal, nil)

	// A zero viewport was never set
	if s.CenterX == 0 && s.CenterY == 0 && s.Scale == 0 {
		s.CenterX = DefaultCenterX
		s.CenterY = DefaultCenterY
	}
	if math.IsNaN(s.CenterX) || s.CenterX > 4.0 || s.CenterX < -4.0 {
		s.CenterX = DefaultCenterX
	}
	if math.IsNaN(s.CenterY) || s.CenterY > 4.0 || s.CenterY < -4.0 {
		s.CenterY = DefaultCenterY
	}
	if s.Coloring == "" {
		s.Coloring = ColoringHSL
	}
	if s.EscapeColor == (color.RGBA{}) {
		s.EscapeColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	}
	if len(s.GeneratePaletteSettings) > 0 {
		s.Palette = make([]color.RGBA, 0)
		for i := 0; i < len(s.GeneratePaletteSettings); i++ {
			for _, c := range s.GeneratePaletteSettings[i].GeneratePalette() {
				s.Palette = append(s.Palette, c.ToRGBA())
			}
		}
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	s.Limits.Verify()
	if s.MaxIterations == 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if !(s.Scale > 0) || math.IsInf(s.Scale, 1) {
		s.Scale = DefaultScale
	}
	if s.Width == 0 {
		s.Width = DefaultWidth
	}

	if s.Coloring != ColoringHSL && s.Coloring != ColoringPalette {
		s.logger.Warningf("Unknown coloring %q, using %q", s.Coloring, ColoringHSL)
		s.Coloring = ColoringHSL
	}
	// Palette coloring wont work without colors
	if s.Coloring == ColoringPalette && len(s.Palette) == 0 {
		s.Coloring = ColoringHSL
		s.logger.Infof("Disabling palette coloring since the palette has no colors.")
	}

	return nil
}

func (s *Settings) Viewport() Viewport {
	return Viewport{CenterX: s.CenterX, CenterY: s.CenterY, Scale: s.Scale}
}

func (s *Settings) Parameters() RenderParameters {
	return RenderParameters{MaxIterations: s.MaxIterations, Width: s.Width, Height: s.Height}
}

func (s *Settings) Mapper() ColorMapper {
	if s.Coloring != ColoringPalette {
		return HSLMapper{}
	}
	palette := make([]PixelColor, len(s.Palette))
	for i, c := range s.Palette {
		palette[i] = FromRGBA(c)
	}
	return PaletteMapper{EscapeColor: FromRGBA(s.EscapeColor), Palette: palette}
}

// Limits are the ranges of the iteration and zoom controls. The core functions accept any valid value;
// the interactive layers clamp through Limits before rendering.
type Limits struct {
	IterationStep uint32
	MaxIterations uint32
	MaxScale      float64
	MinIterations uint32
	MinScale      float64
	ScaleStep     float64
}

func DefaultLimits() Limits {
	return Limits{
		IterationStep: 10,
		MaxIterations: 1000,
		MaxScale:      1000,
		MinIterations: 10,
		MinScale:      100,
		ScaleStep:     10,
	}
}

func (l *Limits) Verify() {
	d := DefaultLimits()
	if l.MinIterations == 0 {
		l.MinIterations = d.MinIterations
	}
	if l.MaxIterations < l.MinIterations {
		l.MaxIterations = max(d.MaxIterations, l.MinIterations)
	}
	if l.IterationStep == 0 {
		l.IterationStep = d.IterationStep
	}
	if !(l.MinScale > 0) {
		l.MinScale = d.MinScale
	}
	if !(l.MaxScale >= l.MinScale) || math.IsInf(l.MaxScale, 1) {
		l.MaxScale = math.Max(d.MaxScale, l.MinScale)
	}
	if !(l.ScaleStep > 0) {
		l.ScaleStep = d.ScaleStep
	}
}

func (l Limits) ClampIterations(n uint32) uint32 {
	return min(max(n, l.MinIterations), l.MaxIterations)
}

// ClampScale also maps NaN to the minimum scale so the result always satisfies Viewport.Validate.
func (l Limits) ClampScale(scale float64) float64 {
	if math.IsNaN(scale) || scale < l.MinScale {
		return l.MinScale
	}
	if scale > l.MaxScale {
		return l.MaxScale
	}
	return scale
}
