package mandelbrot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"time"

	"MandelbrotExplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
)

// RenderParameters are the iteration limit and the raster dimensions of one render.
type RenderParameters struct {
	MaxIterations uint32
	Width         uint32
	Height        uint32
}

func (p RenderParameters) Validate() error {
	if p.MaxIterations == 0 {
		return fmt.Errorf("%w: max iterations must be at least 1", ErrInvalidParameters)
	}
	if p.Width == 0 || p.Height == 0 {
		return fmt.Errorf("%w: raster %dx%d is empty", ErrInvalidParameters, p.Width, p.Height)
	}
	return nil
}

func (p RenderParameters) String() string {
	return fmt.Sprintf("{RenderParameters MaxIterations: %d Width: %d Height: %d}", p.MaxIterations, p.Width, p.Height)
}

// RasterBuffer holds the colors of a rendered frame in row-major order.
// It implements image.Image so it can be handed to the image encoders directly.
type RasterBuffer struct {
	Width  int
	Height int
	Pixels []PixelColor
}

func NewRasterBuffer(width int, height int) *RasterBuffer {
	return &RasterBuffer{
		Width:  width,
		Height: height,
		Pixels: make([]PixelColor, width*height),
	}
}

func (b *RasterBuffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (b *RasterBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

func (b *RasterBuffer) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(b.Bounds())) {
		return color.RGBA{}
	}
	return b.Pixels[y*b.Width+x]
}

func (b *RasterBuffer) Pixel(x, y int) PixelColor {
	return b.Pixels[y*b.Width+x]
}

func (b *RasterBuffer) Set(x, y int, c PixelColor) {
	b.Pixels[y*b.Width+x] = c
}

// RGBA copies the buffer into an opaque *image.RGBA.
func (b *RasterBuffer) RGBA() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for i, p := range b.Pixels {
		img.Pix[i*4] = p.R
		img.Pix[i*4+1] = p.G
		img.Pix[i*4+2] = p.B
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// Equal reports whether both buffers have the same size and identical pixels.
func (b *RasterBuffer) Equal(other *RasterBuffer) bool {
	if b.Width != other.Width || b.Height != other.Height {
		return false
	}
	for i := range b.Pixels {
		if b.Pixels[i] != other.Pixels[i] {
			return false
		}
	}
	return true
}

// ApplyTask copies the results of a completed task into the buffer.
func (b *RasterBuffer) ApplyTask(t *task.Task) error {
	if !t.Complete() {
		return fmt.Errorf("task %d is incomplete: %d of %d pixels", t.ID, len(t.Results), t.PixelCount())
	}
	if !t.Bounds.In(b.Bounds()) {
		return fmt.Errorf("task %d bounds %s are outside of %s", t.ID, t.Bounds, b.Bounds())
	}

	i := 0
	for y := t.Bounds.Min.Y; y < t.Bounds.Max.Y; y++ {
		for x := t.Bounds.Min.X; x < t.Bounds.Max.X; x++ {
			b.Set(x, y, FromRGBA(t.Results[i]))
			i++
		}
	}
	return nil
}

// Render computes every pixel of the raster, one after the other, with the default coloring.
func Render(v Viewport, p RenderParameters) (*RasterBuffer, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	width, height := float64(p.Width), float64(p.Height)
	buffer := NewRasterBuffer(int(p.Width), int(p.Height))
	for py := 0; py < buffer.Height; py++ {
		for px := 0; px < buffer.Width; px++ {
			c := pixelToComplex(float64(px), float64(py), width, height, v)
			buffer.Set(px, py, Colorize(Evaluate(c, p.MaxIterations), p.MaxIterations))
		}
	}
	return buffer, nil
}

// CoordinateOf converts a viewport to the form carried by tasks.
func CoordinateOf(v Viewport) task.Coordinate {
	return task.Coordinate{CenterX: v.CenterX, CenterY: v.CenterY, Scale: v.Scale}
}

// ViewportOf is the inverse of CoordinateOf.
func ViewportOf(c task.Coordinate) Viewport {
	return Viewport{CenterX: c.CenterX, CenterY: c.CenterY, Scale: c.Scale}
}

// RenderTask fills in the results of every remaining pixel of t.
func RenderTask(t *task.Task, p RenderParameters, mapper ColorMapper) error {
	v := ViewportOf(t.Coordinate)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if mapper == nil {
		mapper = HSLMapper{}
	}

	width, height := float64(p.Width), float64(p.Height)
	for {
		pixel, err := t.GetNextTask()
		if errors.Is(err, task.ErrNoMorePixels) {
			break
		}
		if err != nil {
			return fmt.Errorf("rendering task %d: %w", t.ID, err)
		}
		c := pixelToComplex(float64(pixel.X), float64(pixel.Y), width, height, v)
		t.AddResult(mapper.Color(Evaluate(c, p.MaxIterations), p.MaxIterations).ToRGBA())
	}
	return nil
}

// Renderer renders frames on a pool of goroutines. Each task covers a disjoint part of the raster,
// so workers write into the shared buffer without locking.
type Renderer struct {
	logger bslogger.Logger

	Generation task.Generation
	Mapper     ColorMapper
	Workers    int
}

// NewRenderer uses one worker per CPU when workers is not positive and HSL coloring when mapper is nil.
func NewRenderer(workers int, generation task.Generation, mapper ColorMapper) *Renderer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if mapper == nil {
		mapper = HSLMapper{}
	}
	return &Renderer{
		logger:     bslogger.NewLogger("Renderer", bslogger.Normal, nil),
		Generation: generation,
		Mapper:     mapper,
		Workers:    workers,
	}
}

// Render computes a full frame. The buffer is only returned once every pixel is written; if ctx is
// cancelled first the partial frame is dropped and the context error returned.
func (r *Renderer) Render(ctx context.Context, v Viewport, p RenderParameters) (*RasterBuffer, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	buffer := NewRasterBuffer(int(p.Width), int(p.Height))
	tasks := task.Generate(0, 0, CoordinateOf(v), buffer.Width, buffer.Height, r.Generation)

	todo := make(chan *task.Task, len(tasks))
	for i := range tasks {
		todo <- &tasks[i]
	}
	close(todo)

	workers := max(r.Workers, 1)
	var errOnce sync.Once
	var renderErr error
	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range todo {
				if ctx.Err() != nil {
					return
				}
				err := RenderTask(t, p, r.Mapper)
				if err == nil {
					err = buffer.ApplyTask(t)
				}
				if err != nil {
					errOnce.Do(func() { renderErr = err })
					return
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Debugf("Render of %s superseded after %s", v, time.Since(startTime))
		return nil, err
	}
	if renderErr != nil {
		return nil, renderErr
	}

	r.logger.Debugf("Rendered %d tasks of %s in %s", len(tasks), v, time.Since(startTime))
	return buffer, nil
}

// IsPreconditionError reports whether err is one of the precondition violations of the core.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrInvalidViewport) || errors.Is(err, ErrInvalidParameters)
}
