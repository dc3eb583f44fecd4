package explorer

import (
	"context"
	"fmt"
	"sync"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/task"
)

// State is a snapshot of everything a frame depends on.
type State struct {
	CenterX    float64 `json:"centerX"`
	CenterY    float64 `json:"centerY"`
	Scale      float64 `json:"scale"`
	Iterations uint32  `json:"iterations"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	Dragging   bool    `json:"dragging"`
	Version    uint64  `json:"version"`
}

func (s State) Viewport() mandelbrot.Viewport {
	return mandelbrot.Viewport{CenterX: s.CenterX, CenterY: s.CenterY, Scale: s.Scale}
}

func (s State) Parameters() mandelbrot.RenderParameters {
	return mandelbrot.RenderParameters{MaxIterations: s.Iterations, Width: s.Width, Height: s.Height}
}

func (s State) String() string {
	output := "{State "
	output += fmt.Sprintf("Center: (%g, %g) ", s.CenterX, s.CenterY)
	output += fmt.Sprintf("Scale: %g ", s.Scale)
	output += fmt.Sprintf("Iterations: %d ", s.Iterations)
	output += fmt.Sprintf("Version: %d}", s.Version)
	return output
}

// Session is the interactive state of one explorer view. Pointer and control events mutate it,
// and every change is announced on Changes so a render loop can redraw.
type Session struct {
	changes    chan struct{}
	dragging   bool
	height     uint32
	iterations uint32
	lastX      float64
	lastY      float64
	limits     mandelbrot.Limits
	mutex      sync.Mutex
	renderer   *mandelbrot.Renderer
	version    uint64
	viewport   mandelbrot.Viewport
	width      uint32
}

// NewSession opens a view from verified settings. The renderer is shared between sessions.
func NewSession(settings mandelbrot.Settings, renderer *mandelbrot.Renderer) *Session {
	limits := settings.Limits
	limits.Verify()
	if renderer == nil {
		renderer = mandelbrot.NewRenderer(0, task.Grid, settings.Mapper())
	}

	viewport := settings.Viewport()
	viewport.Scale = limits.ClampScale(viewport.Scale)
	return &Session{
		changes:    make(chan struct{}, 1),
		height:     settings.Height,
		iterations: limits.ClampIterations(settings.MaxIterations),
		limits:     limits,
		renderer:   renderer,
		viewport:   viewport,
		width:      settings.Width,
	}
}

// Changes receives a value after one or more mutations. Bursts of changes collapse into one.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// changed must be called with the mutex held.
func (s *Session) changed() {
	s.version++
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state()
}

func (s *Session) state() State {
	return State{
		CenterX:    s.viewport.CenterX,
		CenterY:    s.viewport.CenterY,
		Scale:      s.viewport.Scale,
		Iterations: s.iterations,
		Width:      s.width,
		Height:     s.height,
		Dragging:   s.dragging,
		Version:    s.version,
	}
}

func (s *Session) PointerDown(x, y float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.dragging = true
	s.lastX, s.lastY = x, y
}

// PointerMove pans by the distance moved since the last pointer event while a drag is active.
func (s *Session) PointerMove(x, y float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.dragging {
		return nil
	}

	panned, err := mandelbrot.ApplyPan(s.viewport, x-s.lastX, y-s.lastY)
	if err != nil {
		return err
	}
	s.lastX, s.lastY = x, y
	if panned != s.viewport {
		s.viewport = panned
		s.changed()
	}
	return nil
}

// PointerUp ends a drag. Leaving the canvas counts as releasing the pointer.
func (s *Session) PointerUp() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.dragging = false
}

func (s *Session) SetIterations(n uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	n = s.limits.ClampIterations(n)
	if n != s.iterations {
		s.iterations = n
		s.changed()
	}
}

// StepIterations moves the iteration count by steps increments of the configured step.
func (s *Session) StepIterations(steps int) {
	s.mutex.Lock()
	n := int64(s.iterations) + int64(steps)*int64(s.limits.IterationStep)
	s.mutex.Unlock()
	s.SetIterations(uint32(max(n, 0)))
}

// SetScale zooms about the viewport center.
func (s *Session) SetScale(scale float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	scale = s.limits.ClampScale(scale)
	if scale != s.viewport.Scale {
		s.viewport.Scale = scale
		s.changed()
	}
}

// ZoomAt zooms by steps increments of the configured scale step, keeping the point under (x, y) in place.
func (s *Session) ZoomAt(x, y float64, steps int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	scale := s.limits.ClampScale(s.viewport.Scale + float64(steps)*s.limits.ScaleStep)
	if scale == s.viewport.Scale {
		return nil
	}
	zoomed, err := mandelbrot.ZoomAt(s.viewport, scale, x, y, int(s.width), int(s.height))
	if err != nil {
		return err
	}
	s.viewport = zoomed
	s.changed()
	return nil
}

// Reset returns to the default view. The iteration count is kept.
func (s *Session) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.dragging = false
	if reset := mandelbrot.Reset(); reset != s.viewport {
		s.viewport = reset
		s.changed()
	}
}

// Frame renders the current state. The returned state is the one the buffer shows.
func (s *Session) Frame(ctx context.Context) (*mandelbrot.RasterBuffer, State, error) {
	state := s.State()
	buffer, err := s.renderer.Render(ctx, state.Viewport(), state.Parameters())
	return buffer, state, err
}
