package mandelbrot

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"MandelbrotExplorer/task"
)

func TestRenderDefaultView(t *testing.T) {
	buffer, err := Render(Reset(), RenderParameters{MaxIterations: 100, Width: 400, Height: 400})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buffer.Width != 400 || buffer.Height != 400 || len(buffer.Pixels) != 400*400 {
		t.Fatalf("buffer is %dx%d with %d pixels", buffer.Width, buffer.Height, len(buffer.Pixels))
	}
	if got := buffer.Pixel(200, 200); got != Black {
		t.Errorf("center pixel = %s, want black", got)
	}
	if got, want := buffer.Pixel(0, 0), (PixelColor{R: 8, G: 33, B: 43}); got != want {
		t.Errorf("corner pixel = %s, want %s", got, want)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	v := Viewport{CenterX: -0.743, CenterY: 0.131, Scale: 900}
	p := RenderParameters{MaxIterations: 250, Width: 64, Height: 48}
	a, err := Render(v, p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := Render(v, p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !a.Equal(b) {
		t.Error("two renders of the same view differ")
	}
}

func TestRenderSinglePixel(t *testing.T) {
	buffer, err := Render(Viewport{CenterX: 0, CenterY: 0, Scale: 1}, RenderParameters{MaxIterations: 10, Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// The only pixel maps to -0.5 - 0.5i, which stays bounded.
	if got := buffer.Pixel(0, 0); got != Black {
		t.Errorf("pixel = %s, want black", got)
	}
}

func TestRenderFarOutsideIsUniform(t *testing.T) {
	buffer, err := Render(Viewport{CenterX: 100, CenterY: 100, Scale: 200}, RenderParameters{MaxIterations: 100, Width: 16, Height: 16})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := Colorize(EscapeResult{Iterations: 0, Escaped: true}, 100)
	for i, p := range buffer.Pixels {
		if p != want {
			t.Fatalf("pixel %d = %s, want %s", i, p, want)
		}
	}
}

func TestRenderPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		v      Viewport
		p      RenderParameters
		target error
	}{
		{name: "zero scale", v: Viewport{Scale: 0}, p: RenderParameters{MaxIterations: 1, Width: 1, Height: 1}, target: ErrInvalidViewport},
		{name: "zero iterations", v: Reset(), p: RenderParameters{MaxIterations: 0, Width: 1, Height: 1}, target: ErrInvalidParameters},
		{name: "zero width", v: Reset(), p: RenderParameters{MaxIterations: 1, Width: 0, Height: 1}, target: ErrInvalidParameters},
		{name: "zero height", v: Reset(), p: RenderParameters{MaxIterations: 1, Width: 1, Height: 0}, target: ErrInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer, err := Render(tt.v, tt.p)
			if !errors.Is(err, tt.target) || buffer != nil {
				t.Errorf("Render = (%v, %v), want (nil, %v)", buffer, err, tt.target)
			}
			if !IsPreconditionError(err) {
				t.Errorf("IsPreconditionError(%v) = false", err)
			}

			_, err = NewRenderer(2, task.Row, nil).Render(context.Background(), tt.v, tt.p)
			if !errors.Is(err, tt.target) {
				t.Errorf("Renderer.Render error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestParallelRenderMatchesSequential(t *testing.T) {
	v := Viewport{CenterX: -0.75, CenterY: 0.1, Scale: 300}
	p := RenderParameters{MaxIterations: 150, Width: 150, Height: 97}
	want, err := Render(v, p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, g := range []task.Generation{task.Row, task.Column, task.Image, task.Grid} {
		for _, workers := range []int{1, 3, 8} {
			got, err := NewRenderer(workers, g, HSLMapper{}).Render(context.Background(), v, p)
			if err != nil {
				t.Fatalf("%s with %d workers: %v", g, workers, err)
			}
			if !got.Equal(want) {
				t.Errorf("%s with %d workers differs from the sequential render", g, workers)
			}
		}
	}
}

func TestRendererCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buffer, err := NewRenderer(4, task.Row, nil).Render(ctx, Reset(), RenderParameters{MaxIterations: 1000, Width: 400, Height: 400})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if buffer != nil {
		t.Error("a cancelled render returned a buffer")
	}
}

func TestRenderTask(t *testing.T) {
	v := Reset()
	p := RenderParameters{MaxIterations: 100, Width: 400, Height: 400}
	want, err := Render(v, p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	tasks := task.Generate(0, 1, CoordinateOf(v), 400, 400, task.Grid)
	buffer := NewRasterBuffer(400, 400)
	for i := range tasks {
		if err := RenderTask(&tasks[i], p, nil); err != nil {
			t.Fatalf("RenderTask: %v", err)
		}
		if err := buffer.ApplyTask(&tasks[i]); err != nil {
			t.Fatalf("ApplyTask: %v", err)
		}
	}
	if !buffer.Equal(want) {
		t.Error("tasks rendered separately differ from a full render")
	}
}

func TestRenderTaskReportsBrokenTasks(t *testing.T) {
	tk := task.NewTask(5, 1, CoordinateOf(Reset()), task.Split(4, 4, task.Image)[0])
	tk.CurrentPixel = 2
	err := RenderTask(&tk, RenderParameters{MaxIterations: 10, Width: 4, Height: 4}, nil)
	if !errors.Is(err, task.ErrOutOfStep) {
		t.Errorf("RenderTask = %v, want %v", err, task.ErrOutOfStep)
	}
}

func TestApplyTaskRejectsIncompleteTasks(t *testing.T) {
	tk := task.NewTask(7, 1, CoordinateOf(Reset()), task.Split(4, 4, task.Image)[0])
	tk.AddResult(color.RGBA{A: 255})
	if err := NewRasterBuffer(4, 4).ApplyTask(&tk); err == nil {
		t.Error("ApplyTask accepted a task with one of sixteen pixels")
	}
}

func TestRasterBufferImage(t *testing.T) {
	buffer := NewRasterBuffer(3, 2)
	buffer.Set(2, 1, PixelColor{R: 10, G: 20, B: 30})

	if got := buffer.At(2, 1); got != (PixelColor{R: 10, G: 20, B: 30}) {
		t.Errorf("At(2, 1) = %v", got)
	}
	if got := buffer.At(3, 0); got != (color.RGBA{}) {
		t.Errorf("At outside the bounds = %v, want transparent", got)
	}

	img := buffer.RGBA()
	if got := img.RGBAAt(2, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("RGBA().RGBAAt(2, 1) = %v", got)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{A: 255}) {
		t.Errorf("RGBA().RGBAAt(0, 0) = %v, want opaque black", got)
	}
}
