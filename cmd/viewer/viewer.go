package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"MandelbrotExplorer/explorer"
	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/spf13/cobra"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	// SDL calls have to stay on the thread that did INIT_VIDEO
	runtime.LockOSThread()
}

func sdlInit(windowTitle string, width, height int32) (*sdl.Window, *sdl.Renderer, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, nil, err
	}
	sdl.StopTextInput()

	window, err := sdl.CreateWindow(
		windowTitle,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		width, height, sdl.WINDOW_SHOWN,
	)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		return nil, nil, err
	}

	return window, renderer, nil
}

func sdlClose(window *sdl.Window, renderer *sdl.Renderer) {
	renderer.Destroy()
	window.Destroy()
	sdl.Quit()
}

type viewer struct {
	logger   bslogger.Logger
	renderer *sdl.Renderer
	session  *explorer.Session
	texture  *sdl.Texture
	version  uint64
}

// upload renders the session state into the texture unless it is already showing it.
func (v *viewer) upload(force bool) error {
	state := v.session.State()
	if !force && state.Version == v.version {
		return nil
	}

	buffer, shown, err := v.session.Frame(context.Background())
	if err != nil {
		return err
	}
	v.version = shown.Version

	pixels, pitch, err := v.texture.Lock(nil)
	if err != nil {
		return err
	}
	img := buffer.RGBA()
	rowBytes := buffer.Width * 4
	for y := 0; y < buffer.Height; y++ {
		copy(pixels[y*pitch:y*pitch+rowBytes], img.Pix[y*img.Stride:y*img.Stride+rowBytes])
	}
	v.texture.Unlock()

	v.logger.Debugf("Showing %s", shown)
	return nil
}

func (v *viewer) draw() {
	v.renderer.Clear()
	_ = v.renderer.Copy(v.texture, nil, nil)
	v.renderer.Present()
}

// handle applies one event to the session and reports whether the viewer should keep running.
func (v *viewer) handle(e sdl.Event) bool {
	switch t := e.(type) {
	case *sdl.QuitEvent:
		return false
	case *sdl.MouseButtonEvent:
		if t.Type == sdl.MOUSEBUTTONDOWN {
			v.session.PointerDown(float64(t.X), float64(t.Y))
		} else if t.Type == sdl.MOUSEBUTTONUP {
			v.session.PointerUp()
		}
	case *sdl.MouseMotionEvent:
		misc.CheckError(v.session.PointerMove(float64(t.X), float64(t.Y)), v.logger, misc.Warning)
	case *sdl.MouseWheelEvent:
		x, y, _ := sdl.GetMouseState()
		misc.CheckError(v.session.ZoomAt(float64(x), float64(y), int(t.Y)), v.logger, misc.Warning)
	case *sdl.KeyboardEvent:
		if t.Type != sdl.KEYDOWN {
			break
		}
		switch t.Keysym.Sym {
		case sdl.K_ESCAPE:
			return false
		case sdl.K_r:
			v.session.Reset()
		case sdl.K_UP:
			v.session.StepIterations(1)
		case sdl.K_DOWN:
			v.session.StepIterations(-1)
		}
	}
	return true
}

func mainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viewer",
		Short: "Explore the Mandelbrot set in a window",
		Args:  cobra.ExactArgs(0),
		RunE:  runCmd,
	}

	flags := cmd.Flags()
	flags.Uint32("width", mandelbrot.DefaultWidth, "window width in pixels")
	flags.Uint32("height", mandelbrot.DefaultHeight, "window height in pixels")
	flags.Uint32("iterations", mandelbrot.DefaultMaxIterations, "initial maximum iterations")
	return cmd
}

func runCmd(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	settings := mandelbrot.BaseSettings()
	settings.Width, _ = cmd.Flags().GetUint32("width")
	settings.Height, _ = cmd.Flags().GetUint32("height")
	settings.MaxIterations, _ = cmd.Flags().GetUint32("iterations")
	if err := settings.Parameters().Validate(); err != nil {
		return err
	}
	_ = settings.Verify()

	window, renderer, err := sdlInit("Mandelbrot Explorer", int32(settings.Width), int32(settings.Height))
	if err != nil {
		return err
	}
	defer sdlClose(window, renderer)

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888, // byte order R, G, B, A on little endian, the layout of image.RGBA
		sdl.TEXTUREACCESS_STREAMING,
		int32(settings.Width),
		int32(settings.Height),
	)
	if err != nil {
		return err
	}
	defer texture.Destroy()

	v := viewer{
		logger:   bslogger.NewLogger("Viewer", bslogger.Normal, nil),
		renderer: renderer,
		session:  explorer.NewSession(settings, nil),
		texture:  texture,
	}
	if err = v.upload(true); err != nil {
		return err
	}
	v.draw()

	for {
		// WaitEvent must be on the same thread that did INIT_VIDEO
		e := sdl.WaitEvent()
		if e == nil {
			return fmt.Errorf("waiting for events: %s", sdl.GetError())
		}
		if !v.handle(e) {
			return nil
		}

		// Drain what queued up while rendering so a fast drag renders once
		for e = sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
			if !v.handle(e) {
				return nil
			}
		}

		if err = v.upload(false); err != nil {
			return err
		}
		v.draw()
	}
}

func main() {
	err := mainCmd().ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
