package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"
	"MandelbrotExplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame to a png file",
		Args:  cobra.ExactArgs(0),
		RunE:  runRender,
	}

	flags := cmd.Flags()
	flags.Float64("center-x", mandelbrot.DefaultCenterX, "real part of the view center")
	flags.Float64("center-y", mandelbrot.DefaultCenterY, "imaginary part of the view center")
	flags.Float64("scale", mandelbrot.DefaultScale, "pixels per unit")
	flags.Uint32("iterations", mandelbrot.DefaultMaxIterations, "maximum iterations per pixel")
	flags.Uint32("width", mandelbrot.DefaultWidth, "image width in pixels")
	flags.Uint32("height", mandelbrot.DefaultHeight, "image height in pixels")
	flags.Int("workers", 0, "render goroutines, 0 for one per cpu")
	flags.String("generation", task.Grid.String(), "how the frame is split between goroutines: row, column, image or grid")
	flags.String("palette", "", "json file with a list of palette gradients; enables palette coloring")
	flags.String("settings", "", "json file with mandelbrot settings; flags that are set override it")
	flags.Bool("sequential", false, "render on the calling goroutine only")
	flags.String("out", "mandelbrot.png", "output file")
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	// At this point usage information has already been printed if obviously incorrect.
	cmd.SilenceUsage = true
	logger := bslogger.NewLogger("Render", bslogger.Normal, nil)
	flags := cmd.Flags()

	settings, err := loadMandelbrotSettings(mustString(flags.GetString("settings")))
	if err != nil {
		return err
	}
	misc.CheckError(settings.Verify(), logger, misc.Warning)

	if flags.Changed("center-x") {
		settings.CenterX, _ = flags.GetFloat64("center-x")
	}
	if flags.Changed("center-y") {
		settings.CenterY, _ = flags.GetFloat64("center-y")
	}
	if flags.Changed("scale") {
		settings.Scale, _ = flags.GetFloat64("scale")
	}
	if flags.Changed("iterations") {
		settings.MaxIterations, _ = flags.GetUint32("iterations")
	}
	if flags.Changed("width") {
		settings.Width, _ = flags.GetUint32("width")
	}
	if flags.Changed("height") {
		settings.Height, _ = flags.GetUint32("height")
	}
	if palette := mustString(flags.GetString("palette")); palette != "" {
		fileBytes, err := misc.ReadFile(palette)
		if err != nil {
			return err
		}
		if err = json.Unmarshal(fileBytes, &settings.GeneratePaletteSettings); err != nil {
			return fmt.Errorf("parsing palette %s: %w", palette, err)
		}
		settings.Coloring = mandelbrot.ColoringPalette
	}

	// Report explicit bad values instead of letting Verify replace them
	if err = settings.Viewport().Validate(); err != nil {
		return err
	}
	if err = settings.Parameters().Validate(); err != nil {
		return err
	}
	misc.CheckError(settings.Verify(), logger, misc.Warning)

	generation, err := task.ParseGeneration(mustString(flags.GetString("generation")))
	if err != nil {
		return err
	}
	workers, _ := flags.GetInt("workers")
	sequential, _ := flags.GetBool("sequential")

	startTime := time.Now()
	var buffer *mandelbrot.RasterBuffer
	if sequential && settings.Coloring == mandelbrot.ColoringHSL {
		buffer, err = mandelbrot.Render(settings.Viewport(), settings.Parameters())
	} else {
		renderer := mandelbrot.NewRenderer(workers, generation, settings.Mapper())
		if sequential {
			renderer.Workers = 1
		}
		buffer, err = renderer.Render(cmd.Context(), settings.Viewport(), settings.Parameters())
	}
	if err != nil {
		return err
	}
	logger.Infof("Rendered %s in %s", settings.Viewport(), time.Since(startTime))

	out := mustString(flags.GetString("out"))
	if err = misc.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = png.Encode(f, buffer); err != nil {
		return err
	}

	logger.Infof("Saved image to %s", out)
	return nil
}

// loadMandelbrotSettings reads a settings file over the reset view, or returns the reset view when path is empty.
func loadMandelbrotSettings(path string) (mandelbrot.Settings, error) {
	settings := mandelbrot.BaseSettings()
	if path == "" {
		return settings, nil
	}
	fileBytes, err := misc.ReadFile(path)
	if err != nil {
		return settings, err
	}
	if err = json.Unmarshal(fileBytes, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return settings, nil
}

func mustString(value string, err error) string {
	if err != nil {
		panic(err)
	}
	return value
}
