package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"MandelbrotExplorer/mandelbrot"
)

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return img
}

func assertResetView(t *testing.T, img image.Image, parameters mandelbrot.RenderParameters) {
	t.Helper()
	want, err := mandelbrot.Render(mandelbrot.Reset(), parameters)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds() != want.Bounds() {
		t.Fatalf("image bounds %s, want %s", img.Bounds(), want.Bounds())
	}
	for y := 0; y < want.Height; y++ {
		for x := 0; x < want.Width; x++ {
			gr, gg, gb, ga := img.At(x, y).RGBA()
			wr, wg, wb, wa := want.At(x, y).RGBA()
			if gr != wr || gg != wg || gb != wb || ga != wa {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, img.At(x, y), want.At(x, y))
			}
		}
	}
}

func TestRenderCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frames", "view.png")
	cmd := mainCmd()
	cmd.SetArgs([]string{"render", "--width", "40", "--height", "20", "--iterations", "50", "--generation", "column", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}

	assertResetView(t, decodePNG(t, out), mandelbrot.RenderParameters{MaxIterations: 50, Width: 40, Height: 20})
}

func TestRenderCommandDefaultsToResetView(t *testing.T) {
	out := filepath.Join(t.TempDir(), "default.png")
	cmd := mainCmd()
	cmd.SetArgs([]string{"render", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}
	assertResetView(t, decodePNG(t, out), mandelbrot.RenderParameters{
		MaxIterations: mandelbrot.DefaultMaxIterations,
		Width:         mandelbrot.DefaultWidth,
		Height:        mandelbrot.DefaultHeight,
	})
}

func TestRenderCommandSettingsFileWithoutCenter(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.json")
	out := filepath.Join(dir, "view.png")
	if err := os.WriteFile(settings, []byte(`{"Width": 30, "Height": 20, "MaxIterations": 40}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := mainCmd()
	cmd.SetArgs([]string{"render", "--settings", settings, "--sequential", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}
	assertResetView(t, decodePNG(t, out), mandelbrot.RenderParameters{MaxIterations: 40, Width: 30, Height: 20})
}

func TestRenderCommandRejectsBadValues(t *testing.T) {
	out := filepath.Join(t.TempDir(), "view.png")
	for _, args := range [][]string{
		{"render", "--scale", "0", "--out", out},
		{"render", "--width", "0", "--out", out},
		{"render", "--generation", "spiral", "--out", out},
	} {
		cmd := mainCmd()
		cmd.SetArgs(args)
		cmd.SilenceErrors = true
		if err := cmd.Execute(); err == nil {
			t.Errorf("%v succeeded", args)
		}
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("a failed render wrote an image")
	}
}

func TestRenderCommandWithSettingsAndPalette(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.json")
	palette := filepath.Join(dir, "palette.json")
	out := filepath.Join(dir, "palette.png")
	if err := os.WriteFile(settings, []byte(`{"Width": 24, "Height": 24, "MaxIterations": 30}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(palette, []byte(`[{"StartColor": {"R": 0, "G": 0, "B": 0, "A": 255}, "EndColor": {"R": 255, "G": 128, "B": 0, "A": 255}, "NumberColors": 8}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := mainCmd()
	cmd.SetArgs([]string{"render", "--settings", settings, "--palette", palette, "--sequential", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("no image written: %v", err)
	}
}
