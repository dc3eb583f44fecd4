package task

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
)

/*
	Generation is how a frame is split into tasks.
	row: each task is an entire row of the image
	column: each task is an entire column of the image
	image: one task renders the whole frame
	grid: each task is a square tile of the image, clipped at the right and bottom edges
*/
const (
	Row Generation = iota
	Column
	Image
	Grid
)

// TileSize is the edge length of a Grid tile.
const TileSize = 64

type Generation int

func (g Generation) String() string {
	if g < Row || g > Grid {
		return fmt.Sprintf("Generation(%d)", int(g))
	}
	return []string{
		"Row", "Column", "Image", "Grid",
	}[g]
}

// ParseGeneration accepts the names returned by String, case-insensitively.
func ParseGeneration(name string) (Generation, error) {
	switch strings.ToLower(name) {
	case "row":
		return Row, nil
	case "column":
		return Column, nil
	case "image":
		return Image, nil
	case "grid":
		return Grid, nil
	}
	return Row, fmt.Errorf("unknown generation %q", name)
}

// Split divides a width x height raster into rectangles that cover every pixel exactly once.
func Split(width int, height int, g Generation) []image.Rectangle {
	if width <= 0 || height <= 0 {
		return nil
	}

	var rects []image.Rectangle
	switch g {
	case Column:
		for c := 0; c < width; c++ {
			rects = append(rects, image.Rect(c, 0, c+1, height))
		}
	case Image:
		rects = append(rects, image.Rect(0, 0, width, height))
	case Grid:
		for oy := 0; oy < height; oy += TileSize {
			for ox := 0; ox < width; ox += TileSize {
				rects = append(rects, image.Rect(ox, oy, min(ox+TileSize, width), min(oy+TileSize, height)))
			}
		}
	default:
		for r := 0; r < height; r++ {
			rects = append(rects, image.Rect(0, r, width, r+1))
		}
	}
	return rects
}

type Task struct {
	Bounds        image.Rectangle
	Coordinate    Coordinate
	CurrentPixel  int
	FrameNumber   uint
	ID            uint
	Results       []color.RGBA
	WorkerAddress string
}

func NewTask(id uint, frameNumber uint, coordinate Coordinate, bounds image.Rectangle) Task {
	return Task{
		Bounds:      bounds,
		Coordinate:  coordinate,
		FrameNumber: frameNumber,
		ID:          id,
		Results:     make([]color.RGBA, 0, bounds.Dx()*bounds.Dy()),
	}
}

// Generate creates the tasks for one frame, numbering them from firstID.
func Generate(firstID uint, frameNumber uint, coordinate Coordinate, width int, height int, g Generation) []Task {
	rects := Split(width, height, g)
	tasks := make([]Task, 0, len(rects))
	for i, r := range rects {
		tasks = append(tasks, NewTask(firstID+uint(i), frameNumber, coordinate, r))
	}
	return tasks
}

func (t *Task) String() string {
	output := "{Task "
	output += fmt.Sprintf("ID: %d ", t.ID)
	output += fmt.Sprintf("Frame Number: %d ", t.FrameNumber)
	output += fmt.Sprintf("Bounds: %s ", t.Bounds)
	output += fmt.Sprintf("Result Count: %d ", len(t.Results))
	output += fmt.Sprintf("Pixel Count: %d}", t.PixelCount())
	return output
}

func (t *Task) PixelCount() int {
	return t.Bounds.Dx() * t.Bounds.Dy()
}

// GetNextTask
// Returns the pixel to be processed next, in row-major order of Bounds. Make sure to pass its color to the
// AddResult method before calling this method again
func (t *Task) GetNextTask() (image.Point, error) {
	if t.CurrentPixel != len(t.Results) {
		return image.Point{}, fmt.Errorf("%w: pixel %d with %d results", ErrOutOfStep, t.CurrentPixel, len(t.Results))
	}
	if len(t.Results) >= t.PixelCount() {
		return image.Point{}, ErrNoMorePixels
	}
	w := t.Bounds.Dx()
	return image.Point{
		X: t.Bounds.Min.X + t.CurrentPixel%w,
		Y: t.Bounds.Min.Y + t.CurrentPixel/w,
	}, nil
}

// AddResult
// When recording a result the CurrentPixel value is incremented so the next call to the GetNextTask method will
// return the correct pixel
func (t *Task) AddResult(c color.RGBA) {
	t.Results = append(t.Results, c)
	t.CurrentPixel++
}

func (t *Task) Complete() bool {
	return len(t.Results) == t.PixelCount()
}

// Reset drops any recorded results so the task can be handed out again.
func (t *Task) Reset() {
	t.Results = t.Results[:0]
	t.CurrentPixel = 0
	t.WorkerAddress = ""
}

var (
	// ErrNoMorePixels ends the walk over a task.
	ErrNoMorePixels = errors.New("no more pixels")
	ErrOutOfStep    = errors.New("task results out of step with the current pixel")
)

// ErrAllHandedOut is returned to workers asking for work once every task has been given out.
// It crosses net/rpc as a string, so compare with IsAllHandedOut.
var ErrAllHandedOut = errors.New("all tasks handed out")

func IsAllHandedOut(err error) bool {
	return err != nil && err.Error() == ErrAllHandedOut.Error()
}
