package mandelbrot

import "errors"

var (
	// ErrInvalidViewport is returned when a viewport scale is not a positive finite number.
	ErrInvalidViewport = errors.New("invalid viewport")

	// ErrInvalidParameters is returned when the iteration limit or a raster dimension is zero.
	ErrInvalidParameters = errors.New("invalid render parameters")
)
