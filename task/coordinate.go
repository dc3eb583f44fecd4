package task

import "fmt"

// Coordinate is the view a task is rendered with: the complex point at the raster center and the
// number of pixels per unit.
type Coordinate struct {
	CenterX float64
	CenterY float64
	Scale   float64
}

func (c *Coordinate) String() string {
	output := "{Coordinate "
	output += fmt.Sprintf("CenterX: %f ", c.CenterX)
	output += fmt.Sprintf("CenterY: %f ", c.CenterY)
	output += fmt.Sprintf("Scale: %f}", c.Scale)
	return output
}
