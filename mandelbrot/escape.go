package mandelbrot

import "fmt"

// escapeRadiusSquared is the squared escape radius; comparing squares avoids a square root.
const escapeRadiusSquared = 4.0

// EscapeResult describes how the orbit of a point behaved.
type EscapeResult struct {
	Iterations uint32
	Escaped    bool
}

func (r EscapeResult) String() string {
	return fmt.Sprintf("{EscapeResult Iterations: %d Escaped: %t}", r.Iterations, r.Escaped)
}

// Evaluate iterates z = z*z + c from z = 0.
//
// When the orbit leaves the escape radius, Iterations is the 0-indexed step at which that was detected,
// so points with |c| > 2 escape at step 0. Orbits still bounded after maxIterations steps report
// Escaped false and Iterations equal to maxIterations.
func Evaluate(c ComplexPoint, maxIterations uint32) EscapeResult {
	a, b := 0.0, 0.0
	for n := uint32(0); n < maxIterations; n++ {
		a, b = a*a-b*b+c.Re, 2*a*b+c.Im
		if a*a+b*b > escapeRadiusSquared {
			return EscapeResult{Iterations: n, Escaped: true}
		}
	}
	return EscapeResult{Iterations: maxIterations, Escaped: false}
}
