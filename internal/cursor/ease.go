package cursor

import "github.com/ivlev/demo2gif/internal/dom"

// Ease is a symmetric quadratic ease-in-out on [0,1]: the pointer
// accelerates out of the start and decelerates into the target.
func Ease(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	if t < 0.5 {
		return 2 * t * t
	}
	u := -2*t + 2
	return 1 - u*u/2
}

// Path returns the steps intermediate points from start to target. The last
// point is exactly target.
func Path(start, target dom.Point, steps int) []dom.Point {
	if steps < 1 {
		steps = 1
	}
	pts := make([]dom.Point, steps)
	for i := 1; i <= steps; i++ {
		e := Ease(float64(i) / float64(steps))
		pts[i-1] = dom.Point{
			X: lerp(start.X, target.X, e),
			Y: lerp(start.Y, target.Y, e),
		}
	}
	pts[steps-1] = target
	return pts
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
