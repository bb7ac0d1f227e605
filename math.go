package orbprop

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	twoPi   = 2 * math.Pi
)

// unit returns the unit vector of a given vector, or the zero vector.
func unit(a r3.Vec) r3.Vec {
	n := r3.Norm(a)
	if scalar.EqualWithinAbs(n, 0, 1e-12) {
		return r3.Vec{}
	}
	return r3.Scale(1/n, a)
}

// sign returns the sign of a given number.
func sign(v float64) float64 {
	if scalar.EqualWithinAbs(v, 0, 1e-12) {
		return 1
	}
	return v / math.Abs(v)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// vecFromSlice reads the first three components of s.
func vecFromSlice(s []float64) r3.Vec {
	return r3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// NormalizeAngle wraps an angle in radians into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	if a >= twoPi {
		// math.Mod of a tiny negative number plus 2π rounds to 2π.
		a = 0
	}
	return a
}

// Deg2rad converts degrees to radians in [0, 2π).
func Deg2rad(a float64) float64 {
	return NormalizeAngle(a * deg2rad)
}

// Rad2deg converts radians to degrees in [0, 360).
func Rad2deg(a float64) float64 {
	return NormalizeAngle(a) / deg2rad
}
