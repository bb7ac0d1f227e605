package orbprop

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// R3R1R3 performs a 3-1-3 Euler parameter rotation.
// From Schaub and Junkins. It maps the inertial frame to the rotated one.
func R3R1R3(θ1, θ2, θ3 float64) *mat.Dense {
	sθ1, cθ1 := math.Sincos(θ1)
	sθ2, cθ2 := math.Sincos(θ2)
	sθ3, cθ3 := math.Sincos(θ3)
	return mat.NewDense(3, 3, []float64{cθ3*cθ1 - sθ3*cθ2*sθ1, cθ3*sθ1 + sθ3*cθ2*cθ1, sθ3 * sθ2,
		-sθ3*cθ1 - cθ3*cθ2*sθ1, -sθ3*sθ1 + cθ3*cθ2*cθ1, cθ3 * sθ2,
		sθ2 * sθ1, -sθ2 * cθ1, cθ2})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector.
func MxV33(m mat.Matrix, v r3.Vec) r3.Vec {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: rVec.AtVec(0), Y: rVec.AtVec(1), Z: rVec.AtVec(2)}
}

// PQW2ECI converts a perifocal vector to the inertial frame.
func PQW2ECI(i, ω, Ω float64, v r3.Vec) r3.Vec {
	return MxV33(R3R1R3(Ω, i, ω).T(), v)
}

// ECI2ECEF rotates an inertial vector into the body fixed frame for the
// sidereal angle θ in radians. Precession, nutation and polar motion are ignored.
func ECI2ECEF(v r3.Vec, θ float64) r3.Vec {
	return MxV33(R3(θ), v)
}

// ECEF2ECI is the inverse of ECI2ECEF.
func ECEF2ECI(v r3.Vec, θ float64) r3.Vec {
	return MxV33(R3(-θ), v)
}

// GEO2ECEF returns the body fixed position of a point at the provided geodetic
// altitude (km), latitude and longitude (radians) above the body's ellipsoid.
func GEO2ECEF(body CelestialObject, altitude, latitude, longitude float64) r3.Vec {
	sLong, cLong := math.Sincos(longitude)
	sLat, cLat := math.Sincos(latitude)
	e2 := body.Flattening * (2 - body.Flattening)
	N := body.Radius / math.Sqrt(1-e2*sLat*sLat)
	return r3.Vec{
		X: (N + altitude) * cLat * cLong,
		Y: (N + altitude) * cLat * sLong,
		Z: (N*(1-e2) + altitude) * sLat,
	}
}
