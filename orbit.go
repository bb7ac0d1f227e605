package orbprop

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	eccentricityε = 1e-11
	angleε        = 1e-11
	distanceε     = 2e1 // 20 km
	keplerε       = 1e-14
)

// Elements are the classical Keplerian elements (km and radians).
// For circular orbits ArgPeri is zero and TrueAnom is the argument of latitude;
// for equatorial orbits RAAN is zero and ArgPeri is the longitude of periapsis.
type Elements struct {
	A, E, I, RAAN, ArgPeri, TrueAnom float64
}

// NewElementsFromOE creates elements from the orbital elements in degrees.
func NewElementsFromOE(a, e, i, Ω, ω, ν float64) Elements {
	return Elements{a, e, i * deg2rad, Deg2rad(Ω), Deg2rad(ω), Deg2rad(ν)}
}

// NewElementsFromRV returns orbital elements from the R and V vectors.
// From Vallado's RV2COE, page 113, with quadrant safe angles.
func NewElementsFromRV(R, V r3.Vec, μ float64) Elements {
	hVec := r3.Cross(R, V)
	n := r3.Vec{X: -hVec.Y, Y: hVec.X} // k × h
	v := r3.Norm(V)
	r := r3.Norm(R)
	ξ := (v*v)/2 - μ/r
	a := -μ / (2 * ξ)
	eVec := r3.Scale(1/μ, r3.Sub(r3.Scale(v*v-μ/r, R), r3.Scale(r3.Dot(R, V), V)))
	e := r3.Norm(eVec)
	h := r3.Norm(hVec)
	hHat := r3.Scale(1/h, hVec)
	i := math.Acos(clamp(hVec.Z/h, -1, 1))

	// angle returns the angle from u to w measured positively about the angular momentum.
	angle := func(u, w r3.Vec) float64 {
		return NormalizeAngle(math.Atan2(r3.Dot(r3.Cross(u, w), hHat), r3.Dot(u, w)))
	}
	circular := e < eccentricityε
	equatorial := r3.Norm(n) < angleε*h
	xHat := r3.Vec{X: 1}
	var Ω, ω, ν float64
	switch {
	case circular && equatorial:
		ν = angle(xHat, R)
	case circular:
		Ω = NormalizeAngle(math.Atan2(n.Y, n.X))
		ν = angle(n, R)
	case equatorial:
		ω = angle(xHat, eVec)
		ν = angle(eVec, R)
	default:
		Ω = NormalizeAngle(math.Atan2(n.Y, n.X))
		ω = angle(n, eVec)
		ν = angle(eVec, R)
	}
	return Elements{a, e, i, Ω, ω, ν}
}

// RV returns the inertial position and velocity.
func (o Elements) RV(μ float64) (R, V r3.Vec) {
	p := o.SemiParameter()
	sinν, cosν := math.Sincos(o.TrueAnom)
	R = r3.Vec{X: p * cosν / (1 + o.E*cosν), Y: p * sinν / (1 + o.E*cosν)}
	vScale := math.Sqrt(μ / p)
	V = r3.Vec{X: -vScale * sinν, Y: vScale * (o.E + cosν)}
	return PQW2ECI(o.I, o.ArgPeri, o.RAAN, R), PQW2ECI(o.I, o.ArgPeri, o.RAAN, V)
}

// SemiParameter returns the semi latus rectum.
func (o Elements) SemiParameter() float64 {
	return o.A * (1 - o.E*o.E)
}

// Apoapsis returns the apoapsis radius.
func (o Elements) Apoapsis() float64 {
	return o.A * (1 + o.E)
}

// Periapsis returns the periapsis radius.
func (o Elements) Periapsis() float64 {
	return o.A * (1 - o.E)
}

// MeanMotion returns the Keplerian mean motion in rad/s.
func (o Elements) MeanMotion(μ float64) float64 {
	return math.Sqrt(μ / math.Pow(math.Abs(o.A), 3))
}

// Period returns the period of this orbit in seconds.
func (o Elements) Period(μ float64) float64 {
	return twoPi / o.MeanMotion(μ)
}

// MeanAnomaly returns the mean anomaly, normalized for closed orbits.
func (o Elements) MeanAnomaly() float64 {
	return MeanFromTrue(o.TrueAnom, o.E)
}

// Normalized returns the elements with I in [0, π] and the other angles in [0, 2π).
func (o Elements) Normalized() Elements {
	o.I = clamp(o.I, 0, math.Pi)
	o.RAAN = NormalizeAngle(o.RAAN)
	o.ArgPeri = NormalizeAngle(o.ArgPeri)
	o.TrueAnom = NormalizeAngle(o.TrueAnom)
	return o
}

// String implements the stringer interface (hence the value receiver)
func (o Elements) String() string {
	return fmt.Sprintf("a=%.3f e=%.6f i=%.4f Ω=%.4f ω=%.4f ν=%.4f", o.A, o.E, Rad2deg(o.I), Rad2deg(o.RAAN), Rad2deg(o.ArgPeri), Rad2deg(o.TrueAnom))
}

// Equals returns whether two orbits are identical with free true anomaly,
// within 20 km and the provided angle tolerance in radians.
func (o Elements) Equals(o1 Elements, angleTol float64) (bool, error) {
	if !scalar.EqualWithinAbs(o.A, o1.A, distanceε) {
		return false, errors.New("semi major axis invalid")
	}
	if !scalar.EqualWithinAbs(o.E, o1.E, 5e-5) {
		return false, errors.New("eccentricity invalid")
	}
	if !scalar.EqualWithinAbs(o.I, o1.I, angleTol) {
		return false, errors.New("inclination invalid")
	}
	if !anglesEqual(o.RAAN, o1.RAAN, angleTol) {
		return false, errors.New("RAAN invalid")
	}
	if !anglesEqual(o.ArgPeri, o1.ArgPeri, angleTol) {
		return false, errors.New("argument of perigee invalid")
	}
	return true, nil
}

// anglesEqual compares two angles modulo 2π.
func anglesEqual(a, b, tol float64) bool {
	d := NormalizeAngle(a - b)
	return d <= tol || twoPi-d <= tol
}

// MeanFromTrue converts a true anomaly into a mean anomaly.
// Closed orbits return a value in [0, 2π); hyperbolic ones are not wrapped.
func MeanFromTrue(ν, e float64) float64 {
	if e < 1 {
		sinν, cosν := math.Sincos(ν)
		E := math.Atan2(math.Sqrt(1-e*e)*sinν, e+cosν)
		return NormalizeAngle(E - e*math.Sin(E))
	}
	H := 2 * math.Atanh(math.Sqrt((e-1)/(e+1))*math.Tan(ν/2))
	return e*math.Sinh(H) - H
}

// TrueFromMean solves Kepler's equation for closed orbits and returns the true anomaly in [0, 2π).
func TrueFromMean(M, e float64) float64 {
	E := EccentricFromMean(M, e)
	sinE, cosE := math.Sincos(E)
	return NormalizeAngle(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e))
}

// EccentricFromMean solves Kepler's equation with Newton iterations.
func EccentricFromMean(M, e float64) float64 {
	M = NormalizeAngle(M)
	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for iter := 0; iter < 50; iter++ {
		sinE, cosE := math.Sincos(E)
		δ := (E - e*sinE - M) / (1 - e*cosE)
		E -= δ
		if math.Abs(δ) < keplerε {
			break
		}
	}
	return E
}

// Radii2ae returns the semi major axis and the eccentricty from the radii.
func Radii2ae(rA, rP float64) (a, e float64, err error) {
	if rA < rP {
		return 0, 0, errors.New("periapsis cannot be greater than apoapsis")
	}
	a = (rP + rA) / 2
	e = (rA - rP) / (rA + rP)
	return
}
