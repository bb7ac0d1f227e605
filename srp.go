package orbprop

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SolarPressure is the solar radiation pressure at 1 AU in N/m^2.
const SolarPressure = 4.56e-6

// ShadowFunction returns the fraction of the solar disk visible from r
// (1 in sunlight, 0 in umbra), using the conical model of Montenbruck and Gill.
// All positions are relative to the occulting body of radius bodyRadius.
func ShadowFunction(r, sun r3.Vec, bodyRadius float64) float64 {
	toSun := r3.Sub(sun, r)
	dSun := r3.Norm(toSun)
	rN := r3.Norm(r)
	a := math.Asin(clamp(Sun.Radius/dSun, -1, 1))
	b := math.Asin(clamp(bodyRadius/rN, -1, 1))
	c := math.Acos(clamp(-r3.Dot(r, toSun)/(rN*dSun), -1, 1))
	switch {
	case c >= a+b:
		return 1
	case c < b-a:
		return 0
	case c < a-b:
		// Annular: the body is fully inside the solar disk.
		return 1 - b*b/(a*a)
	}
	x := (c*c + a*a - b*b) / (2 * c)
	y := math.Sqrt(math.Max(a*a-x*x, 0))
	area := a*a*math.Acos(clamp(x/a, -1, 1)) + b*b*math.Acos(clamp((c-x)/b, -1, 1)) - c*y
	return 1 - area/(math.Pi*a*a)
}

// SolarRadiationPressure is the cannonball radiation pressure with eclipses.
type SolarRadiationPressure struct {
	Cr   float64 // reflectivity coefficient
	Area float64 // m^2
}

// Name implements ForceModel.
func (p SolarRadiationPressure) Name() string { return "srp" }

// Acceleration implements ForceModel.
func (p SolarRadiationPressure) Acceleration(s State) (r3.Vec, error) {
	sun := SunPosition(s.Epoch)
	ν := ShadowFunction(s.R, sun, s.Origin.Radius)
	if ν == 0 {
		return r3.Vec{}, nil
	}
	fromSun := r3.Sub(s.R, sun)
	d := r3.Norm(fromSun)
	// N/m^2 * m^2/kg is m/s^2.
	k := ν * SolarPressure * p.Cr * p.Area / s.Mass * (AU / d) * (AU / d) * 1e-3
	return r3.Scale(k/d, fromSun), nil
}
