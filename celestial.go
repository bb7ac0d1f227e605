package orbprop

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// CelestialObject defines a central or perturbing body.
type CelestialObject struct {
	Name         string
	Radius       float64 // Equatorial radius in km
	Flattening   float64 // Reference ellipsoid flattening
	μ            float64
	J2           float64 // Unnormalized second zonal harmonic
	RotationRate float64 // rad/s
}

// Earth is home.
var Earth = CelestialObject{"Earth", 6378.1363, 1 / 298.257223563, 3.986004415e5, 1.08262668355e-3, EarthRotationRate}

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700, 0, 1.32712440018e11, 2e-7, 2.865329e-6}

// Moon is the Earth's natural satellite.
var Moon = CelestialObject{"Moon", 1737.4, 0, 4902.800066, 2.0323e-4, 2.6616995e-6}

// NewCelestialObject returns a body from its constants (km, km^3/s^2, rad/s).
func NewCelestialObject(name string, radius, flattening, gm, j2, rotationRate float64) CelestialObject {
	return CelestialObject{name, radius, flattening, gm, j2, rotationRate}
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.μ == b.μ && c.J2 == b.J2
}

// Altitude returns the geodetic altitude in km of a body fixed or inertial
// position above the reference ellipsoid. The ellipsoid is axis symmetric so
// the frame rotation about Z does not matter.
func (c CelestialObject) Altitude(r r3.Vec) float64 {
	if c.Flattening == 0 {
		return r3.Norm(r) - c.Radius
	}
	e2 := c.Flattening * (2 - c.Flattening)
	p := math.Hypot(r.X, r.Y)
	φ := math.Atan2(r.Z, p*(1-e2))
	var N float64
	for k := 0; k < 6; k++ {
		sφ := math.Sin(φ)
		N = c.Radius / math.Sqrt(1-e2*sφ*sφ)
		φ = math.Atan2(r.Z+e2*N*sφ, p)
	}
	sφ, cφ := math.Sincos(φ)
	N = c.Radius / math.Sqrt(1-e2*sφ*sφ)
	return p*cφ + r.Z*sφ - c.Radius*c.Radius/N
}

// CelestialObjectFromString returns the object from its name.
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "earth":
		return Earth, nil
	case "sun":
		return Sun, nil
	case "moon":
		return Moon, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined body '%s'", name)
	}
}
