package orbprop

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ForceModel computes a perturbing acceleration. The central body attraction
// is always applied by the propagator and is not a ForceModel.
// Implementations must be pure: they may be queried at any epoch, in any order,
// and concurrently from independent propagations.
type ForceModel interface {
	Name() string
	// Acceleration returns the acceleration in km/s^2 at s.Epoch.
	Acceleration(s State) (r3.Vec, error)
}

// ElementRates are time derivatives of the Keplerian mean elements [a e i Ω ω M], per second.
type ElementRates [6]float64

// MeanElementRater is implemented by force models providing closed-form secular
// rates for the semi-analytical mode. Models which do not implement it are
// averaged numerically over one revolution of mean anomaly.
type MeanElementRater interface {
	ForceModel
	MeanElementRates(m MeanElements, epoch Epoch, mass float64, origin CelestialObject) (ElementRates, error)
}

// twoBody returns the central body acceleration.
func twoBody(R r3.Vec, μ float64) r3.Vec {
	r := r3.Norm(R)
	return r3.Scale(-μ/(r*r*r), R)
}

// SumAccelerations adds the contribution of each model in order.
func SumAccelerations(s State, forces []ForceModel) (r3.Vec, error) {
	var acc r3.Vec
	for _, f := range forces {
		a, err := f.Acceleration(s)
		if err != nil {
			return r3.Vec{}, err
		}
		acc = r3.Add(acc, a)
	}
	return acc, nil
}

// SecularJ2 is the J2 zonal term with closed-form secular rates.
type SecularJ2 struct {
	Body CelestialObject
}

// Name implements ForceModel.
func (j SecularJ2) Name() string { return "J2" }

// Acceleration implements ForceModel.
func (j SecularJ2) Acceleration(s State) (r3.Vec, error) {
	R := s.R
	r := r3.Norm(R)
	z2 := R.Z * R.Z
	r5 := math.Pow(r, 5)
	r7 := r5 * r * r
	accJ2 := 1.5 * j.Body.J2 * j.Body.Radius * j.Body.Radius * j.Body.μ
	return r3.Vec{
		X: accJ2 * (5*R.X*z2/r7 - R.X/r5),
		Y: accJ2 * (5*R.Y*z2/r7 - R.Y/r5),
		Z: accJ2 * (5*R.Z*z2/r7 - 3*R.Z/r5),
	}, nil
}

// MeanElementRates implements MeanElementRater (first order secular terms).
func (j SecularJ2) MeanElementRates(m MeanElements, epoch Epoch, mass float64, origin CelestialObject) (ElementRates, error) {
	n := math.Sqrt(j.Body.μ / math.Pow(m.A, 3))
	p := m.A * (1 - m.E*m.E)
	k := n * j.Body.J2 * math.Pow(j.Body.Radius/p, 2)
	cosi := math.Cos(m.I)
	return ElementRates{
		0, 0, 0,
		-1.5 * k * cosi,
		0.75 * k * (5*cosi*cosi - 1),
		0.75 * k * math.Sqrt(1-m.E*m.E) * (3*cosi*cosi - 1),
	}, nil
}

// NodalRegressionRate returns the first order J2 secular RAAN rate in rad/s.
func NodalRegressionRate(body CelestialObject, a, e, i float64) float64 {
	rates, _ := SecularJ2{body}.MeanElementRates(MeanElements{A: a, E: e, I: i}, Epoch{}, 0, body)
	return rates[3]
}
