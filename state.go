package orbprop

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is a spacecraft state at an epoch, in an inertial frame centered on Origin.
// States are values: every change produces a new State.
type State struct {
	Epoch  Epoch
	R, V   r3.Vec  // km and km/s
	Mass   float64 // kg
	Origin CelestialObject
}

// NewState returns a state from its Cartesian components.
func NewState(epoch Epoch, R, V r3.Vec, mass float64, origin CelestialObject) State {
	return State{Epoch: epoch, R: R, V: V, Mass: mass, Origin: origin}
}

// NewStateFromElements returns the Cartesian state of the provided elements.
func NewStateFromElements(epoch Epoch, el Elements, mass float64, origin CelestialObject) State {
	R, V := el.RV(origin.μ)
	return State{Epoch: epoch, R: R, V: V, Mass: mass, Origin: origin}
}

// Elements returns the osculating Keplerian elements.
func (s State) Elements() Elements {
	return NewElementsFromRV(s.R, s.V, s.Origin.μ)
}

// WithRV returns a copy at another epoch and position/velocity.
func (s State) WithRV(epoch Epoch, R, V r3.Vec) State {
	s.Epoch = epoch
	s.R = R
	s.V = V
	return s
}

// Vector returns the position and velocity as a 6 component slice.
func (s State) Vector() []float64 {
	return []float64{s.R.X, s.R.Y, s.R.Z, s.V.X, s.V.Y, s.V.Z}
}

// Altitude returns the geodetic altitude above the origin's ellipsoid.
func (s State) Altitude() float64 {
	return s.Origin.Altitude(s.R)
}

func (s State) String() string {
	return fmt.Sprintf("%s R=[%.3f %.3f %.3f] V=[%.6f %.6f %.6f] m=%.3f", s.Epoch, s.R.X, s.R.Y, s.R.Z, s.V.X, s.V.Y, s.V.Z, s.Mass)
}
