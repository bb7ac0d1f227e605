package integrator

import (
	"errors"
	"math"
)

// ErrNumericalInstability is returned when a step cannot be completed within
// the configured tolerance and retry budget, or when the state becomes non finite.
var ErrNumericalInstability = errors.New("numerical instability")

// Derivative returns dy/dt at time t, in seconds since the integration origin.
// It must not modify y and must return a new slice.
type Derivative func(t float64, y []float64) ([]float64, error)

// Step is the outcome of one accepted integration step.
type Step struct {
	Y           []float64 // State at t+H.
	H           float64   // Achieved span.
	Err         float64   // Normalized error estimate (zero for fixed-step schemes).
	Next        float64   // Suggested next step size.
	Rejected    int       // Number of rejected trials before acceptance.
	Evaluations int       // Number of derivative evaluations spent.
}

// Integrator advances a state vector.
// Implementations may keep step-size control state between calls and must
// therefore be owned by a single propagation.
type Integrator interface {
	// Advance performs one accepted step from (t, y), never going beyond span.
	Advance(f Derivative, t float64, y []float64, span float64) (Step, error)
	// Single performs exactly one step of size h without error control.
	// It is used as dense output within an accepted step.
	Single(f Derivative, t float64, y []float64, h float64) ([]float64, error)
}

// finite returns whether all components of y are finite.
func finite(y []float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
