package integrator

import (
	"fmt"
)

// RK4 defines a fixed step classical Runge Kutta integrator.
type RK4 struct {
	StepSize float64 // The step size in seconds.
}

// NewRK4 returns a new RK4 integrator instance.
func NewRK4(stepSize float64) (*RK4, error) {
	if !(stepSize > 0) {
		return nil, fmt.Errorf("step size must be positive, got %f", stepSize)
	}
	return &RK4{StepSize: stepSize}, nil
}

// NewRK4FromPeriod returns an RK4 whose step is the provided fraction of the period.
func NewRK4FromPeriod(period, fraction float64) (*RK4, error) {
	return NewRK4(period * fraction)
}

// Advance implements the Integrator interface.
// The last step of a span is shortened to land exactly on it.
func (r *RK4) Advance(f Derivative, t float64, y []float64, span float64) (Step, error) {
	if !(span > 0) {
		return Step{}, fmt.Errorf("span must be positive, got %f", span)
	}
	h := r.StepSize
	if span < h {
		h = span
	}
	yn, err := r.Single(f, t, y, h)
	if err != nil {
		return Step{}, err
	}
	return Step{Y: yn, H: h, Next: r.StepSize, Evaluations: 4}, nil
}

// Single implements the Integrator interface.
func (r *RK4) Single(f Derivative, t float64, y []float64, h float64) ([]float64, error) {
	const (
		half     = 1 / 2.0
		oneSixth = 1 / 6.0
		oneThird = 1 / 3.0
	)
	n := len(y)
	k1 := make([]float64, n)
	//k2, k3, k4 are used as buffers AND result variables.
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	tState := make([]float64, n)
	newState := make([]float64, n)

	d, err := f(t, y)
	if err != nil {
		return nil, err
	}
	for i, v := range d {
		k1[i] = v * h
		tState[i] = y[i] + k1[i]*half
	}
	if d, err = f(t+h*half, tState); err != nil {
		return nil, err
	}
	for i, v := range d {
		k2[i] = v * h
		tState[i] = y[i] + k2[i]*half
	}
	if d, err = f(t+h*half, tState); err != nil {
		return nil, err
	}
	for i, v := range d {
		k3[i] = v * h
		tState[i] = y[i] + k3[i]
	}
	if d, err = f(t+h, tState); err != nil {
		return nil, err
	}
	for i, v := range d {
		k4[i] = v * h
		newState[i] = y[i] + oneSixth*(k1[i]+k4[i]) + oneThird*(k2[i]+k3[i])
	}
	if !finite(newState) {
		return nil, fmt.Errorf("%w: non finite state at t=%f", ErrNumericalInstability, t+h)
	}
	return newState, nil
}
