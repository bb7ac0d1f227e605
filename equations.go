package orbprop

import (
	"math"

	"github.com/ChristopherRabotin/orbprop/integrator"
	"gonum.org/v1/gonum/spatial/r3"
)

// equations binds a state representation to the integrator.
// Time is in seconds since the propagation start.
type equations interface {
	initial() []float64
	derivative(t float64, y []float64) ([]float64, error)
	// state returns the output state of the integration vector.
	state(t float64, y []float64) (State, error)
}

// cartesian integrates [r v] under two body plus the force models.
type cartesian struct {
	s0     State
	forces []ForceModel
}

func (c *cartesian) initial() []float64 {
	return c.s0.Vector()
}

func (c *cartesian) derivative(t float64, y []float64) ([]float64, error) {
	R := r3.Vec{X: y[0], Y: y[1], Z: y[2]}
	V := r3.Vec{X: y[3], Y: y[4], Z: y[5]}
	if !(r3.Norm(R) > 0) {
		return nil, integrator.ErrNumericalInstability
	}
	acc, err := SumAccelerations(c.s0.WithRV(c.s0.Epoch.Shift(t), R, V), c.forces)
	if err != nil {
		return nil, err
	}
	acc = r3.Add(acc, twoBody(R, c.s0.Origin.μ))
	return []float64{V.X, V.Y, V.Z, acc.X, acc.Y, acc.Z}, nil
}

func (c *cartesian) state(t float64, y []float64) (State, error) {
	return c.s0.WithRV(c.s0.Epoch.Shift(t), vecFromSlice(y[:3]), vecFromSlice(y[3:])), nil
}

// meanEquations integrates the mean Keplerian elements.
type meanEquations struct {
	s0     State
	m0     MeanElements
	model  *meanModel
	output OutputType
}

func (me *meanEquations) initial() []float64 {
	return me.m0.vector()
}

func (me *meanEquations) derivative(t float64, y []float64) ([]float64, error) {
	rates, err := me.model.rates(meanElementsFromVector(y), me.s0.Epoch.Shift(t))
	if err != nil {
		return nil, err
	}
	return rates[:], nil
}

func (me *meanEquations) state(t float64, y []float64) (State, error) {
	m := meanElementsFromVector(y)
	if err := checkMeanDomain(m); err != nil {
		return State{}, err
	}
	epoch := me.s0.Epoch.Shift(t)
	el := m.Elements()
	if me.output == OutputOsculating {
		var err error
		if el, err = me.model.osculating(m, epoch); err != nil {
			return State{}, err
		}
	}
	R, V := el.RV(me.s0.Origin.μ)
	if math.IsNaN(R.X) || math.IsNaN(V.X) {
		return State{}, integrator.ErrNumericalInstability
	}
	return me.s0.WithRV(epoch, R, V), nil
}
