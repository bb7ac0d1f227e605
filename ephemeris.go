package orbprop

import (
	"fmt"
	"sort"
)

// Ephemeris is a bounded, queryable trajectory built from the accepted steps of one run.
// Queries between breakpoints use cubic Hermite interpolation of the integration
// vector and its derivative; queries at a breakpoint return the stored state.
type Ephemeris struct {
	start   Epoch
	times   []float64 // seconds since start, strictly increasing
	ys      [][]float64
	ydots   [][]float64
	states  []State
	convert func(t float64, y []float64) (State, error)
}

func newEphemeris(start Epoch, convert func(t float64, y []float64) (State, error)) *Ephemeris {
	return &Ephemeris{start: start, convert: convert}
}

// add appends a breakpoint. Breakpoints at an already recorded time are ignored.
func (e *Ephemeris) add(t float64, y, ydot []float64, s State) {
	if n := len(e.times); n > 0 && t <= e.times[n-1] {
		return
	}
	e.times = append(e.times, t)
	e.ys = append(e.ys, append([]float64(nil), y...))
	e.ydots = append(e.ydots, append([]float64(nil), ydot...))
	e.states = append(e.states, s)
}

// Min returns the first epoch covered.
func (e *Ephemeris) Min() Epoch {
	return e.states[0].Epoch
}

// Max returns the last epoch covered.
func (e *Ephemeris) Max() Epoch {
	return e.states[len(e.states)-1].Epoch
}

// Len returns the number of breakpoints.
func (e *Ephemeris) Len() int {
	return len(e.times)
}

// Breakpoints returns the epochs of the stored states.
func (e *Ephemeris) Breakpoints() []Epoch {
	out := make([]Epoch, len(e.states))
	for i, s := range e.states {
		out[i] = s.Epoch
	}
	return out
}

// At returns the state at the requested epoch.
func (e *Ephemeris) At(epoch Epoch) (State, error) {
	if len(e.states) == 0 || epoch.Before(e.Min()) || epoch.After(e.Max()) {
		return State{}, fmt.Errorf("%w: %s not in ephemeris range", ErrOutOfRange, epoch)
	}
	// Exact breakpoint match first.
	idx := sort.Search(len(e.states), func(i int) bool { return !e.states[i].Epoch.Before(epoch) })
	if idx < len(e.states) && e.states[idx].Epoch.Equal(epoch) {
		return e.states[idx], nil
	}
	// idx > 0 since epoch is after Min.
	k := idx - 1
	t := epoch.Sub(e.start)
	t0, t1 := e.times[k], e.times[k+1]
	h := t1 - t0
	τ := (t - t0) / h
	τ2 := τ * τ
	τ3 := τ2 * τ
	h00 := 2*τ3 - 3*τ2 + 1
	h10 := τ3 - 2*τ2 + τ
	h01 := -2*τ3 + 3*τ2
	h11 := τ3 - τ2
	y := make([]float64, len(e.ys[k]))
	for i := range y {
		y[i] = h00*e.ys[k][i] + h10*h*e.ydots[k][i] + h01*e.ys[k+1][i] + h11*h*e.ydots[k+1][i]
	}
	s, err := e.convert(t, y)
	if err != nil {
		return State{}, err
	}
	s.Epoch = epoch
	return s, nil
}
