package integrator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Fehlberg 7(8) tableau.
var (
	rk78c = [13]float64{0, 2.0 / 27, 1.0 / 9, 1.0 / 6, 5.0 / 12, 1.0 / 2, 5.0 / 6, 1.0 / 6, 2.0 / 3, 1.0 / 3, 1, 0, 1}
	rk78a = [13][]float64{
		{},
		{2.0 / 27},
		{1.0 / 36, 1.0 / 12},
		{1.0 / 24, 0, 1.0 / 8},
		{5.0 / 12, 0, -25.0 / 16, 25.0 / 16},
		{1.0 / 20, 0, 0, 1.0 / 4, 1.0 / 5},
		{-25.0 / 108, 0, 0, 125.0 / 108, -65.0 / 27, 125.0 / 54},
		{31.0 / 300, 0, 0, 0, 61.0 / 225, -2.0 / 9, 13.0 / 900},
		{2, 0, 0, -53.0 / 6, 704.0 / 45, -107.0 / 9, 67.0 / 90, 3},
		{-91.0 / 108, 0, 0, 23.0 / 108, -976.0 / 135, 311.0 / 54, -19.0 / 60, 17.0 / 6, -1.0 / 12},
		{2383.0 / 4100, 0, 0, -341.0 / 164, 4496.0 / 1025, -301.0 / 82, 2133.0 / 4100, 45.0 / 82, 45.0 / 164, 18.0 / 41},
		{3.0 / 205, 0, 0, 0, 0, -6.0 / 41, -3.0 / 205, -3.0 / 41, 3.0 / 41, 6.0 / 41, 0},
		{-1777.0 / 4100, 0, 0, -341.0 / 164, 4496.0 / 1025, -289.0 / 82, 2193.0 / 4100, 51.0 / 82, 33.0 / 164, 12.0 / 41, 0, 1},
	}
	// Eighth order weights; the solution is propagated with these.
	rk78b = [13]float64{0, 0, 0, 0, 0, 34.0 / 105, 9.0 / 35, 9.0 / 35, 9.0 / 280, 9.0 / 280, 0, 41.0 / 840, 41.0 / 840}
)

const (
	rk78Order      = 8
	rk78Safety     = 0.9
	rk78MinShrink  = 0.2
	rk78MaxGrowth  = 5.0
	rk78MinPrevErr = 1e-4
)

// RK78 is an adaptive embedded Runge Kutta Fehlberg 7(8) integrator with
// proportional-integral step size control.
type RK78 struct {
	MinStep, MaxStep float64   // Step bounds in seconds.
	AbsTol, RelTol   []float64 // One scale per component, or a single value for all.
	InitialStep      float64   // First trial step, defaults to sqrt(MinStep*MaxStep).
	MaxAttempts      int       // Trials allowed per accepted step.

	h       float64 // next trial step
	prevErr float64
}

// NewRK78 returns a new adaptive integrator.
func NewRK78(minStep, maxStep float64, absTol, relTol []float64) (*RK78, error) {
	if !(minStep > 0) || maxStep < minStep {
		return nil, fmt.Errorf("invalid step bounds [%f, %f]", minStep, maxStep)
	}
	if len(absTol) == 0 || len(relTol) == 0 {
		return nil, fmt.Errorf("tolerances may not be empty")
	}
	for _, v := range append(append([]float64{}, absTol...), relTol...) {
		if v < 0 {
			return nil, fmt.Errorf("tolerances may not be negative")
		}
	}
	return &RK78{MinStep: minStep, MaxStep: maxStep, AbsTol: absTol, RelTol: relTol, MaxAttempts: 50}, nil
}

// Reset forgets the step size history.
func (r *RK78) Reset() {
	r.h = 0
	r.prevErr = 0
}

// Advance implements the Integrator interface.
func (r *RK78) Advance(f Derivative, t float64, y []float64, span float64) (Step, error) {
	if !(span > 0) {
		return Step{}, fmt.Errorf("span must be positive, got %f", span)
	}
	if (len(r.AbsTol) != 1 && len(r.AbsTol) != len(y)) || (len(r.RelTol) != 1 && len(r.RelTol) != len(y)) {
		return Step{}, fmt.Errorf("tolerance vectors do not match state dimension %d", len(y))
	}
	h := r.h
	if h == 0 {
		h = r.InitialStep
		if h == 0 {
			h = math.Sqrt(r.MinStep * r.MaxStep)
		}
	}
	h = math.Max(r.MinStep, math.Min(h, r.MaxStep))
	if h > span {
		h = span
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 50
	}
	step := Step{}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		yn, errVec, err := r.trial(f, t, y, h)
		step.Evaluations += 13
		if err != nil {
			return step, err
		}
		errNorm := r.errorNorm(y, yn, errVec)
		if errNorm <= 1 {
			prev := r.prevErr
			if prev == 0 {
				prev = 1
			}
			fac := rk78MaxGrowth
			if errNorm > 0 {
				α := 0.7 / rk78Order
				β := 0.4 / rk78Order
				fac = rk78Safety * math.Pow(errNorm, -α) * math.Pow(prev, β)
			}
			fac = math.Max(rk78MinShrink, math.Min(fac, rk78MaxGrowth))
			if step.Rejected > 0 {
				fac = math.Min(fac, 1)
			}
			r.prevErr = math.Max(errNorm, rk78MinPrevErr)
			r.h = math.Max(r.MinStep, math.Min(h*fac, r.MaxStep))
			step.Y = yn
			step.H = h
			step.Err = errNorm
			step.Next = r.h
			return step, nil
		}
		if h <= r.MinStep {
			return step, fmt.Errorf("%w: error %.3g at minimum step %g s (t=%f)", ErrNumericalInstability, errNorm, r.MinStep, t)
		}
		fac := rk78MinShrink
		if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
			fac = math.Max(rk78MinShrink, rk78Safety*math.Pow(errNorm, -1.0/rk78Order))
		}
		h = math.Max(h*fac, r.MinStep)
		step.Rejected++
	}
	return step, fmt.Errorf("%w: no acceptable step after %d attempts (t=%f)", ErrNumericalInstability, maxAttempts, t)
}

// Single implements the Integrator interface.
func (r *RK78) Single(f Derivative, t float64, y []float64, h float64) ([]float64, error) {
	yn, _, err := r.trial(f, t, y, h)
	return yn, err
}

// trial computes one Fehlberg step and the embedded error vector.
func (r *RK78) trial(f Derivative, t float64, y []float64, h float64) (yn, errVec []float64, err error) {
	n := len(y)
	var k [13][]float64
	tmp := make([]float64, n)
	for s := 0; s < 13; s++ {
		copy(tmp, y)
		for j, a := range rk78a[s] {
			if a != 0 {
				floats.AddScaled(tmp, h*a, k[j])
			}
		}
		if k[s], err = f(t+rk78c[s]*h, tmp); err != nil {
			return nil, nil, err
		}
	}
	yn = make([]float64, n)
	copy(yn, y)
	for s, b := range rk78b {
		if b != 0 {
			floats.AddScaled(yn, h*b, k[s])
		}
	}
	// The seventh and eighth order solutions differ by 41/840 (k0 + k10 - k11 - k12).
	errVec = make([]float64, n)
	for i := range errVec {
		errVec[i] = h * 41.0 / 840 * (k[0][i] + k[10][i] - k[11][i] - k[12][i])
	}
	if !finite(yn) {
		// Let the controller shrink the step.
		for i := range errVec {
			errVec[i] = math.Inf(1)
		}
	}
	return yn, errVec, nil
}

// errorNorm is the RMS of the error scaled by the mixed tolerance.
func (r *RK78) errorNorm(y, yn, errVec []float64) float64 {
	var sum float64
	for i := range y {
		abs := r.AbsTol[0]
		if len(r.AbsTol) > 1 {
			abs = r.AbsTol[i]
		}
		rel := r.RelTol[0]
		if len(r.RelTol) > 1 {
			rel = r.RelTol[i]
		}
		sc := abs + rel*math.Max(math.Abs(y[i]), math.Abs(yn[i]))
		if sc == 0 {
			sc = math.SmallestNonzeroFloat64
		}
		e := errVec[i] / sc
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(y)))
}
