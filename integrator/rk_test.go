package integrator

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func decay(t float64, y []float64) ([]float64, error) {
	return []float64{-y[0]}, nil
}

func oscillator(t float64, y []float64) ([]float64, error) {
	return []float64{y[1], -y[0]}, nil
}

func integrate(t *testing.T, in Integrator, f Derivative, y0 []float64, span float64) ([]float64, int) {
	y := y0
	tc := 0.0
	steps := 0
	for span-tc > 1e-12 {
		step, err := in.Advance(f, tc, y, span-tc)
		if err != nil {
			t.Fatalf("advance failed at t=%f: %s", tc, err)
		}
		tc += step.H
		y = step.Y
		steps++
		if steps > 1e6 {
			t.Fatal("too many steps")
		}
	}
	return y, steps
}

func TestRK4Decay(t *testing.T) {
	rk, err := NewRK4(0.1)
	if err != nil {
		t.Fatal(err)
	}
	y, steps := integrate(t, rk, decay, []float64{1}, 1)
	if steps != 10 {
		t.Fatalf("expected 10 steps, got %d", steps)
	}
	if !scalar.EqualWithinAbs(y[0], math.Exp(-1), 1e-6) {
		t.Fatalf("y(1)=%.12f expected %.12f", y[0], math.Exp(-1))
	}
}

func TestRK4ShortensLastStep(t *testing.T) {
	rk, _ := NewRK4(0.3)
	step, err := rk.Advance(decay, 0, []float64{1}, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if step.H != 0.25 {
		t.Fatalf("achieved span %f instead of 0.25", step.H)
	}
	if step.Next != 0.3 {
		t.Fatalf("next step %f instead of 0.3", step.Next)
	}
}

func TestRK4InvalidStep(t *testing.T) {
	for _, h := range []float64{0, -1, math.NaN()} {
		if _, err := NewRK4(h); err == nil {
			t.Fatalf("step %f accepted", h)
		}
	}
}

func TestRK78Oscillator(t *testing.T) {
	rk, err := NewRK78(1e-6, 10, []float64{1e-12}, []float64{1e-12})
	if err != nil {
		t.Fatal(err)
	}
	span := 4 * math.Pi
	y, steps := integrate(t, rk, oscillator, []float64{1, 0}, span)
	if !floats.EqualApprox(y, []float64{1, 0}, 1e-9) {
		t.Fatalf("oscillator did not close: %v", y)
	}
	t.Logf("%d adaptive steps", steps)
}

func TestRK78ErrorEstimateGrowsStep(t *testing.T) {
	rk, _ := NewRK78(1e-3, 100, []float64{1e-8}, []float64{1e-8})
	rk.InitialStep = 1e-3
	first, err := rk.Advance(decay, 0, []float64{1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if first.Err > 1 {
		t.Fatalf("accepted step with error %f", first.Err)
	}
	if first.Next <= first.H {
		t.Fatalf("smooth problem should grow the step: h=%g next=%g", first.H, first.Next)
	}
}

func TestRK78Reset(t *testing.T) {
	rk, _ := NewRK78(1e-3, 100, []float64{1e-8}, []float64{1e-8})
	rk.InitialStep = 1e-3
	first, err := rk.Advance(decay, 0, []float64{1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if second, _ := rk.Advance(decay, 0, []float64{1}, 10); second.H == first.H {
		t.Fatal("step size history should carry over")
	}
	rk.Reset()
	again, err := rk.Advance(decay, 0, []float64{1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if again.H != first.H || !floats.Equal(again.Y, first.Y) {
		t.Fatalf("reset integrator took h=%g instead of %g", again.H, first.H)
	}
}

func TestRK78Instability(t *testing.T) {
	blowup := func(t float64, y []float64) ([]float64, error) {
		return []float64{y[0] * y[0]}, nil
	}
	rk, _ := NewRK78(1e-4, 1, []float64{1e-10}, []float64{1e-10})
	y := []float64{1}
	tc := 0.0
	for i := 0; i < 1e6; i++ {
		step, err := rk.Advance(blowup, tc, y, 2-tc)
		if err != nil {
			if !errors.Is(err, ErrNumericalInstability) {
				t.Fatalf("unexpected error: %s", err)
			}
			if tc > 1 {
				t.Fatalf("integrated past the singularity to t=%f", tc)
			}
			return
		}
		tc += step.H
		y = step.Y
	}
	t.Fatal("blow up was never detected")
}

func TestRK78ToleranceDimension(t *testing.T) {
	rk, _ := NewRK78(1e-3, 1, []float64{1, 1, 1}, []float64{1e-6})
	if _, err := rk.Advance(oscillator, 0, []float64{1, 0}, 1); err == nil {
		t.Fatal("mismatched tolerance dimension accepted")
	}
}

func TestSingleMatchesAdvance(t *testing.T) {
	rk, _ := NewRK4(0.5)
	step, _ := rk.Advance(oscillator, 0, []float64{1, 0}, 10)
	single, err := rk.Single(oscillator, 0, []float64{1, 0}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(step.Y, single) {
		t.Fatalf("%v != %v", step.Y, single)
	}
}
