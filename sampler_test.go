package orbprop

import (
	"errors"
	"math"
	"testing"
)

// keplerSteps is a StepInterpolator on an analytic Keplerian arc.
type keplerSteps struct {
	s0     State
	t0, t1 float64
	calls  int
}

func (k *keplerSteps) Span() (float64, float64) { return k.t0, k.t1 }

func (k *keplerSteps) StateAt(t float64) (State, error) {
	k.calls++
	if t < k.t0 || t > k.t1 {
		return State{}, errors.New("outside of step")
	}
	el := k.s0.Elements()
	el.TrueAnom = TrueFromMean(el.MeanAnomaly()+el.MeanMotion(Earth.μ)*t, el.E)
	R, V := el.RV(Earth.μ)
	return k.s0.WithRV(k.s0.Epoch.Shift(t), R, V), nil
}

func runSteps(t *testing.T, m *Multiplexer, s0 State, bounds []float64) {
	if err := m.Init(s0, s0.Epoch.Shift(bounds[len(bounds)-1])); err != nil {
		t.Fatal(err)
	}
	step := &keplerSteps{s0: s0}
	for i := 1; i < len(bounds); i++ {
		step.t0, step.t1 = bounds[i-1], bounds[i]
		if err := m.HandleStep(step); err != nil {
			t.Fatal(err)
		}
	}
	last, _ := step.StateAt(step.t1)
	m.Finish(last)
}

func TestSampleCount(t *testing.T) {
	s := leoState()
	for _, tc := range []struct {
		cadence float64
		bounds  []float64
	}{
		{10, []float64{0, 7, 19.5, 33.3, 60, 61, 99.99, 100}},
		{10, []float64{0, 95}},
		{7, []float64{0, 3, 3.5, 50, 77}},
		{60, []float64{0, 30}},
		{0.5, []float64{0, 0.1, 0.2, 12.25}},
	} {
		m := &Multiplexer{}
		log := NewSampleLog()
		if err := m.Add(tc.cadence, log); err != nil {
			t.Fatal(err)
		}
		runSteps(t, m, s, tc.bounds)
		T := tc.bounds[len(tc.bounds)-1]
		want := int(math.Floor(T/tc.cadence)) + 1
		if log.Len() != want {
			t.Fatalf("cadence %f over %f s: expected %d samples, got %d", tc.cadence, T, want, log.Len())
		}
		for i, smp := range log.Samples() {
			if smp.Elapsed != float64(i)*tc.cadence {
				t.Fatalf("sample %d at +%f instead of +%f", i, smp.Elapsed, float64(i)*tc.cadence)
			}
			if got := smp.Epoch.Sub(s.Epoch); math.Abs(got-smp.Elapsed) > 1e-6 {
				t.Fatalf("sample %d at epoch +%f", i, got)
			}
		}
	}
}

func TestSamplesOnBoundaries(t *testing.T) {
	// A boundary within rounding of the step end is emitted exactly once.
	s := leoState()
	m := &Multiplexer{}
	log := NewSampleLog()
	if err := m.Add(0.1, log); err != nil {
		t.Fatal(err)
	}
	bounds := []float64{0}
	for i := 0; i < 30; i++ {
		bounds = append(bounds, bounds[i]+0.1)
	}
	runSteps(t, m, s, bounds)
	if log.Len() != 31 {
		t.Fatalf("expected 31 samples, got %d", log.Len())
	}
}

func TestNoSampleAfterStepEnd(t *testing.T) {
	s := leoState()
	m := &Multiplexer{}
	log := NewSampleLog()
	if err := m.Add(1e6, log); err != nil {
		t.Fatal(err)
	}
	T := 1e7 - 0.005
	runSteps(t, m, s, []float64{0, T})
	if log.Len() != int(math.Floor(T/1e6))+1 {
		t.Fatalf("expected %d samples, got %d", int(math.Floor(T/1e6))+1, log.Len())
	}
	for _, smp := range log.Samples() {
		if smp.Elapsed > T {
			t.Fatalf("sample at +%f after the end at +%f", smp.Elapsed, T)
		}
		if got := smp.Epoch.Sub(s.Epoch); math.Abs(got-smp.Elapsed) > 1e-6 {
			t.Fatalf("sample labelled +%f at epoch +%f", smp.Elapsed, got)
		}
	}
}

func TestMultiplexerCadences(t *testing.T) {
	s := leoState()
	m := &Multiplexer{}
	fine, coarse := NewSampleLog(), NewSampleLog()
	if err := m.Add(5, fine); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(50, coarse); err != nil {
		t.Fatal(err)
	}
	counter := &stepCounter{}
	m.AddStepHandler(counter)
	runSteps(t, m, s, []float64{0, 40, 80, 120, 160, 200})
	if fine.Len() != 41 || coarse.Len() != 5 {
		t.Fatalf("got %d and %d samples", fine.Len(), coarse.Len())
	}
	if counter.init != 1 || counter.steps != 5 || counter.finish != 1 {
		t.Fatalf("unexpected handler calls %+v", counter)
	}
	if err := m.Add(-1, fine); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if err := m.Add(1, nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestSampleLogOrder(t *testing.T) {
	s := leoState()
	log := NewSampleLog()
	if err := log.HandleSample(s, 0); err != nil {
		t.Fatal(err)
	}
	if err := log.HandleSample(s, 0); err == nil {
		t.Fatal("duplicate epochs must be rejected")
	}
	smp := log.Samples()
	smp[0].A = 0
	if log.Samples()[0].A == 0 {
		t.Fatal("Samples must return a copy")
	}
	el := s.Elements()
	if got := log.Samples()[0]; got.A != el.A || got.I < 0 || got.I > math.Pi || got.RAAN < 0 || got.RAAN >= twoPi {
		t.Fatalf("unexpected sample %+v", got)
	}
}
