package batch

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ChristopherRabotin/orbprop"
	"github.com/ChristopherRabotin/orbprop/integrator"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats/scalar"
)

func leo() orbprop.State {
	start := orbprop.NewEpoch(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	return orbprop.NewStateFromElements(start, orbprop.NewElementsFromOE(6878, 0.02, 97.4, 30, 40, 0), 100, orbprop.Earth)
}

func twoBodyBuilder(initial orbprop.State, opts ...orbprop.Option) (*orbprop.Propagator, error) {
	rk, err := integrator.NewRK4(30)
	if err != nil {
		return nil, err
	}
	return orbprop.NewPropagator(initial, rk, append([]orbprop.Option{orbprop.WithSampleCadence(600)}, opts...)...)
}

func TestRunnerParallelRuns(t *testing.T) {
	states, err := Disperse(leo(), Sigmas{A: 1, I: 1e-4}, 8)
	if err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(runsTotal.WithLabelValues("completed"))
	var mu sync.Mutex
	sunk := make(map[int]bool)
	r := &Runner{
		Build:   twoBodyBuilder,
		Target:  func(s orbprop.State) orbprop.Epoch { return s.Epoch.Shift(3600) },
		Workers: 3,
		Sink: func(ctx context.Context, idx int, res *orbprop.Result, err error) error {
			mu.Lock()
			defer mu.Unlock()
			sunk[idx] = true
			return nil
		},
	}
	outcomes, err := r.Run(context.Background(), states)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 8 || len(sunk) != 8 {
		t.Fatalf("expected 8 outcomes and sinks, got %d and %d", len(outcomes), len(sunk))
	}
	for i, o := range outcomes {
		if o.Err != nil || o.Index != i {
			t.Fatalf("run %d: %v", i, o.Err)
		}
		if o.Result.Status != orbprop.Completed || len(o.Result.Samples) != 7 {
			t.Fatalf("run %d: status %s with %d samples", i, o.Result.Status, len(o.Result.Samples))
		}
		// Two body motion keeps the semi major axis of each dispersed state.
		a0 := states[i].Elements().A
		if !scalar.EqualWithinAbs(o.Result.Final.Elements().A, a0, 1e-2) {
			t.Fatalf("run %d: a drifted from %f to %f", i, a0, o.Result.Final.Elements().A)
		}
	}
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("completed")) - before; got != 8 {
		t.Fatalf("expected 8 completed runs counted, got %f", got)
	}
	if s := Summary(outcomes); s["completed"] != 8 {
		t.Fatalf("unexpected summary %v", s)
	}
}

func TestRunnerFailuresAreLocal(t *testing.T) {
	good := leo()
	bad := good
	bad.Mass = 0
	r := &Runner{
		Build:  twoBodyBuilder,
		Target: func(s orbprop.State) orbprop.Epoch { return s.Epoch.Shift(600) },
	}
	outcomes, err := r.Run(context.Background(), []orbprop.State{good, bad, good})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(outcomes[1].Err, orbprop.ErrConfig) || outcomes[1].Result != nil {
		t.Fatalf("expected a configuration error for run 1, got %v", outcomes[1].Err)
	}
	for _, i := range []int{0, 2} {
		if outcomes[i].Err != nil || outcomes[i].Result.Status != orbprop.Completed {
			t.Fatalf("run %d should complete: %v", i, outcomes[i].Err)
		}
	}
	if s := Summary(outcomes); s["config"] != 1 || s["completed"] != 2 {
		t.Fatalf("unexpected summary %v", s)
	}
}

func TestRunnerSinkErrorStops(t *testing.T) {
	sinkErr := errors.New("disk full")
	r := &Runner{
		Build:   twoBodyBuilder,
		Target:  func(s orbprop.State) orbprop.Epoch { return s.Epoch.Shift(60) },
		Workers: 1,
		Sink: func(ctx context.Context, idx int, res *orbprop.Result, err error) error {
			return sinkErr
		},
	}
	_, err := r.Run(context.Background(), []orbprop.State{leo(), leo(), leo()})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected the sink error, got %v", err)
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Build: twoBodyBuilder, Target: func(s orbprop.State) orbprop.Epoch { return s.Epoch.Shift(60) }}
	outcomes, err := r.Run(ctx, []orbprop.State{leo(), leo()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if s := Summary(outcomes); s["skipped"] != 2 {
		t.Fatalf("expected no run to start, got %v", s)
	}
}

func TestDisperse(t *testing.T) {
	s := leo()
	states, err := Disperse(s, Sigmas{A: 1, RAAN: 1e-3}, 500)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 500 || states[0] != s {
		t.Fatal("the first state must be the nominal one")
	}
	el := s.Elements()
	var meanA, meanE float64
	for _, d := range states {
		if !d.Epoch.Equal(s.Epoch) {
			t.Fatal("dispersion changed the epoch")
		}
		de := d.Elements()
		meanA += de.A / 500
		meanE += de.E / 500
	}
	if !scalar.EqualWithinAbs(meanA, el.A, 0.3) {
		t.Fatalf("mean a %f too far from %f", meanA, el.A)
	}
	if !scalar.EqualWithinAbs(meanE, el.E, 1e-9) {
		t.Fatalf("undispersed e changed: %f vs %f", meanE, el.E)
	}
	var spread float64
	for _, d := range states {
		spread += math.Pow(d.Elements().A-el.A, 2) / 500
	}
	if math.Sqrt(spread) < 0.7 || math.Sqrt(spread) > 1.3 {
		t.Fatalf("unexpected a dispersion %f", math.Sqrt(spread))
	}

	if _, err := Disperse(s, Sigmas{A: -1}, 3); err == nil {
		t.Fatal("expected an error on negative sigma")
	}
	same, err := Disperse(s, Sigmas{}, 3)
	if err != nil || same[2] != s {
		t.Fatalf("zero sigmas must return the nominal state: %v", err)
	}
}
