package orbprop

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMeanOsculatingRoundTrip(t *testing.T) {
	s := leoState()
	zonal, err := NewZonalHarmonics(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	model := newMeanModel([]ForceModel{zonal}, s.Mass, s.Origin)
	osc := s.Elements()
	m, err := model.mean(osc, s.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.A-osc.A) < 1e-3 {
		t.Fatalf("mean and osculating a should differ: %f %f", m.A, osc.A)
	}
	back, err := model.osculating(m, s.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(back.A, osc.A, 1e-6) || !scalar.EqualWithinAbs(back.E, osc.E, 1e-9) {
		t.Fatalf("round trip changed the shape:\n%s\n%s", back, osc)
	}
	for i, pair := range [][2]float64{{back.I, osc.I}, {back.RAAN, osc.RAAN}, {back.ArgPeri, osc.ArgPeri}, {back.TrueAnom, osc.TrueAnom}} {
		if !anglesEqual(pair[0], pair[1], 1e-8) {
			t.Fatalf("angle %d changed:\n%s\n%s", i, back, osc)
		}
	}
}

func TestMeanElementsNotConverged(t *testing.T) {
	s := leoState()
	zonal, err := NewZonalHarmonics(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	model := newMeanModel([]ForceModel{zonal}, s.Mass, s.Origin)
	model.maxIter = 1
	if _, err := model.mean(s.Elements(), s.Epoch); !errors.Is(err, ErrNumericalInstability) {
		t.Fatalf("expected a convergence failure, got %v", err)
	}
	model.maxIter = meanMaxIter
	if _, err := model.mean(s.Elements(), s.Epoch); err != nil {
		t.Fatalf("the default iteration count converges: %v", err)
	}
}

func TestAveragedRatesMatchSecularJ2(t *testing.T) {
	zonal, err := NewZonalHarmonics(2, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := MeanElements{A: 6878, E: 0.02, I: 97.4 * deg2rad, RAAN: 0.5, ArgPeri: 0.7, M: 0}
	epoch := NewEpoch(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	averaged, err := newMeanModel([]ForceModel{zonal}, 100, Earth).rates(m, epoch)
	if err != nil {
		t.Fatal(err)
	}
	secular, err := newMeanModel([]ForceModel{SecularJ2{Earth}}, 100, Earth).rates(m, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(averaged[0]) > 1e-12 || math.Abs(averaged[1]) > 1e-14 || math.Abs(averaged[2]) > 1e-14 {
		t.Fatalf("J2 has no secular effect on a, e and i: %v", averaged)
	}
	if !scalar.EqualWithinRel(averaged[3], secular[3], 1e-4) || !scalar.EqualWithinRel(averaged[4], secular[4], 1e-4) {
		t.Fatalf("averaged %v and closed form %v rates differ", averaged, secular)
	}
	// The SecularJ2 model has no short-period terms.
	η, err := newMeanModel([]ForceModel{SecularJ2{Earth}}, 100, Earth).shortPeriodic(m, epoch)
	if err != nil || η != ([6]float64{}) {
		t.Fatalf("unexpected short-period terms %v %v", η, err)
	}
}

func TestSemiAnalyticalSecularJ2(t *testing.T) {
	s := leoState()
	el := s.Elements()
	p, err := NewPropagator(s, mustRK4(t, PeriodStep(s)), WithForces(SecularJ2{Earth}), WithMeanElements(true, OutputMean))
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode() != SemiAnalytical {
		t.Fatalf("mode %s", p.Mode())
	}
	span := 10 * 86400.0
	res, err := p.Propagate(s.Epoch.Shift(span))
	if err != nil {
		t.Fatal(err)
	}
	got := res.Final.Elements()
	expRAAN := el.RAAN + NodalRegressionRate(Earth, el.A, el.E, el.I)*span
	if !anglesEqual(got.RAAN, expRAAN, 1e-8) {
		t.Fatalf("RAAN %f expected %f", Rad2deg(got.RAAN), Rad2deg(expRAAN))
	}
	if !scalar.EqualWithinAbs(got.A, el.A, 1e-6) || !scalar.EqualWithinAbs(got.E, el.E, 1e-9) || !scalar.EqualWithinAbs(got.I, el.I, 1e-9) {
		t.Fatalf("shape changed:\n%s\n%s", got, el)
	}
	// One step per period.
	if res.Stats.Accepted > int(span/PeriodStep(s))+1 {
		t.Fatalf("too many steps: %+v", res.Stats)
	}
}

func TestSemiAnalyticalZonalRAANDrift(t *testing.T) {
	if testing.Short() {
		t.Skip("500 day propagation")
	}
	s := leoState()
	zonal, err := NewZonalHarmonics(15, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPropagator(s, mustRK4(t, 86400), WithForces(zonal), WithMeanElements(false, OutputMean), WithSampleCadence(86400))
	if err != nil {
		t.Fatal(err)
	}
	days := 500.0
	res, err := p.Propagate(s.Epoch.Shift(days * 86400))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != Completed || len(res.Samples) != 501 {
		t.Fatalf("status %s with %d samples", res.Status, len(res.Samples))
	}
	var drift float64
	for i := 1; i < len(res.Samples); i++ {
		δ := res.Samples[i].RAAN - res.Samples[i-1].RAAN
		if δ > math.Pi {
			δ -= twoPi
		} else if δ < -math.Pi {
			δ += twoPi
		}
		drift += δ
	}
	m0 := res.Samples[0]
	expected := NodalRegressionRate(Earth, m0.A, m0.E, m0.I) * days * 86400
	if !scalar.EqualWithinRel(drift, expected, 0.02) {
		t.Fatalf("RAAN drift %f deg, J2 rate gives %f deg", drift/deg2rad, expected/deg2rad)
	}
}

func TestSemiAnalyticalOutputs(t *testing.T) {
	s := leoState()
	zonal, err := NewZonalHarmonics(4, nil)
	if err != nil {
		t.Fatal(err)
	}
	osc, err := NewPropagator(s, mustRK4(t, 600), WithForces(zonal), WithMeanElements(false, OutputOsculating))
	if err != nil {
		t.Fatal(err)
	}
	res, err := osc.Propagate(s.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	if d := r3.Norm(r3.Sub(res.Final.R, s.R)); d > 1e-4 {
		t.Fatalf("osculating output differs from the initial state by %f km", d)
	}

	mean, err := NewPropagator(s, mustRK4(t, 600), WithForces(zonal), WithMeanElements(false, OutputMean))
	if err != nil {
		t.Fatal(err)
	}
	res, err = mean.Propagate(s.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	if d := r3.Norm(r3.Sub(res.Final.R, s.R)); d < 1e-3 {
		t.Fatalf("mean output should differ from the osculating state, got %f km", d)
	}
}

func TestSemiAnalyticalDomain(t *testing.T) {
	start := NewEpoch(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	for _, el := range []Elements{
		NewElementsFromOE(7000, 0, 50, 0, 0, 0),
		NewElementsFromOE(7000, 0.01, 0, 0, 0, 0),
	} {
		s := NewStateFromElements(start, el, 100, Earth)
		_, err := NewPropagator(s, mustRK4(t, 600), WithForces(SecularJ2{Earth}), WithMeanElements(true, OutputMean))
		if !errors.Is(err, ErrConfig) || !errors.Is(err, ErrDomain) {
			t.Fatalf("%s: expected a configuration domain error, got %v", el, err)
		}
		var domain *DomainError
		if !errors.As(err, &domain) {
			t.Fatalf("expected a DomainError, got %T", err)
		}
	}
}
