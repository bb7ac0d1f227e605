package orbprop

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestWriteSamplesCSV(t *testing.T) {
	s := leoState()
	p, err := NewPropagator(s, mustRK4(t, 30), WithSampleCadence(300))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Propagate(s.Epoch.Shift(1800))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteSamplesCSV(&buf, "test run", res.Samples); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "# test run\n") {
		t.Fatalf("missing preamble:\n%s", buf.String())
	}
	r := csv.NewReader(&buf)
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 8 || strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Fatalf("unexpected records %v", records)
	}
	for i, rec := range records[1:] {
		elapsed, _ := strconv.ParseFloat(rec[1], 64)
		a, _ := strconv.ParseFloat(rec[2], 64)
		inc, _ := strconv.ParseFloat(rec[4], 64)
		if elapsed != float64(i)*300 || !scalar.EqualWithinAbs(a, res.Samples[i].A, 1e-6) || !scalar.EqualWithinAbs(inc, 97.4, 1e-3) {
			t.Fatalf("record %d: %v", i, rec)
		}
	}
}

func TestXYZVRoundTrip(t *testing.T) {
	s := leoState()
	p, err := NewPropagator(s, mustRK4(t, 60), WithEphemeris())
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Propagate(s.Epoch.Shift(1000))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteXYZV(&buf, res.Ephemeris, 90); err != nil {
		t.Fatal(err)
	}
	recs, err := ParseXYZV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	// Every 90 s and the final epoch.
	if len(recs) != 13 {
		t.Fatalf("expected 13 records, got %d", len(recs))
	}
	first, last := recs[0], recs[len(recs)-1]
	if !scalar.EqualWithinAbs(first.Position[0], s.R.X, 1e-6) || !scalar.EqualWithinAbs(first.Velocity[2], s.V.Z, 1e-9) {
		t.Fatalf("first record %+v", first)
	}
	if !scalar.EqualWithinAbs(last.Position[1], res.Final.R.Y, 1e-6) || !scalar.EqualWithinAbs(last.JD, res.Final.Epoch.JD(), 1e-8) {
		t.Fatalf("last record %+v", last)
	}
	if !scalar.EqualWithinAbs((recs[1].JD-first.JD)*86400, 90, 1e-3) {
		t.Fatalf("records not 90 s apart")
	}

	if err := WriteXYZV(&buf, res.Ephemeris, 0); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if _, err := ParseXYZV(strings.NewReader("# comment\n2451545 1 2 3\n")); err == nil {
		t.Fatal("expected an error on a short record")
	}
}
