package orbprop

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func TestStateFromTLE(t *testing.T) {
	s, err := StateFromTLE(issLine1, issLine2, 420000)
	if err != nil {
		t.Fatal(err)
	}
	if exp := time.Date(2008, 9, 20, 12, 25, 40, 0, time.UTC); s.Epoch.Time() != exp {
		t.Fatalf("epoch %s instead of %s", s.Epoch, exp)
	}
	if h := s.Altitude(); h < 300 || h > 400 {
		t.Fatalf("ISS altitude %f km", h)
	}
	el := s.Elements()
	if i := Rad2deg(el.I); i < 51.5 || i > 51.8 {
		t.Fatalf("inclination %f", i)
	}
	if el.E > 0.005 || s.Mass != 420000 || !s.Origin.Equals(Earth) {
		t.Fatalf("unexpected state %s", s)
	}
}

func TestStateFromTLEErrors(t *testing.T) {
	for _, lines := range [][2]string{
		{issLine1[:60], issLine2},
		{issLine2, issLine1},
		{strings.Replace(issLine1, "08264.51782528", "0x264.51782528", 1), issLine2},
		{strings.Replace(issLine1, "08264.51782528", "08000.51782528", 1), issLine2},
	} {
		if _, err := StateFromTLE(lines[0], lines[1], 1); !errors.Is(err, ErrConfig) {
			t.Fatalf("%q: expected a configuration error, got %v", lines[0], err)
		}
	}
}

func TestTLEEpochCentury(t *testing.T) {
	e, err := tleEpoch(strings.Replace(issLine1, "08264.51782528", "98001.50000000", 1))
	if err != nil {
		t.Fatal(err)
	}
	if e.Time() != time.Date(1998, 1, 1, 12, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected epoch %s", e)
	}
}
