package orbprop

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Action is what the propagator does once an event is located.
type Action uint8

const (
	// Continue logs the event and resumes integration.
	Continue Action = iota
	// Stop truncates the propagation at the event.
	Stop
)

func (a Action) String() string {
	if a == Stop {
		return "STOP"
	}
	return "CONTINUE"
}

// Direction filters which zero crossings trigger an event.
type Direction uint8

const (
	// Both triggers on any sign change.
	Both Direction = iota
	// Increasing triggers when g goes from negative to positive.
	Increasing
	// Decreasing triggers when g goes from positive to negative.
	Decreasing
)

const (
	defaultEventTolerance = 1e-6 // seconds
	defaultEventMaxCheck  = 600  // seconds
	defaultEventMaxIter   = 100
)

// EventDetector is a scalar function of the state whose zero crossings are events.
type EventDetector struct {
	Name      string
	G         func(s State) (float64, error)
	Action    Action
	Direction Direction
	Tolerance float64 // Time tolerance in seconds of the located crossing.
	MaxIter   int

	// MaxCheck is the longest interval in seconds between two evaluations of G
	// within an accepted step. Crossings closer together than this may be missed.
	MaxCheck float64

	// TriggerIfPast reports the detector as already triggered when the initial
	// state is on the "after" side of its direction, not only exactly on zero.
	// It suits thresholds such as an altitude or a date, not periodic functions.
	TriggerIfPast bool
}

// EventOccurrence is a located event.
type EventOccurrence struct {
	Detector         string
	Epoch            Epoch
	Elapsed          float64 // seconds since the propagation start
	State            State
	Action           Action
	Increasing       bool
	AlreadyTriggered bool // The detector was past its threshold at the initial epoch.
}

func (o EventOccurrence) String() string {
	if o.AlreadyTriggered {
		return fmt.Sprintf("%s already triggered at %s (%s)", o.Detector, o.Epoch, o.Action)
	}
	return fmt.Sprintf("%s at %s +%.3fs (%s)", o.Detector, o.Epoch, o.Elapsed, o.Action)
}

func (d *EventDetector) validate() error {
	if d.G == nil {
		return configError("event "+d.Name, "nil event function")
	}
	if d.Tolerance < 0 || d.MaxIter < 0 || d.MaxCheck < 0 {
		return configError("event "+d.Name, "negative tolerance, iteration count or check interval")
	}
	return nil
}

func (d *EventDetector) tolerance() float64 {
	if d.Tolerance == 0 {
		return defaultEventTolerance
	}
	return d.Tolerance
}

func (d *EventDetector) maxIter() int {
	if d.MaxIter == 0 {
		return defaultEventMaxIter
	}
	return d.MaxIter
}

func (d *EventDetector) maxCheck() float64 {
	if d.MaxCheck == 0 {
		return defaultEventMaxCheck
	}
	return d.MaxCheck
}

// alreadyTriggered reports whether g at the initial epoch is on the threshold,
// or past it for TriggerIfPast detectors.
func (d *EventDetector) alreadyTriggered(g0 float64) bool {
	if g0 == 0 {
		return true
	}
	if !d.TriggerIfPast {
		return false
	}
	switch d.Direction {
	case Increasing:
		return g0 >= 0
	case Decreasing:
		return g0 <= 0
	default:
		return g0 == 0
	}
}

// crossed reports whether a sign change between g0 and g1 is an event.
// A previous value of exactly zero never triggers, so an event found at the end
// of one step is not found again at the start of the next.
func (d *EventDetector) crossed(g0, g1 float64) (bool, bool) {
	if g0 == 0 || (g1 != 0 && (g0 > 0) == (g1 > 0)) {
		return false, false
	}
	increasing := g0 < 0
	switch d.Direction {
	case Increasing:
		return increasing, increasing
	case Decreasing:
		return !increasing, increasing
	}
	return true, increasing
}

// AltitudeDetector triggers when the geodetic altitude drops below threshold (km).
func AltitudeDetector(threshold float64, action Action) *EventDetector {
	return &EventDetector{
		Name:          fmt.Sprintf("altitude %.1f km", threshold),
		G:             func(s State) (float64, error) { return s.Altitude() - threshold, nil },
		Action:        action,
		Direction:     Decreasing,
		TriggerIfPast: true,
	}
}

// NodeDetector triggers at each ascending node crossing.
func NodeDetector(action Action) *EventDetector {
	return &EventDetector{
		Name:      "ascending node",
		G:         func(s State) (float64, error) { return s.R.Z, nil },
		Action:    action,
		Direction: Increasing,
	}
}

// ApsideDetector triggers at periapsis (increasing) and apoapsis (decreasing).
func ApsideDetector(action Action) *EventDetector {
	return &EventDetector{
		Name:   "apside",
		G:      func(s State) (float64, error) { return r3.Dot(s.R, s.V), nil },
		Action: action,
	}
}

// DateDetector stops the propagation at the provided epoch.
func DateDetector(e Epoch) *EventDetector {
	return &EventDetector{
		Name:          "date " + e.String(),
		G:             func(s State) (float64, error) { return e.Sub(s.Epoch), nil },
		Action:        Stop,
		Direction:     Decreasing,
		TriggerIfPast: true,
	}
}

// EclipseDetector triggers on umbra and penumbra transitions: a decreasing
// crossing is an entry, an increasing one an exit. The threshold is the visible
// fraction of the solar disk, e.g. 0.5 for the middle of the penumbra.
func EclipseDetector(threshold float64, action Action) *EventDetector {
	return &EventDetector{
		Name: fmt.Sprintf("eclipse %.2f", threshold),
		G: func(s State) (float64, error) {
			return ShadowFunction(s.R, SunPosition(s.Epoch), s.Origin.Radius) - threshold, nil
		},
		Action: action,
	}
}

// scan evaluates d over one accepted step, at most MaxCheck seconds apart, and
// isolates every crossing found. g0 and g1 are the values at the step ends.
func (d *EventDetector) scan(seg *stepSegment, g0, g1 float64) ([]EventOccurrence, error) {
	n := int(math.Ceil((seg.t1 - seg.t0) / d.maxCheck()))
	if n < 1 {
		n = 1
	}
	var found []EventOccurrence
	ta, ga := seg.t0, g0
	for k := 1; k <= n; k++ {
		tb, gb := seg.t1, g1
		if k < n {
			tb = seg.t0 + float64(k)*(seg.t1-seg.t0)/float64(n)
			s, err := seg.StateAt(tb)
			if err != nil {
				return nil, err
			}
			if gb, err = d.G(s); err != nil {
				return nil, err
			}
		}
		if ok, increasing := d.crossed(ga, gb); ok {
			occ, err := d.locate(seg, ta, tb, ga, gb, increasing)
			if err != nil {
				return nil, err
			}
			found = append(found, occ)
			if d.Action == Stop {
				break
			}
		}
		ta, ga = tb, gb
	}
	return found, nil
}

// locate isolates the crossing of d within [ta, tb] of one accepted step.
func (d *EventDetector) locate(seg *stepSegment, ta, tb, ga, gb float64, increasing bool) (EventOccurrence, error) {
	var evalErr error
	g := func(t float64) (float64, error) {
		s, err := seg.StateAt(t)
		if err != nil {
			evalErr = err
			return math.NaN(), err
		}
		return d.G(s)
	}
	t, err := brent(g, ta, tb, ga, gb, d.tolerance(), d.maxIter())
	if err != nil {
		if evalErr != nil {
			return EventOccurrence{}, evalErr
		}
		return EventOccurrence{}, fmt.Errorf("event %s: %w", d.Name, err)
	}
	s, err := seg.StateAt(t)
	if err != nil {
		return EventOccurrence{}, err
	}
	return EventOccurrence{Detector: d.Name, Epoch: s.Epoch, Elapsed: t, State: s, Action: d.Action, Increasing: increasing}, nil
}
