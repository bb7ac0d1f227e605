package orbprop

import (
	"fmt"
	"math"
)

// boundaryε absorbs the floating point error of k*Δt against the step end, in
// seconds. It stays well below the nanosecond resolution of an Epoch.
const boundaryε = 1e-10

// StepInterpolator gives access to any state within one accepted step.
type StepInterpolator interface {
	// Span returns the step bounds in seconds since the propagation start.
	Span() (t0, t1 float64)
	// StateAt returns the state at t, in seconds since the propagation start.
	StateAt(t float64) (State, error)
}

// StepHandler is notified of every accepted step.
type StepHandler interface {
	Init(s0 State, target Epoch)
	HandleStep(step StepInterpolator) error
	Finish(final State)
}

// FixedStepHandler receives states on a fixed cadence.
type FixedStepHandler interface {
	Init(s0 State, target Epoch)
	HandleSample(s State, elapsed float64) error
	Finish(final State)
}

type cadenceEntry struct {
	cadence float64
	handler FixedStepHandler
	next    int // index of the next boundary
}

// Multiplexer dispatches accepted steps to fixed cadence handlers.
// Samples are placed exactly on k*cadence, independently of the integrator steps.
type Multiplexer struct {
	entries []*cadenceEntry
	raw     []StepHandler
}

// Add registers a handler sampled every cadence seconds.
func (m *Multiplexer) Add(cadence float64, h FixedStepHandler) error {
	if !(cadence > 0) || math.IsInf(cadence, 0) {
		return configError("sample cadence", "must be positive and finite, got %f", cadence)
	}
	if h == nil {
		return configError("sample cadence", "nil handler")
	}
	m.entries = append(m.entries, &cadenceEntry{cadence: cadence, handler: h})
	return nil
}

// AddStepHandler registers a handler called on every accepted step.
func (m *Multiplexer) AddStepHandler(h StepHandler) {
	m.raw = append(m.raw, h)
}

// Init emits the sample at the initial epoch.
func (m *Multiplexer) Init(s0 State, target Epoch) error {
	for _, e := range m.entries {
		e.handler.Init(s0, target)
		e.next = 1
		if err := e.handler.HandleSample(s0, 0); err != nil {
			return err
		}
	}
	for _, h := range m.raw {
		h.Init(s0, target)
	}
	return nil
}

// HandleStep emits every cadence boundary within the step.
func (m *Multiplexer) HandleStep(step StepInterpolator) error {
	_, t1 := step.Span()
	for _, e := range m.entries {
		for {
			tb := float64(e.next) * e.cadence
			if tb > t1+boundaryε+4*ulp(t1) {
				break
			}
			// Never past the end of the step.
			tb = math.Min(tb, t1)
			s, err := step.StateAt(tb)
			if err != nil {
				return err
			}
			if err := e.handler.HandleSample(s, tb); err != nil {
				return err
			}
			e.next++
		}
	}
	for _, h := range m.raw {
		if err := h.HandleStep(step); err != nil {
			return err
		}
	}
	return nil
}

// Finish notifies all handlers of the final state.
func (m *Multiplexer) Finish(final State) {
	for _, e := range m.entries {
		e.handler.Finish(final)
	}
	for _, h := range m.raw {
		h.Finish(final)
	}
}

// TrajectorySample is one row of the sample log. Angles are in radians,
// I in [0, π] and the others in [0, 2π).
type TrajectorySample struct {
	Epoch    Epoch
	Elapsed  float64 // seconds since the propagation start
	A, E, I  float64
	ArgPeri  float64
	RAAN     float64
	TrueAnom float64
	MeanAnom float64
}

// NewTrajectorySample returns the sample of a state.
func NewTrajectorySample(s State, elapsed float64) TrajectorySample {
	el := s.Elements().Normalized()
	return TrajectorySample{
		Epoch: s.Epoch, Elapsed: elapsed,
		A: el.A, E: el.E, I: el.I, ArgPeri: el.ArgPeri, RAAN: el.RAAN,
		TrueAnom: el.TrueAnom, MeanAnom: el.MeanAnomaly(),
	}
}

// SampleLog is the append-only record of one propagation run.
type SampleLog struct {
	samples []TrajectorySample
}

// NewSampleLog returns an empty log.
func NewSampleLog() *SampleLog {
	return &SampleLog{}
}

// Init implements FixedStepHandler.
func (l *SampleLog) Init(s0 State, target Epoch) {}

// HandleSample implements FixedStepHandler.
func (l *SampleLog) HandleSample(s State, elapsed float64) error {
	if n := len(l.samples); n > 0 && !s.Epoch.After(l.samples[n-1].Epoch) {
		return fmt.Errorf("sample at %s does not follow %s", s.Epoch, l.samples[n-1].Epoch)
	}
	l.samples = append(l.samples, NewTrajectorySample(s, elapsed))
	return nil
}

// Finish implements FixedStepHandler.
func (l *SampleLog) Finish(final State) {}

// Len returns the number of samples.
func (l *SampleLog) Len() int {
	return len(l.samples)
}

// Samples returns a copy of the samples in increasing epoch order.
func (l *SampleLog) Samples() []TrajectorySample {
	out := make([]TrajectorySample, len(l.samples))
	copy(out, l.samples)
	return out
}

// ulp is the spacing of float64 values around x.
func ulp(x float64) float64 {
	x = math.Abs(x)
	return math.Nextafter(x, math.Inf(1)) - x
}
