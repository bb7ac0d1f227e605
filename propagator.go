package orbprop

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ChristopherRabotin/orbprop/integrator"
	"github.com/go-kit/log"
)

// targetSnap is how close to the target an accepted step must land to be considered on it.
const targetSnap = 1e-9 // seconds

// Status is the lifecycle of a Propagator.
type Status uint8

const (
	// Configured is the status after construction.
	Configured Status = iota
	// Running is the status while Propagate executes.
	Running
	// Completed means the target epoch was reached.
	Completed
	// StoppedByEvent means a STOP event truncated the run.
	StoppedByEvent
	// Failed means the run aborted with an error.
	Failed
)

func (s Status) String() string {
	switch s {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case StoppedByEvent:
		return "stopped by event"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Mode selects the integrated state representation.
type Mode uint8

const (
	// Numerical integrates position and velocity.
	Numerical Mode = iota
	// SemiAnalytical integrates averaged mean Keplerian elements.
	SemiAnalytical
)

func (m Mode) String() string {
	if m == SemiAnalytical {
		return "semi-analytical"
	}
	return "numerical"
}

// OutputType selects which elements the semi-analytical mode reports.
type OutputType uint8

const (
	// OutputMean reports the mean elements.
	OutputMean OutputType = iota
	// OutputOsculating reports mean elements plus short-period terms.
	OutputOsculating
)

// Stats are the integration counters of one run.
type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int // derivative evaluations, dense output included
}

// Result is the outcome of a propagation. On failure it holds everything
// produced up to the last accepted step.
type Result struct {
	Status    Status
	Final     State
	Samples   []TrajectorySample
	Events    []EventOccurrence
	Ephemeris *Ephemeris
	Stats     Stats
}

// Option configures a Propagator.
type Option func(*Propagator) error

// WithForces appends perturbing force models. Two body attraction of the
// state origin is always included.
func WithForces(forces ...ForceModel) Option {
	return func(p *Propagator) error {
		for _, f := range forces {
			if f == nil {
				return configError("forces", "nil force model")
			}
		}
		p.forces = append(p.forces, forces...)
		return nil
	}
}

// WithDetector registers event detectors, evaluated in registration order.
func WithDetector(detectors ...*EventDetector) Option {
	return func(p *Propagator) error {
		for _, d := range detectors {
			if d == nil {
				return configError("events", "nil detector")
			}
			if err := d.validate(); err != nil {
				return err
			}
		}
		p.detectors = append(p.detectors, detectors...)
		return nil
	}
}

// WithSampleCadence records a SampleLog every cadence seconds. Without it the
// Result holds no samples.
func WithSampleCadence(cadence float64) Option {
	return func(p *Propagator) error {
		p.samples = NewSampleLog()
		return p.mux.Add(cadence, p.samples)
	}
}

// WithStepHandler adds a fixed cadence handler next to the SampleLog.
func WithStepHandler(cadence float64, h FixedStepHandler) Option {
	return func(p *Propagator) error {
		return p.mux.Add(cadence, h)
	}
}

// WithStepInterpolatorHandler adds a handler called once per accepted step with
// the dense output of that step.
func WithStepInterpolatorHandler(h StepHandler) Option {
	return func(p *Propagator) error {
		if h == nil {
			return configError("step handler", "nil handler")
		}
		p.mux.AddStepHandler(h)
		return nil
	}
}

// WithEphemeris retains the accepted steps as an Ephemeris.
func WithEphemeris() Option {
	return func(p *Propagator) error {
		p.ephemeris = true
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Propagator) error {
		if logger == nil {
			return configError("logger", "nil logger")
		}
		p.logger = logger
		return nil
	}
}

// WithMeanElements switches to the semi-analytical mode. When initialIsMean is
// false the initial state is converted from osculating to mean elements.
func WithMeanElements(initialIsMean bool, output OutputType) Option {
	return func(p *Propagator) error {
		p.mode = SemiAnalytical
		p.initialIsMean = initialIsMean
		p.output = output
		return nil
	}
}

// Propagator advances one initial state to a target epoch. It runs once.
type Propagator struct {
	initial       State
	integ         integrator.Integrator
	forces        []ForceModel
	detectors     []*EventDetector
	mux           Multiplexer
	samples       *SampleLog
	ephemeris     bool
	mode          Mode
	initialIsMean bool
	output        OutputType
	logger        log.Logger
	status        Status
	eqs           equations
}

// NewPropagator returns a configured propagator. All configuration errors are
// reported here, before any stepping.
func NewPropagator(initial State, integ integrator.Integrator, opts ...Option) (*Propagator, error) {
	p := &Propagator{initial: initial, integ: integ, logger: log.NewNopLogger()}
	if integ == nil {
		return nil, configError("integrator", "nil integrator")
	}
	if !(initial.Mass > 0) {
		return nil, configError("state", "mass must be positive, got %f", initial.Mass)
	}
	if !(initial.Origin.μ > 0) {
		return nil, configError("state", "origin %s has no gravitational parameter", initial.Origin)
	}
	if !(initial.R.X != 0 || initial.R.Y != 0 || initial.R.Z != 0) {
		return nil, configError("state", "zero position vector")
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	switch p.mode {
	case Numerical:
		p.eqs = &cartesian{s0: initial, forces: p.forces}
	case SemiAnalytical:
		eqs, err := p.meanEquations()
		if err != nil {
			return nil, err
		}
		p.eqs = eqs
	}
	return p, nil
}

func (p *Propagator) meanEquations() (*meanEquations, error) {
	model := newMeanModel(p.forces, p.initial.Mass, p.initial.Origin)
	osc := p.initial.Elements()
	var m MeanElements
	if p.initialIsMean {
		m = MeanElements{osc.A, osc.E, osc.I, osc.RAAN, osc.ArgPeri, osc.MeanAnomaly()}
		if err := checkMeanDomain(m); err != nil {
			return nil, &ConfigError{Field: "mean elements", Err: err}
		}
	} else {
		if err := checkMeanDomain(MeanElements{A: osc.A, E: osc.E, I: osc.I}); err != nil {
			return nil, &ConfigError{Field: "mean elements", Err: err}
		}
		var err error
		if m, err = model.mean(osc, p.initial.Epoch); err != nil {
			return nil, &ConfigError{Field: "mean elements", Err: err}
		}
	}
	return &meanEquations{s0: p.initial, m0: m, model: model, output: p.output}, nil
}

// Status returns the current status.
func (p *Propagator) Status() Status {
	return p.status
}

// Mode returns the propagation mode.
func (p *Propagator) Mode() Mode {
	return p.mode
}

// stepSegment is one accepted step, used as dense output.
type stepSegment struct {
	t0, t1 float64
	y0, y1 []float64
	s0, s1 State
	f      integrator.Derivative
	integ  integrator.Integrator
	eqs    equations
}

// Span implements StepInterpolator.
func (seg *stepSegment) Span() (float64, float64) {
	return seg.t0, seg.t1
}

// at returns the integration vector at t by re-integrating from the step start.
func (seg *stepSegment) at(t float64) ([]float64, error) {
	switch {
	case t == seg.t0:
		return seg.y0, nil
	case t == seg.t1:
		return seg.y1, nil
	}
	return seg.integ.Single(seg.f, seg.t0, seg.y0, t-seg.t0)
}

// StateAt implements StepInterpolator.
func (seg *stepSegment) StateAt(t float64) (State, error) {
	switch {
	case t == seg.t0:
		return seg.s0, nil
	case t == seg.t1:
		return seg.s1, nil
	}
	y, err := seg.at(t)
	if err != nil {
		return State{}, err
	}
	return seg.eqs.state(t, y)
}

// Propagate runs the propagation to the target epoch. Failures return a
// *PropagationError together with the partial Result.
func (p *Propagator) Propagate(target Epoch) (*Result, error) {
	if p.status != Configured {
		return nil, fmt.Errorf("%w: propagate called while %s", ErrInvalidState, p.status)
	}
	span := target.Sub(p.initial.Epoch)
	if span < 0 {
		return nil, configError("target", "%s precedes the initial epoch %s", target, p.initial.Epoch)
	}
	p.status = Running
	wall := time.Now()
	if r, ok := p.integ.(interface{ Reset() }); ok {
		// Step size control starts afresh for each run.
		r.Reset()
	}

	res := &Result{}
	f := func(t float64, y []float64) ([]float64, error) {
		res.Stats.Evaluations++
		return p.eqs.derivative(t, y)
	}

	t, y := 0.0, p.eqs.initial()
	last, err := p.eqs.state(0, y)
	if err != nil {
		return p.fail(res, nil, t, p.initial, err)
	}
	var eph *Ephemeris
	if p.ephemeris {
		eph = newEphemeris(p.initial.Epoch, p.eqs.state)
		ydot, err := f(0, y)
		if err != nil {
			return p.fail(res, eph, t, last, err)
		}
		eph.add(0, y, ydot, last)
	}
	p.logger.Log("level", "info", "subsys", "prop", "status", "start", "mode", p.mode, "epoch", p.initial.Epoch, "target", target, "forces", len(p.forces))
	if err := p.mux.Init(last, target); err != nil {
		return p.fail(res, eph, t, last, err)
	}

	g := make([]float64, len(p.detectors))
	for i, d := range p.detectors {
		if g[i], err = d.G(last); err != nil {
			return p.fail(res, eph, t, last, err)
		}
		if !d.alreadyTriggered(g[i]) {
			continue
		}
		occ := EventOccurrence{Detector: d.Name, Epoch: last.Epoch, State: last, Action: d.Action, AlreadyTriggered: true}
		res.Events = append(res.Events, occ)
		p.logger.Log("level", "notice", "subsys", "prop", "event", occ)
		if d.Action == Stop {
			return p.finish(res, eph, StoppedByEvent, last, wall), nil
		}
	}

	for t < span {
		step, err := p.integ.Advance(f, t, y, span-t)
		if err != nil {
			return p.fail(res, eph, t, last, err)
		}
		res.Stats.Rejected += step.Rejected
		t1 := t + step.H
		if span-t1 < targetSnap {
			t1 = span
		}
		s1, err := p.eqs.state(t1, step.Y)
		if err != nil {
			return p.fail(res, eph, t, last, err)
		}
		seg := &stepSegment{t0: t, t1: t1, y0: y, y1: step.Y, s0: last, s1: s1, f: f, integ: p.integ, eqs: p.eqs}

		var found []EventOccurrence
		g1 := make([]float64, len(p.detectors))
		for i, d := range p.detectors {
			if g1[i], err = d.G(s1); err != nil {
				return p.fail(res, eph, t, last, err)
			}
			occs, err := d.scan(seg, g[i], g1[i])
			if err != nil {
				return p.fail(res, eph, t, last, err)
			}
			found = append(found, occs...)
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].Elapsed < found[j].Elapsed })
		stopped := false
		for k, occ := range found {
			if occ.Action == Stop {
				found = found[:k+1]
				stopped = true
				break
			}
		}
		if stopped {
			stop := found[len(found)-1]
			yStop, err := seg.at(stop.Elapsed)
			if err != nil {
				return p.fail(res, eph, t, last, err)
			}
			seg.t1, seg.y1, seg.s1 = stop.Elapsed, yStop, stop.State
		}
		for _, occ := range found {
			p.logger.Log("level", "notice", "subsys", "prop", "event", occ)
		}
		res.Events = append(res.Events, found...)

		if err := p.mux.HandleStep(seg); err != nil {
			return p.fail(res, eph, t, last, err)
		}
		if eph != nil {
			ydot, err := f(seg.t1, seg.y1)
			if err != nil {
				return p.fail(res, eph, t, last, err)
			}
			eph.add(seg.t1, seg.y1, ydot, seg.s1)
		}
		res.Stats.Accepted++
		t, y, last, g = seg.t1, seg.y1, seg.s1, g1
		if stopped {
			return p.finish(res, eph, StoppedByEvent, last, wall), nil
		}
	}
	return p.finish(res, eph, Completed, last, wall), nil
}

func (p *Propagator) finish(res *Result, eph *Ephemeris, status Status, final State, wall time.Time) *Result {
	p.status = status
	p.mux.Finish(final)
	res.Status = status
	res.Final = final
	if p.samples != nil {
		res.Samples = p.samples.Samples()
	}
	res.Ephemeris = eph
	p.logger.Log("level", "info", "subsys", "prop", "status", status, "epoch", final.Epoch, "steps", res.Stats.Accepted, "rejected", res.Stats.Rejected, "events", len(res.Events), "duration", time.Since(wall))
	return res
}

func (p *Propagator) fail(res *Result, eph *Ephemeris, t float64, last State, err error) (*Result, error) {
	p.status = Failed
	p.mux.Finish(last)
	res.Status = Failed
	res.Final = last
	if p.samples != nil {
		res.Samples = p.samples.Samples()
	}
	if eph != nil && eph.Len() > 0 {
		res.Ephemeris = eph
	}
	perr := &PropagationError{Step: res.Stats.Accepted, Elapsed: t, State: last, Wrapped: err}
	p.logger.Log("level", "critical", "subsys", "prop", "status", Failed, "err", err)
	return res, perr
}

// PeriodStep returns the default semi-analytical step, one orbital period of s.
func PeriodStep(s State) float64 {
	el := s.Elements()
	if el.E >= 1 {
		return math.Inf(1)
	}
	return el.Period(s.Origin.μ)
}
