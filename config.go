package orbprop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChristopherRabotin/orbprop/integrator"
	"github.com/go-kit/log"
	"github.com/spf13/viper"
)

// ConfigDirEnv is the environment variable holding the default scenario directory.
const ConfigDirEnv = "ORBPROP_CONFIG"

const dateTimeFormat = "2006-01-02 15:04:05"

// Scenario is a fully parsed propagation scenario.
// It is read only once loaded and may build any number of propagators concurrently.
type Scenario struct {
	Name     string
	Initial  State
	Duration float64 // seconds

	Mode          Mode
	InitialIsMean bool
	Output        OutputType

	Integrator     string // rk4 or rk78
	Step           float64
	MinStep        float64
	MaxStep        float64
	PositionTol    float64 // km
	GravityDegree  int
	GravityOrder   int
	SecularJ2      bool
	Atmosphere     string
	Cd, DragArea   float64
	SRP            bool
	Cr, SRPArea    float64
	ThirdBodies    []string
	MinAltitude    float64 // km, zero disables the re-entry detector
	Nodes, Apsides bool
	Eclipses       bool
	Stations       []Station // rise and set of the spacecraft above each station mask
	StopDate       Epoch

	Cadence   float64
	Ephemeris bool
	CSVPath   string
	SQLite    string

	coeffs *GravityCoefficients
}

// LoadScenario reads a scenario file. A bare name is looked up in the current
// directory and in the directory named by ORBPROP_CONFIG.
func LoadScenario(path string) (*Scenario, error) {
	v := viper.New()
	if filepath.Ext(path) != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(path)
		v.AddConfigPath(".")
		if dir := os.Getenv(ConfigDirEnv); dir != "" {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "scenario", Err: err}
	}
	return ScenarioFromViper(v)
}

// ScenarioFromViper parses an already loaded configuration.
func ScenarioFromViper(v *viper.Viper) (*Scenario, error) {
	v.SetDefault("propagator.mode", "numerical")
	v.SetDefault("propagator.integrator", "rk78")
	v.SetDefault("propagator.output", "mean")
	v.SetDefault("propagator.min_step", 1e-3)
	v.SetDefault("propagator.max_step", 3600.0)
	v.SetDefault("propagator.position_tolerance", 1e-6)
	v.SetDefault("spacecraft.mass", 100.0)
	v.SetDefault("spacecraft.cd", 2.2)
	v.SetDefault("spacecraft.cr", 1.5)
	v.SetDefault("orbit.body", "Earth")

	sc := &Scenario{
		Name:          v.GetString("scenario.name"),
		Integrator:    strings.ToLower(v.GetString("propagator.integrator")),
		Step:          v.GetFloat64("propagator.step"),
		MinStep:       v.GetFloat64("propagator.min_step"),
		MaxStep:       v.GetFloat64("propagator.max_step"),
		PositionTol:   v.GetFloat64("propagator.position_tolerance"),
		InitialIsMean: v.GetBool("propagator.mean_input"),
		GravityDegree: v.GetInt("forces.gravity_degree"),
		GravityOrder:  v.GetInt("forces.gravity_order"),
		SecularJ2:     v.GetBool("forces.secular_j2"),
		Atmosphere:    strings.ToLower(v.GetString("forces.drag")),
		Cd:            v.GetFloat64("spacecraft.cd"),
		DragArea:      v.GetFloat64("spacecraft.drag_area"),
		SRP:           v.GetBool("forces.srp"),
		Cr:            v.GetFloat64("spacecraft.cr"),
		SRPArea:       v.GetFloat64("spacecraft.srp_area"),
		ThirdBodies:   v.GetStringSlice("forces.third_bodies"),
		MinAltitude:   v.GetFloat64("events.min_altitude"),
		Nodes:         v.GetBool("events.nodes"),
		Apsides:       v.GetBool("events.apsides"),
		Eclipses:      v.GetBool("events.eclipses"),
		Cadence:       v.GetFloat64("output.cadence"),
		Ephemeris:     v.GetBool("output.ephemeris"),
		CSVPath:       v.GetString("output.csv"),
		SQLite:        v.GetString("output.sqlite"),
	}
	if sc.Name == "" {
		sc.Name = "orbprop"
	}

	switch m := strings.ToLower(v.GetString("propagator.mode")); m {
	case "numerical":
		sc.Mode = Numerical
	case "semi-analytical", "mean":
		sc.Mode = SemiAnalytical
	default:
		return nil, configError("propagator.mode", "unknown mode %q", m)
	}
	switch o := strings.ToLower(v.GetString("propagator.output")); o {
	case "mean":
		sc.Output = OutputMean
	case "osculating":
		sc.Output = OutputOsculating
	default:
		return nil, configError("propagator.output", "unknown output %q", o)
	}

	var start Epoch
	var err error
	if v.IsSet("orbit.tle") {
		// The TLE carries its own epoch.
		if sc.Initial, err = readInitialState(v, Epoch{}); err != nil {
			return nil, err
		}
		start = sc.Initial.Epoch
	} else {
		if start, err = readEpoch(v, "epoch.start"); err != nil {
			return nil, err
		}
		if sc.Initial, err = readInitialState(v, start); err != nil {
			return nil, err
		}
	}
	switch {
	case v.IsSet("epoch.end"):
		end, err := readEpoch(v, "epoch.end")
		if err != nil {
			return nil, err
		}
		sc.Duration = end.Sub(start)
	case v.IsSet("epoch.days"):
		sc.Duration = v.GetFloat64("epoch.days") * 86400
	default:
		sc.Duration = v.GetDuration("epoch.duration").Seconds()
	}
	if !(sc.Duration > 0) {
		return nil, configError("epoch", "propagation duration must be positive")
	}
	if v.IsSet("events.stop") {
		if sc.StopDate, err = readEpoch(v, "events.stop"); err != nil {
			return nil, err
		}
	}

	for _, name := range v.GetStringSlice("events.stations") {
		st, err := StationFromName(name)
		if err != nil {
			return nil, &ConfigError{Field: "events.stations", Err: err}
		}
		sc.Stations = append(sc.Stations, st)
	}

	if path := v.GetString("forces.gravity_file"); path != "" {
		if sc.coeffs, err = LoadICGEM(path); err != nil {
			return nil, err
		}
	}
	// Build once so every configuration error surfaces here.
	if _, err := sc.Build(sc.Initial); err != nil {
		return nil, err
	}
	return sc, nil
}

// readEpoch accepts a Julian date or a date time string.
func readEpoch(v *viper.Viper, key string) (Epoch, error) {
	if !v.IsSet(key) {
		return Epoch{}, configError(key, "missing")
	}
	if t, ok := v.Get(key).(time.Time); ok {
		return NewEpoch(t), nil
	}
	if jd := v.GetFloat64(key); jd != 0 {
		return EpochFromJD(jd), nil
	}
	raw := v.GetString(key)
	for _, layout := range []string{dateTimeFormat, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewEpoch(t), nil
		}
	}
	return Epoch{}, configError(key, "could not understand %q", raw)
}

func readInitialState(v *viper.Viper, start Epoch) (State, error) {
	mass := v.GetFloat64("spacecraft.mass")
	if v.IsSet("orbit.tle") {
		lines := v.GetStringSlice("orbit.tle")
		if len(lines) != 2 {
			return State{}, configError("orbit.tle", "expected two lines, got %d", len(lines))
		}
		return StateFromTLE(lines[0], lines[1], mass)
	}
	body, err := CelestialObjectFromString(v.GetString("orbit.body"))
	if err != nil {
		return State{}, &ConfigError{Field: "orbit.body", Err: err}
	}
	a := v.GetFloat64("orbit.sma")
	e := v.GetFloat64("orbit.ecc")
	if !(a > 0) || e < 0 || e >= 1 {
		return State{}, configError("orbit", "need a closed orbit, got a=%f e=%f", a, e)
	}
	ω := Deg2rad(v.GetFloat64("orbit.argPeri"))
	ν := Deg2rad(v.GetFloat64("orbit.tAnomaly"))
	var el Elements
	if v.IsSet("orbit.mltan") {
		if el, err = SunSynchronousElements(body, start, a, e, ω, ν, v.GetFloat64("orbit.mltan")); err != nil {
			return State{}, err
		}
	} else {
		el = NewElementsFromOE(a, e, v.GetFloat64("orbit.inc"), v.GetFloat64("orbit.RAAN"), v.GetFloat64("orbit.argPeri"), v.GetFloat64("orbit.tAnomaly"))
	}
	return NewStateFromElements(start, el, mass, body), nil
}

// Target returns the epoch the scenario propagates to.
func (sc *Scenario) Target() Epoch {
	return sc.Initial.Epoch.Shift(sc.Duration)
}

// Forces returns new instances of the configured force models, in a fixed order.
func (sc *Scenario) Forces(origin CelestialObject) ([]ForceModel, error) {
	var forces []ForceModel
	if sc.SecularJ2 && sc.GravityDegree >= 2 {
		return nil, configError("forces.secular_j2", "cannot be combined with gravity_degree %d, which already includes J2", sc.GravityDegree)
	}
	switch {
	case sc.GravityDegree >= 2 && sc.GravityOrder == 0:
		z, err := NewZonalHarmonics(sc.GravityDegree, sc.coeffs)
		if err != nil {
			return nil, err
		}
		forces = append(forces, z)
	case sc.GravityDegree >= 2:
		g, err := NewGravityField(sc.GravityDegree, sc.GravityOrder, sc.coeffs)
		if err != nil {
			return nil, err
		}
		forces = append(forces, g)
	case sc.SecularJ2:
		forces = append(forces, SecularJ2{Body: origin})
	}
	switch sc.Atmosphere {
	case "":
	case "exponential":
		forces = append(forces, Drag{Cd: sc.Cd, Area: sc.DragArea, Atmosphere: ExponentialAtmosphere{}})
	case "harris-priester":
		forces = append(forces, Drag{Cd: sc.Cd, Area: sc.DragArea, Atmosphere: HarrisPriester{N: 2}})
	default:
		return nil, configError("forces.drag", "unknown atmosphere %q", sc.Atmosphere)
	}
	if sc.SRP {
		forces = append(forces, SolarRadiationPressure{Cr: sc.Cr, Area: sc.SRPArea})
	}
	for _, name := range sc.ThirdBodies {
		switch strings.ToLower(name) {
		case "sun":
			forces = append(forces, SunPerturbation())
		case "moon":
			forces = append(forces, MoonPerturbation())
		default:
			return nil, configError("forces.third_bodies", "unknown body %q", name)
		}
	}
	return forces, nil
}

// NewIntegrator returns a new integrator for a propagation starting at s.
func (sc *Scenario) NewIntegrator(s State) (integrator.Integrator, error) {
	var (
		in  integrator.Integrator
		err error
	)
	switch sc.Integrator {
	case "rk4":
		step := sc.Step
		if step == 0 {
			step = 60
			if sc.Mode == SemiAnalytical {
				step = PeriodStep(s)
			}
		}
		in, err = integrator.NewRK4(step)
	case "rk78":
		var abs, rel []float64
		if sc.Mode == SemiAnalytical {
			abs, rel = ElementTolerances(sc.PositionTol, s.Elements())
		} else {
			abs, rel = CartesianTolerances(sc.PositionTol, s)
		}
		in, err = integrator.NewRK78(sc.MinStep, sc.MaxStep, abs, rel)
	default:
		return nil, configError("propagator.integrator", "unknown integrator %q", sc.Integrator)
	}
	if err != nil {
		return nil, &ConfigError{Field: "propagator", Err: err}
	}
	return in, nil
}

// Detectors returns new instances of the configured event detectors.
func (sc *Scenario) Detectors() []*EventDetector {
	var dets []*EventDetector
	if sc.MinAltitude > 0 {
		dets = append(dets, AltitudeDetector(sc.MinAltitude, Stop))
	}
	if !sc.StopDate.IsZero() {
		dets = append(dets, DateDetector(sc.StopDate))
	}
	if sc.Nodes {
		dets = append(dets, NodeDetector(Continue))
	}
	if sc.Apsides {
		dets = append(dets, ApsideDetector(Continue))
	}
	if sc.Eclipses {
		dets = append(dets, EclipseDetector(0.5, Continue))
	}
	for _, st := range sc.Stations {
		dets = append(dets, ElevationDetector(st, Continue))
	}
	return dets
}

// Build returns a propagator of this scenario starting from the provided state,
// which is usually Initial or a dispersion of it.
func (sc *Scenario) Build(initial State, opts ...Option) (*Propagator, error) {
	forces, err := sc.Forces(initial.Origin)
	if err != nil {
		return nil, err
	}
	in, err := sc.NewIntegrator(initial)
	if err != nil {
		return nil, err
	}
	all := []Option{WithForces(forces...), WithDetector(sc.Detectors()...)}
	if sc.Cadence != 0 {
		all = append(all, WithSampleCadence(sc.Cadence))
	}
	if sc.Ephemeris {
		all = append(all, WithEphemeris())
	}
	if sc.Mode == SemiAnalytical {
		all = append(all, WithMeanElements(sc.InitialIsMean, sc.Output))
	}
	return NewPropagator(initial, in, append(all, opts...)...)
}

// Logger returns a logfmt logger tagged with the scenario name.
func (sc *Scenario) Logger() log.Logger {
	klog := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	return log.With(klog, "scenario", sc.Name)
}

func (sc *Scenario) String() string {
	return fmt.Sprintf("%s: %s %s for %.0fs from %s", sc.Name, sc.Mode, sc.Integrator, sc.Duration, sc.Initial)
}
