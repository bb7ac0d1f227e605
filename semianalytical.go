package orbprop

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// averagingNodes is the number of mean anomalies sampled per revolution.
	averagingNodes = 32
	meanMinEcc     = 1e-6
	meanMinInc     = 1e-6
	meanMaxIter    = 20
	meanConvTol    = 1e-12
)

// MeanElements are Keplerian elements freed of their short-period variations.
// M is left unwrapped during integration.
type MeanElements struct {
	A, E, I, RAAN, ArgPeri, M float64
}

// Elements returns the Keplerian elements with the same values.
func (m MeanElements) Elements() Elements {
	return Elements{A: m.A, E: m.E, I: m.I, RAAN: m.RAAN, ArgPeri: m.ArgPeri, TrueAnom: TrueFromMean(m.M, m.E)}
}

func (m MeanElements) vector() []float64 {
	return []float64{m.A, m.E, m.I, m.RAAN, m.ArgPeri, m.M}
}

func meanElementsFromVector(y []float64) MeanElements {
	return MeanElements{y[0], y[1], y[2], y[3], y[4], y[5]}
}

func (m MeanElements) String() string {
	return fmt.Sprintf("ā=%.3f ē=%.6f ī=%.4f Ω̄=%.4f ω̄=%.4f M̄=%.4f", m.A, m.E, Rad2deg(m.I), Rad2deg(m.RAAN), Rad2deg(m.ArgPeri), Rad2deg(m.M))
}

// checkMeanDomain returns a DomainError for orbits the equinoctial-free
// formulation cannot handle.
func checkMeanDomain(m MeanElements) error {
	switch {
	case !(m.A > 0):
		return &DomainError{Model: "mean elements", Quantity: "a", Value: m.A, Min: 0, Max: math.Inf(1)}
	case !(m.E >= meanMinEcc && m.E < 1):
		return &DomainError{Model: "mean elements", Quantity: "e", Value: m.E, Min: meanMinEcc, Max: 1}
	case !(m.I >= meanMinInc && m.I <= math.Pi-meanMinInc):
		return &DomainError{Model: "mean elements", Quantity: "i", Value: m.I, Min: meanMinInc, Max: math.Pi - meanMinInc}
	}
	return nil
}

// meanModel evaluates averaged rates and short-period terms of a set of force models.
type meanModel struct {
	origin   CelestialObject
	mass     float64
	raters   []MeanElementRater
	averaged []ForceModel
	fft      *fourier.FFT
	maxIter  int // of the osculating to mean conversion
}

func newMeanModel(forces []ForceModel, mass float64, origin CelestialObject) *meanModel {
	mm := &meanModel{origin: origin, mass: mass, fft: fourier.NewFFT(averagingNodes), maxIter: meanMaxIter}
	for _, f := range forces {
		if r, ok := f.(MeanElementRater); ok {
			mm.raters = append(mm.raters, r)
		} else {
			mm.averaged = append(mm.averaged, f)
		}
	}
	return mm
}

// samples returns the Gauss rates of the averaged forces at equally spaced mean anomalies,
// one row per element.
func (mm *meanModel) samples(m MeanElements, epoch Epoch) ([6][]float64, error) {
	var out [6][]float64
	for k := range out {
		out[k] = make([]float64, averagingNodes)
	}
	μ := mm.origin.μ
	for j := 0; j < averagingNodes; j++ {
		el := m
		el.M = twoPi * float64(j) / averagingNodes
		osc := el.Elements()
		R, V := osc.RV(μ)
		acc, err := SumAccelerations(State{Epoch: epoch, R: R, V: V, Mass: mm.mass, Origin: mm.origin}, mm.averaged)
		if err != nil {
			return out, err
		}
		rates := gaussRates(osc, R, V, acc, μ)
		for k := range out {
			out[k][j] = rates[k]
		}
	}
	return out, nil
}

// rates returns the secular rates of the mean elements, Keplerian motion included.
func (mm *meanModel) rates(m MeanElements, epoch Epoch) (ElementRates, error) {
	if err := checkMeanDomain(m); err != nil {
		return ElementRates{}, err
	}
	var total ElementRates
	if len(mm.averaged) > 0 {
		samples, err := mm.samples(m, epoch)
		if err != nil {
			return total, err
		}
		// The trapezoidal rule over a full period is the plain average.
		for k := range total {
			var sum float64
			for _, v := range samples[k] {
				sum += v
			}
			total[k] = sum / averagingNodes
		}
	}
	for _, r := range mm.raters {
		rates, err := r.MeanElementRates(m, epoch, mm.mass, mm.origin)
		if err != nil {
			return total, err
		}
		for k := range total {
			total[k] += rates[k]
		}
	}
	total[5] += m.Elements().MeanMotion(mm.origin.μ)
	return total, nil
}

// shortPeriodic returns the first order periodic part of each element at m.M,
// from the Fourier series of the sampled rates integrated over mean anomaly.
func (mm *meanModel) shortPeriodic(m MeanElements, epoch Epoch) ([6]float64, error) {
	var η [6]float64
	if len(mm.averaged) == 0 {
		return η, nil
	}
	samples, err := mm.samples(m, epoch)
	if err != nil {
		return η, err
	}
	n := m.Elements().MeanMotion(mm.origin.μ)
	scale := 2 / (float64(averagingNodes) * n)
	coeffs := make([]complex128, averagingNodes/2+1)
	var aTwice float64
	for k := range η {
		coeffs = mm.fft.Coefficients(coeffs, samples[k])
		var sum float64
		// The Nyquist term is dropped: it has no well defined phase.
		for j := 1; j < averagingNodes/2; j++ {
			ij := complex(0, float64(j))
			e := cmplx.Exp(complex(0, float64(j)*m.M))
			sum += real(coeffs[j] * e / ij)
			if k == 0 {
				aTwice += real(coeffs[j] * e / (ij * ij))
			}
		}
		η[k] = scale * sum
	}
	// The mean anomaly also drifts with the periodic part of the mean motion.
	η[5] += -1.5 / m.A * scale * aTwice
	return η, nil
}

// osculating returns the osculating elements of m.
func (mm *meanModel) osculating(m MeanElements, epoch Epoch) (Elements, error) {
	η, err := mm.shortPeriodic(m, epoch)
	if err != nil {
		return Elements{}, err
	}
	y := m.vector()
	for k := range y {
		y[k] += η[k]
	}
	return meanElementsFromVector(y).Elements(), nil
}

// mean converts osculating elements by fixed point iteration on the short-period terms.
func (mm *meanModel) mean(o Elements, epoch Epoch) (MeanElements, error) {
	osc := MeanElements{o.A, o.E, o.I, o.RAAN, o.ArgPeri, o.MeanAnomaly()}
	m := osc
	var delta float64
	for iter := 0; iter < mm.maxIter; iter++ {
		if err := checkMeanDomain(m); err != nil {
			return m, err
		}
		η, err := mm.shortPeriodic(m, epoch)
		if err != nil {
			return m, err
		}
		next := osc.vector()
		prev := m.vector()
		delta = 0
		for k := range next {
			next[k] -= η[k]
			delta = math.Max(delta, math.Abs(next[k]-prev[k])/math.Max(1, math.Abs(prev[k])))
		}
		m = meanElementsFromVector(next)
		if delta < meanConvTol {
			return m, nil
		}
	}
	return m, fmt.Errorf("%w: mean elements did not converge after %d iterations (last change %g)", ErrNumericalInstability, mm.maxIter, delta)
}
