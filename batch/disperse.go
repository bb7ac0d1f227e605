package batch

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/orbprop"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Sigmas are the one sigma injection errors on the Keplerian elements
// (km and radians). Zero components are not dispersed.
type Sigmas struct {
	A, E, I, RAAN, ArgPeri, M float64
}

func (s Sigmas) vector() []float64 {
	return []float64{s.A, s.E, s.I, s.RAAN, s.ArgPeri, s.M}
}

// Disperse returns n initial states whose elements are drawn from a normal
// distribution centered on s. The first state is s itself.
func Disperse(s orbprop.State, sigmas Sigmas, n int) ([]orbprop.State, error) {
	if n < 1 {
		return nil, fmt.Errorf("need at least one run, got %d", n)
	}
	el := s.Elements()
	mean := []float64{el.A, el.E, el.I, el.RAAN, el.ArgPeri, el.MeanAnomaly()}
	sv := sigmas.vector()
	var dims []int
	for i, v := range sv {
		if v < 0 {
			return nil, fmt.Errorf("negative sigma %f", v)
		}
		if v > 0 {
			dims = append(dims, i)
		}
	}
	out := make([]orbprop.State, n)
	out[0] = s
	if len(dims) == 0 {
		for i := 1; i < n; i++ {
			out[i] = s
		}
		return out, nil
	}
	mu := make([]float64, len(dims))
	cov := mat.NewSymDense(len(dims), nil)
	for k, d := range dims {
		mu[k] = mean[d]
		cov.SetSym(k, k, sv[d]*sv[d])
	}
	normal, ok := distmv.NewNormal(mu, cov, nil)
	if !ok {
		return nil, fmt.Errorf("covariance is not positive definite")
	}
	draw := make([]float64, len(dims))
	for i := 1; i < n; i++ {
		x := append([]float64(nil), mean...)
		normal.Rand(draw)
		for k, d := range dims {
			x[d] = draw[k]
		}
		x[1] = math.Max(0, math.Min(x[1], 0.999))
		x[2] = math.Max(0, math.Min(x[2], math.Pi))
		d := orbprop.Elements{A: x[0], E: x[1], I: x[2], RAAN: x[3], ArgPeri: x[4], TrueAnom: orbprop.TrueFromMean(x[5], x[1])}
		out[i] = orbprop.NewStateFromElements(s.Epoch, d.Normalized(), s.Mass, s.Origin)
	}
	return out, nil
}
