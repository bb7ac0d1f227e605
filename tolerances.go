package orbprop

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// CartesianTolerances returns absolute and relative tolerance vectors for
// [r v] integration, given a position tolerance dP in km.
// The velocity tolerance is the one matching dP on a Keplerian arc at s.
func CartesianTolerances(dP float64, s State) (abs, rel []float64) {
	r := r3.Norm(s.R)
	v := r3.Norm(s.V)
	dV := s.Origin.μ * dP / (v * r * r)
	abs = []float64{dP, dP, dP, dV, dV, dV}
	rel = []float64{dP / r}
	return abs, rel
}

// ElementTolerances returns tolerance vectors for mean element integration,
// given a position tolerance dP in km.
func ElementTolerances(dP float64, el Elements) (abs, rel []float64) {
	angle := dP / el.A
	abs = []float64{dP, angle, angle, angle, angle, angle}
	rel = []float64{dP / el.A}
	return abs, rel
}
