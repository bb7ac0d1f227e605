package orbprop

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RSW returns the radial, along track and cross track components of an inertial vector.
func RSW(R, V, a r3.Vec) (fr, fs, fw float64) {
	rHat := unit(R)
	wHat := unit(r3.Cross(R, V))
	sHat := r3.Cross(wHat, rHat)
	return r3.Dot(a, rHat), r3.Dot(a, sHat), r3.Dot(a, wHat)
}

// gaussRates returns the osculating element rates [a e i Ω ω M] caused by the
// perturbing acceleration acc (Vallado 9-24). The Keplerian mean motion is not included.
func gaussRates(o Elements, R, V, acc r3.Vec, μ float64) ElementRates {
	fr, fs, fw := RSW(R, V, acc)
	a, e := o.A, o.E
	p := o.SemiParameter()
	h := math.Sqrt(μ * p)
	r := r3.Norm(R)
	sinν, cosν := math.Sincos(o.TrueAnom)
	sinu, cosu := math.Sincos(o.ArgPeri + o.TrueAnom)
	sini, cosi := math.Sincos(o.I)
	b := a * math.Sqrt(1-e*e)

	var rates ElementRates
	rates[0] = 2 * a * a / h * (e*sinν*fr + p/r*fs)
	rates[1] = (p*sinν*fr + ((p+r)*cosν+r*e)*fs) / h
	rates[2] = r * cosu * fw / h
	rates[3] = r * sinu * fw / (h * sini)
	rates[4] = (-p*cosν*fr+(p+r)*sinν*fs)/(h*e) - r*sinu*cosi*fw/(h*sini)
	rates[5] = b / (a * h * e) * ((p*cosν-2*r*e)*fr - (p+r)*sinν*fs)
	return rates
}
