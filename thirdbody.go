package orbprop

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
	"gonum.org/v1/gonum/spatial/r3"
)

// SunPosition returns the geocentric equatorial position of the Sun in km.
// The analytical theory is of date; the frame difference with J2000 is ignored.
func SunPosition(e Epoch) r3.Vec {
	jde := e.JD()
	α, δ := solar.ApparentEquatorial(jde)
	d := solar.Radius(base.J2000Century(jde)) * AU
	sα, cα := math.Sincos(α.Rad())
	sδ, cδ := math.Sincos(δ.Rad())
	return r3.Vec{X: d * cδ * cα, Y: d * cδ * sα, Z: d * sδ}
}

// MoonPosition returns the geocentric equatorial position of the Moon in km.
func MoonPosition(e Epoch) r3.Vec {
	jde := e.JD()
	λ, β, Δ := moonposition.Position(jde)
	ε := nutation.MeanObliquity(jde).Rad()
	sλ, cλ := math.Sincos(λ.Rad())
	sβ, cβ := math.Sincos(β.Rad())
	sε, cε := math.Sincos(ε)
	return r3.Vec{
		X: Δ * cβ * cλ,
		Y: Δ * (cε*cβ*sλ - sε*sβ),
		Z: Δ * (sε*cβ*sλ + cε*sβ),
	}
}

// ThirdBody is the differential attraction of a perturbing body.
type ThirdBody struct {
	Body     CelestialObject
	Position func(Epoch) r3.Vec // Position relative to the central body, in km.
}

// SunPerturbation returns the solar third body perturbation.
func SunPerturbation() ThirdBody {
	return ThirdBody{Body: Sun, Position: SunPosition}
}

// MoonPerturbation returns the lunar third body perturbation.
func MoonPerturbation() ThirdBody {
	return ThirdBody{Body: Moon, Position: MoonPosition}
}

// Name implements ForceModel.
func (tb ThirdBody) Name() string { return "third body " + tb.Body.Name }

// Acceleration implements ForceModel.
func (tb ThirdBody) Acceleration(s State) (r3.Vec, error) {
	pos := tb.Position(s.Epoch)
	scPert := r3.Sub(pos, s.R)
	scN := r3.Norm(scPert)
	posN := r3.Norm(pos)
	return r3.Scale(tb.Body.μ, r3.Sub(r3.Scale(1/(scN*scN*scN), scPert), r3.Scale(1/(posN*posN*posN), pos))), nil
}
