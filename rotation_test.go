package orbprop

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecEqual(a, b r3.Vec, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) && scalar.EqualWithinAbs(a.Y, b.Y, tol) && scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

func TestR3R1R3(t *testing.T) {
	// A 3-1-3 rotation is orthonormal.
	dcm := R3R1R3(0.3, 1.2, -2.1)
	var prod mat.Dense
	prod.Mul(dcm, dcm.T())
	if !mat.EqualApprox(&prod, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-14) {
		t.Fatalf("R·Rᵀ != I\n%v", mat.Formatted(&prod))
	}
	// With no inclination the rotation is about Z by Ω+ω.
	v := r3.Vec{X: 1}
	got := MxV33(R3R1R3(math.Pi/6, 0, math.Pi/6).T(), v)
	if !vecEqual(got, r3.Vec{X: 0.5, Y: math.Sqrt(3) / 2}, 1e-15) {
		t.Fatalf("unexpected rotation %+v", got)
	}
}

func TestPQW2ECI(t *testing.T) {
	// The perifocal X axis points to periapsis: [cosΩcosω - sinΩsinωcosi, ...].
	i, ω, Ω := 0.5, 0.7, 1.1
	got := PQW2ECI(i, ω, Ω, r3.Vec{X: 1})
	sΩ, cΩ := math.Sincos(Ω)
	sω, cω := math.Sincos(ω)
	si, ci := math.Sincos(i)
	exp := r3.Vec{X: cΩ*cω - sΩ*sω*ci, Y: sΩ*cω + cΩ*sω*ci, Z: sω * si}
	if !vecEqual(got, exp, 1e-15) {
		t.Fatalf("got %+v expected %+v", got, exp)
	}
}

func TestECEFRoundTrip(t *testing.T) {
	v := r3.Vec{X: 7000, Y: -120, Z: 35}
	θ := 1.234
	if back := ECEF2ECI(ECI2ECEF(v, θ), θ); !vecEqual(back, v, 1e-10) {
		t.Fatalf("round trip failed: %+v", back)
	}
	if z := ECI2ECEF(v, θ).Z; z != v.Z {
		t.Fatal("rotation about Z changed Z")
	}
}
