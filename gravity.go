package orbprop

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/sidereal"
	"gonum.org/v1/gonum/spatial/r3"
)

// ZonalHarmonics is the axis symmetric part of a gravity field, J2 to J_Degree.
type ZonalHarmonics struct {
	Degree int
	gm, re float64
	jn     []float64 // unnormalized J_n
}

// NewZonalHarmonics returns the zonal field up to degree from the provided
// coefficients, or from the built-in Earth field when coeffs is nil.
func NewZonalHarmonics(degree int, coeffs *GravityCoefficients) (*ZonalHarmonics, error) {
	if coeffs == nil {
		coeffs = EarthCoefficients()
	}
	if degree < 2 || degree > coeffs.MaxDegree {
		return nil, configError("gravity degree", "zonal degree %d outside [2, %d] of %s", degree, coeffs.MaxDegree, coeffs.Name)
	}
	z := &ZonalHarmonics{Degree: degree, gm: coeffs.GM, re: coeffs.Radius, jn: make([]float64, degree+1)}
	for n := 2; n <= degree; n++ {
		z.jn[n] = coeffs.J(n)
	}
	return z, nil
}

// Name implements ForceModel.
func (z *ZonalHarmonics) Name() string { return fmt.Sprintf("zonal %dx0", z.Degree) }

// Acceleration implements ForceModel using the Legendre polynomial recursion.
func (z *ZonalHarmonics) Acceleration(s State) (r3.Vec, error) {
	R := s.R
	r := r3.Norm(R)
	sφ := R.Z / r
	N := z.Degree
	P := make([]float64, N+1)
	dP := make([]float64, N+1)
	P[0], P[1] = 1, sφ
	dP[0], dP[1] = 0, 1
	for n := 2; n <= N; n++ {
		fn := float64(n)
		P[n] = ((2*fn-1)*sφ*P[n-1] - (fn-1)*P[n-2]) / fn
		dP[n] = dP[n-2] + (2*fn-1)*P[n-1]
	}
	r3inv := 1 / (r * r * r)
	// Partials of sin(φ)=z/r.
	dsdx := -R.Z * R.X * r3inv
	dsdy := -R.Z * R.Y * r3inv
	dsdz := 1/r - R.Z*R.Z*r3inv
	var ax, ay, az float64
	reN := z.re
	for n := 2; n <= N; n++ {
		reN *= z.re
		fn := float64(n)
		k := -z.gm * z.jn[n] * reN
		rn1 := math.Pow(r, -(fn + 1))
		radial := -(fn + 1) * rn1 / (r * r) * P[n]
		lat := rn1 * dP[n]
		ax += k * (radial*R.X + lat*dsdx)
		ay += k * (radial*R.Y + lat*dsdy)
		az += k * (radial*R.Z + lat*dsdz)
	}
	return r3.Vec{X: ax, Y: ay, Z: az}, nil
}

// GravityField is a full spherical harmonics field evaluated in the body fixed frame.
type GravityField struct {
	Degree, Order int
	gm, re        float64
	c, s          [][]float64 // unnormalized
}

// NewGravityField returns a degree x order field. The built-in coefficients
// only support tesserals up to degree 4: larger fields require a gravity file.
func NewGravityField(degree, order int, coeffs *GravityCoefficients) (*GravityField, error) {
	if coeffs == nil {
		coeffs = EarthCoefficients()
	}
	if degree < 2 || degree > coeffs.MaxDegree {
		return nil, configError("gravity degree", "degree %d outside [2, %d] of %s", degree, coeffs.MaxDegree, coeffs.Name)
	}
	if order < 0 || order > degree || order > coeffs.MaxOrder {
		return nil, configError("gravity order", "order %d unsupported by %s (max %d)", order, coeffs.Name, coeffs.MaxOrder)
	}
	if order > 0 && degree > coeffs.CompleteDegree {
		return nil, configError("gravity file", "%s only provides tesserals up to degree %d, a %dx%d field requires a gravity file", coeffs.Name, coeffs.CompleteDegree, degree, order)
	}
	g := &GravityField{Degree: degree, Order: order, gm: coeffs.GM, re: coeffs.Radius}
	g.c = make([][]float64, degree+1)
	g.s = make([][]float64, degree+1)
	for n := 0; n <= degree; n++ {
		g.c[n] = make([]float64, n+1)
		g.s[n] = make([]float64, n+1)
		for m := 0; m <= n && m <= order; m++ {
			g.c[n][m], g.s[n][m] = coeffs.Unnormalized(n, m)
		}
	}
	return g, nil
}

// Name implements ForceModel.
func (g *GravityField) Name() string { return fmt.Sprintf("gravity %dx%d", g.Degree, g.Order) }

// Acceleration implements ForceModel.
func (g *GravityField) Acceleration(s State) (r3.Vec, error) {
	if g.Order == 0 {
		// Axis symmetric, no need to rotate.
		return g.bodyFixed(s.R), nil
	}
	θ := GMST(s.Epoch)
	return ECEF2ECI(g.bodyFixed(ECI2ECEF(s.R, θ)), θ), nil
}

// bodyFixed evaluates the field with the Cunningham V/W recursion (Montenbruck & Gill 3.2),
// excluding the central term.
func (g *GravityField) bodyFixed(R r3.Vec) r3.Vec {
	N := g.Degree + 1
	M := g.Order + 1
	V := make([][]float64, N+1)
	W := make([][]float64, N+1)
	for n := range V {
		V[n] = make([]float64, M+1)
		W[n] = make([]float64, M+1)
	}
	r2 := r3.Dot(R, R)
	ρ := g.re * g.re / r2
	x0, y0, z0 := g.re*R.X/r2, g.re*R.Y/r2, g.re*R.Z/r2
	V[0][0] = g.re / math.Sqrt(r2)
	for m := 0; m <= M; m++ {
		fm := float64(m)
		if m > 0 {
			V[m][m] = (2*fm - 1) * (x0*V[m-1][m-1] - y0*W[m-1][m-1])
			W[m][m] = (2*fm - 1) * (x0*W[m-1][m-1] + y0*V[m-1][m-1])
		}
		if m+1 <= N {
			V[m+1][m] = (2*fm + 1) * z0 * V[m][m]
			W[m+1][m] = (2*fm + 1) * z0 * W[m][m]
		}
		for n := m + 2; n <= N; n++ {
			fn := float64(n)
			V[n][m] = ((2*fn-1)*z0*V[n-1][m] - (fn+fm-1)*ρ*V[n-2][m]) / (fn - fm)
			W[n][m] = ((2*fn-1)*z0*W[n-1][m] - (fn+fm-1)*ρ*W[n-2][m]) / (fn - fm)
		}
	}
	var ax, ay, az float64
	for m := 0; m <= g.Order; m++ {
		for n := max(m, 2); n <= g.Degree; n++ {
			C, S := g.c[n][m], g.s[n][m]
			if m == 0 {
				ax -= C * V[n+1][1]
				ay -= C * W[n+1][1]
				az += float64(n+1) * (-C * V[n+1][0])
				continue
			}
			fac := float64((n - m + 1) * (n - m + 2))
			ax += 0.5 * ((-C*V[n+1][m+1] - S*W[n+1][m+1]) + fac*(C*V[n+1][m-1]+S*W[n+1][m-1]))
			ay += 0.5 * ((-C*W[n+1][m+1] + S*V[n+1][m+1]) + fac*(-C*W[n+1][m-1]+S*V[n+1][m-1]))
			az += float64(n-m+1) * (-C*V[n+1][m] - S*W[n+1][m])
		}
	}
	k := g.gm / (g.re * g.re)
	return r3.Vec{X: k * ax, Y: k * ay, Z: k * az}
}

// GMST returns the Greenwich mean sidereal angle in radians.
func GMST(e Epoch) float64 {
	return sidereal.Mean(e.JD()).Rad()
}
