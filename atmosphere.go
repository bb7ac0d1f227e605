package orbprop

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Atmosphere returns the mass density in kg/m^3 at a state.
type Atmosphere interface {
	Name() string
	Density(s State) (float64, error)
}

// ExponentialAtmosphere is the piecewise exponential model (Vallado table 8-4).
// Below the surface it returns a domain error; above 1000 km it extrapolates
// with the last scale height.
type ExponentialAtmosphere struct{}

// Name implements Atmosphere.
func (ExponentialAtmosphere) Name() string { return "exponential" }

var exponentialTable = []struct{ h0, ρ0, H float64 }{
	{0, 1.225, 7.249}, {25, 3.899e-2, 6.349}, {30, 1.774e-2, 6.682}, {40, 3.972e-3, 7.554},
	{50, 1.057e-3, 8.382}, {60, 3.206e-4, 7.714}, {70, 8.770e-5, 6.549}, {80, 1.905e-5, 5.799},
	{90, 3.396e-6, 5.382}, {100, 5.297e-7, 5.877}, {110, 9.661e-8, 7.263}, {120, 2.438e-8, 9.473},
	{130, 8.484e-9, 12.636}, {140, 3.845e-9, 16.149}, {150, 2.070e-9, 22.523}, {180, 5.464e-10, 29.740},
	{200, 2.789e-10, 37.105}, {250, 7.248e-11, 45.546}, {300, 2.418e-11, 53.628}, {350, 9.518e-12, 53.298},
	{400, 3.725e-12, 58.515}, {450, 1.585e-12, 60.828}, {500, 6.967e-13, 63.822}, {600, 1.454e-13, 71.835},
	{700, 3.614e-14, 88.667}, {800, 1.170e-14, 124.64}, {900, 5.245e-15, 181.05}, {1000, 3.019e-15, 268.00},
}

// Density implements Atmosphere.
func (a ExponentialAtmosphere) Density(s State) (float64, error) {
	h := s.Altitude()
	if h < 0 || math.IsNaN(h) {
		return 0, &DomainError{Model: "exponential atmosphere", Quantity: "altitude(km)", Value: h, Min: 0, Max: math.Inf(1)}
	}
	i := sort.Search(len(exponentialTable), func(i int) bool { return exponentialTable[i].h0 > h }) - 1
	row := exponentialTable[i]
	return row.ρ0 * math.Exp(-(h-row.h0)/row.H), nil
}

// HarrisPriester is the Harris-Priester model with a diurnal bulge lagging the Sun by 30 degrees.
// It is only defined between 100 and 1000 km.
type HarrisPriester struct {
	N int // Cosine exponent, 2 for low inclination orbits up to 6 for polar ones.
}

// Name implements Atmosphere.
func (HarrisPriester) Name() string { return "harris-priester" }

const harrisPriesterLag = 30 * deg2rad

// Altitude (km), minimum and maximum density (kg/m^3), Montenbruck and Gill table 3.8.
var harrisPriesterTable = [][3]float64{
	{100, 4.974e-07, 4.974e-07}, {120, 2.490e-08, 2.490e-08}, {130, 8.377e-09, 8.710e-09},
	{140, 3.899e-09, 4.059e-09}, {150, 2.122e-09, 2.215e-09}, {160, 1.263e-09, 1.344e-09},
	{170, 8.008e-10, 8.758e-10}, {180, 5.283e-10, 6.010e-10}, {190, 3.617e-10, 4.297e-10},
	{200, 2.557e-10, 3.162e-10}, {210, 1.839e-10, 2.396e-10}, {220, 1.341e-10, 1.853e-10},
	{230, 9.949e-11, 1.455e-10}, {240, 7.488e-11, 1.157e-10}, {250, 5.709e-11, 9.308e-11},
	{260, 4.403e-11, 7.555e-11}, {270, 3.430e-11, 6.182e-11}, {280, 2.697e-11, 5.095e-11},
	{290, 2.139e-11, 4.226e-11}, {300, 1.708e-11, 3.526e-11}, {320, 1.099e-11, 2.511e-11},
	{340, 7.214e-12, 1.819e-11}, {360, 4.824e-12, 1.337e-11}, {380, 3.274e-12, 9.955e-12},
	{400, 2.249e-12, 7.492e-12}, {420, 1.558e-12, 5.684e-12}, {440, 1.091e-12, 4.355e-12},
	{460, 7.701e-13, 3.362e-12}, {480, 5.474e-13, 2.612e-12}, {500, 3.916e-13, 2.042e-12},
	{520, 2.819e-13, 1.605e-12}, {540, 2.042e-13, 1.267e-12}, {560, 1.488e-13, 1.005e-12},
	{580, 1.092e-13, 7.997e-13}, {600, 8.070e-14, 6.390e-13}, {620, 6.012e-14, 5.123e-13},
	{640, 4.519e-14, 4.121e-13}, {660, 3.430e-14, 3.325e-13}, {680, 2.632e-14, 2.691e-13},
	{700, 2.043e-14, 2.185e-13}, {720, 1.607e-14, 1.779e-13}, {740, 1.281e-14, 1.452e-13},
	{760, 1.036e-14, 1.190e-13}, {780, 8.496e-15, 9.776e-14}, {800, 7.069e-15, 8.059e-14},
	{840, 5.070e-15, 5.500e-14}, {880, 3.756e-15, 3.804e-14}, {920, 2.887e-15, 2.681e-14},
	{960, 2.303e-15, 1.937e-14}, {1000, 1.900e-15, 1.451e-14},
}

// Density implements Atmosphere.
func (a HarrisPriester) Density(s State) (float64, error) {
	h := s.Altitude()
	lo, hi := harrisPriesterTable[0][0], harrisPriesterTable[len(harrisPriesterTable)-1][0]
	if !(h >= lo && h <= hi) {
		return 0, &DomainError{Model: "Harris-Priester", Quantity: "altitude(km)", Value: h, Min: lo, Max: hi}
	}
	i := sort.Search(len(harrisPriesterTable), func(i int) bool { return harrisPriesterTable[i][0] > h }) - 1
	if i == len(harrisPriesterTable)-1 {
		i--
	}
	r0, r1 := harrisPriesterTable[i], harrisPriesterTable[i+1]
	Hmin := (r0[0] - r1[0]) / math.Log(r1[1]/r0[1])
	Hmax := (r0[0] - r1[0]) / math.Log(r1[2]/r0[2])
	ρmin := r0[1] * math.Exp((r0[0]-h)/Hmin)
	ρmax := r0[2] * math.Exp((r0[0]-h)/Hmax)

	sun := unit(SunPosition(s.Epoch))
	α := math.Atan2(sun.Y, sun.X) + harrisPriesterLag
	δ := math.Asin(clamp(sun.Z, -1, 1))
	sα, cα := math.Sincos(α)
	sδ, cδ := math.Sincos(δ)
	apex := r3.Vec{X: cδ * cα, Y: cδ * sα, Z: sδ}
	cosψ := r3.Dot(unit(s.R), apex)
	n := a.N
	if n == 0 {
		n = 2
	}
	bulge := math.Pow(math.Max(0, (1+cosψ)/2), float64(n)/2)
	return ρmin + (ρmax-ρmin)*bulge, nil
}

// Drag is the atmospheric drag of a cannonball spacecraft.
type Drag struct {
	Cd         float64 // drag coefficient
	Area       float64 // m^2
	Atmosphere Atmosphere
}

// Name implements ForceModel.
func (d Drag) Name() string { return "drag (" + d.Atmosphere.Name() + ")" }

// Acceleration implements ForceModel. The atmosphere co-rotates with the body.
func (d Drag) Acceleration(s State) (r3.Vec, error) {
	ρ, err := d.Atmosphere.Density(s)
	if err != nil {
		return r3.Vec{}, err
	}
	ω := r3.Vec{Z: s.Origin.RotationRate}
	vRel := r3.Sub(s.V, r3.Cross(ω, s.R))
	// ρ A/m is in 1/m, hence the conversion to 1/km.
	k := -0.5 * ρ * d.Cd * d.Area / s.Mass * 1e3 * r3.Norm(vRel)
	return r3.Scale(k, vRel), nil
}
