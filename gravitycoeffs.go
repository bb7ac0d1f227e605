package orbprop

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
)

// GravityCoefficients holds fully normalized spherical harmonic coefficients.
// Values are never modified once loaded and may be shared between runs.
type GravityCoefficients struct {
	Name       string
	GM, Radius float64 // km^3/s^2 and km
	MaxDegree  int
	MaxOrder   int
	// CompleteDegree is the highest degree for which every order up to MaxOrder is present.
	CompleteDegree int
	c, s           [][]float64
}

func newGravityCoefficients(name string, gm, radius float64, maxDegree int) *GravityCoefficients {
	g := &GravityCoefficients{Name: name, GM: gm, Radius: radius, MaxDegree: maxDegree}
	g.c = make([][]float64, maxDegree+1)
	g.s = make([][]float64, maxDegree+1)
	for n := range g.c {
		g.c[n] = make([]float64, n+1)
		g.s[n] = make([]float64, n+1)
	}
	return g
}

// Normalized returns the fully normalized C and S coefficients, or zeros if absent.
func (g *GravityCoefficients) Normalized(n, m int) (C, S float64) {
	if n > g.MaxDegree || m > n || n < 0 || m < 0 {
		return 0, 0
	}
	return g.c[n][m], g.s[n][m]
}

// Unnormalized returns the conventional (unnormalized) C and S coefficients.
func (g *GravityCoefficients) Unnormalized(n, m int) (C, S float64) {
	C, S = g.Normalized(n, m)
	f := normalizationFactor(n, m)
	return C * f, S * f
}

// J returns the unnormalized zonal term J_n = -C_n0.
func (g *GravityCoefficients) J(n int) float64 {
	C, _ := g.Unnormalized(n, 0)
	return -C
}

// normalizationFactor is sqrt((2-δ_m0)(2n+1)(n-m)!/(n+m)!).
func normalizationFactor(n, m int) float64 {
	ratio := 1.0
	for k := n - m + 1; k <= n+m; k++ {
		ratio /= float64(k)
	}
	δ := 2.0
	if m == 0 {
		δ = 1
	}
	return math.Sqrt(δ * float64(2*n+1) * ratio)
}

var (
	earthCoefficients     *GravityCoefficients
	earthCoefficientsOnce sync.Once
)

// EarthCoefficients returns the built-in EGM96 low degree field: zonals up to
// degree 15 and tesserals up to degree and order 4.
func EarthCoefficients() *GravityCoefficients {
	earthCoefficientsOnce.Do(func() {
		g := newGravityCoefficients("EGM96 (built-in)", 398600.4415, 6378.1363, 15)
		zonals := []float64{0, 0,
			-4.84165371736e-4, 9.57254173792e-7, 5.39873863789e-7, 6.85323475630e-8,
			-1.49957994714e-7, 9.05120844521e-8, 4.94756003005e-8, 2.80180753194e-8,
			5.33304381729e-8, -5.07683787085e-8, 3.64361922626e-8, 4.17793527710e-8,
			-2.26880090717e-8, 2.17929262130e-9}
		for n, c := range zonals {
			g.c[n][0] = c
		}
		tesserals := []struct {
			n, m int
			c, s float64
		}{
			{2, 1, -1.86987635955e-10, 1.19528012031e-9},
			{2, 2, 2.43914352398e-6, -1.40016683654e-6},
			{3, 1, 2.03046201047e-6, 2.48200415856e-7},
			{3, 2, 9.04787894809e-7, -6.19005475177e-7},
			{3, 3, 7.21321757121e-7, 1.41434926192e-6},
			{4, 1, -5.36157389388e-7, -4.73567346518e-7},
			{4, 2, 3.50501623962e-7, 6.62480026275e-7},
			{4, 3, 9.90856766672e-7, -2.00956723567e-7},
			{4, 4, -1.88519633023e-7, 3.08803882149e-7},
		}
		for _, t := range tesserals {
			g.c[t.n][t.m] = t.c
			g.s[t.n][t.m] = t.s
		}
		g.MaxOrder = 4
		g.CompleteDegree = 4
		earthCoefficients = g
	})
	return earthCoefficients
}

// LoadICGEM reads an ICGEM gravity field file (.gfc).
func LoadICGEM(path string) (*GravityCoefficients, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Field: "gravity file", Err: err}
	}
	defer f.Close()
	g, err := ParseICGEM(f)
	if err != nil {
		return nil, &ConfigError{Field: "gravity file", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return g, nil
}

// ParseICGEM parses ICGEM formatted coefficients. Only static "gfc" records are used.
func ParseICGEM(r io.Reader) (*GravityCoefficients, error) {
	scanner := bufio.NewScanner(r)
	header := map[string]string{}
	inHeader := true
	var g *GravityCoefficients
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if inHeader {
			if fields[0] == "end_of_head" {
				inHeader = false
				var err error
				if g, err = coefficientsFromHeader(header); err != nil {
					return nil, err
				}
				continue
			}
			if len(fields) >= 2 {
				header[fields[0]] = fields[1]
			}
			continue
		}
		if fields[0] != "gfc" {
			continue
		}
		if len(fields) < 5 {
			return nil, fmt.Errorf("line %d: expected 'gfc n m C S'", lineNo)
		}
		n, errN := strconv.Atoi(fields[1])
		m, errM := strconv.Atoi(fields[2])
		C, errC := parseFortranFloat(fields[3])
		S, errS := parseFortranFloat(fields[4])
		if errN != nil || errM != nil || errC != nil || errS != nil {
			return nil, fmt.Errorf("line %d: malformed coefficient record", lineNo)
		}
		if n > g.MaxDegree || m > n || m < 0 {
			return nil, fmt.Errorf("line %d: degree/order (%d,%d) outside max degree %d", lineNo, n, m, g.MaxDegree)
		}
		g.c[n][m] = C
		g.s[n][m] = S
		if m > g.MaxOrder {
			g.MaxOrder = m
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("missing end_of_head")
	}
	g.CompleteDegree = g.MaxDegree
	return g, nil
}

func coefficientsFromHeader(h map[string]string) (*GravityCoefficients, error) {
	gm, err := parseFortranFloat(h["earth_gravity_constant"])
	if err != nil {
		return nil, fmt.Errorf("header earth_gravity_constant: %w", err)
	}
	radius, err := parseFortranFloat(h["radius"])
	if err != nil {
		return nil, fmt.Errorf("header radius: %w", err)
	}
	maxDegree, err := strconv.Atoi(h["max_degree"])
	if err != nil || maxDegree < 2 {
		return nil, fmt.Errorf("header max_degree: invalid value %q", h["max_degree"])
	}
	if norm, ok := h["norm"]; ok && norm != "fully_normalized" {
		return nil, fmt.Errorf("unsupported normalization %q", norm)
	}
	name := h["modelname"]
	if name == "" {
		name = "ICGEM"
	}
	// ICGEM files are in SI units.
	return newGravityCoefficients(name, gm*1e-9, radius*1e-3, maxDegree), nil
}

func parseFortranFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.NewReplacer("D", "e", "d", "e").Replace(s), 64)
}
