package orbprop

import (
	"fmt"
	"math"
)

// brent isolates a root of f in [a, b] where fa and fb have opposite signs,
// combining inverse quadratic interpolation with bisection. The returned abscissa
// is within tol of the crossing.
func brent(f func(float64) (float64, error), a, b, fa, fb, tol float64, maxIter int) (float64, error) {
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, fmt.Errorf("%w: root not bracketed in [%g, %g]", ErrRootIsolation, a, b)
	}
	const eps = 2.220446049250313e-16
	c, fc := b, fb
	var d, e float64
	for iter := 0; iter < maxIter; iter++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		var err error
		if fb, err = f(b); err != nil {
			return 0, err
		}
		if math.IsNaN(fb) {
			return 0, fmt.Errorf("%w: event function is NaN at %g", ErrRootIsolation, b)
		}
	}
	return 0, fmt.Errorf("%w: no convergence to %g s after %d iterations", ErrRootIsolation, tol, maxIter)
}
