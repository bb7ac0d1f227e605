package orbprop

import (
	"math"
)

// tropicalYear in seconds.
const tropicalYear = 365.2421897 * 86400

// SunSynchronousRAAN returns the right ascension of the ascending node of a
// Sun synchronous orbit whose ascending node is at the provided mean local time (hours).
func SunSynchronousRAAN(e Epoch, meanLocalTime float64) float64 {
	// The hour angle of the mean Sun at Greenwich is zero at noon UT, when the JD fraction is zero.
	jd := e.JD()
	meanSunRA := GMST(e) - (jd-math.Floor(jd))*twoPi
	return NormalizeAngle(meanSunRA + (meanLocalTime-12)*math.Pi/12)
}

// SunSynchronousInclination returns the inclination for which the J2 nodal
// regression matches the mean motion of the Sun.
func SunSynchronousInclination(body CelestialObject, a, e float64) (float64, error) {
	n := math.Sqrt(body.μ / (a * a * a))
	p := a * (1 - e*e)
	cosi := -(twoPi / tropicalYear) / (1.5 * n * body.J2 * math.Pow(body.Radius/p, 2))
	if math.Abs(cosi) > 1 {
		return 0, configError("orbit", "no Sun synchronous inclination for a=%.3f km e=%.4f", a, e)
	}
	return math.Acos(cosi), nil
}

// SunSynchronousElements returns the elements of a Sun synchronous orbit.
func SunSynchronousElements(body CelestialObject, epoch Epoch, a, e, ω, ν, meanLocalTime float64) (Elements, error) {
	i, err := SunSynchronousInclination(body, a, e)
	if err != nil {
		return Elements{}, err
	}
	if meanLocalTime < 0 || meanLocalTime >= 24 {
		return Elements{}, configError("orbit", "mean local time %f not in [0, 24)", meanLocalTime)
	}
	return Elements{A: a, E: e, I: i, RAAN: SunSynchronousRAAN(epoch, meanLocalTime), ArgPeri: ω, TrueAnom: ν}, nil
}

// LocalTimeOfAscendingNode returns the mean local time in hours of the ascending node.
func LocalTimeOfAscendingNode(e Epoch, raan float64) float64 {
	noon := SunSynchronousRAAN(e, 12)
	h := 12 + (raan-noon)*12/math.Pi
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}
