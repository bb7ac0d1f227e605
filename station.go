package orbprop

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	DSS34Canberra  = NewStation("DSS34Canberra", 0.691750, 10, -35.398333, 148.981944)
	DSS65Madrid    = NewStation("DSS65Madrid", 0.834939, 10, 40.427222, 4.250556)
	DSS13Goldstone = NewStation("DSS13Goldstone", 1.07114904, 10, 35.247164, 243.205)
)

// Station defines a ground station on the Earth.
type Station struct {
	Name                string
	R, V                r3.Vec  // position and velocity in ECEF
	LatΦ, Longθ         float64 // these are stored in radians!
	Altitude, Elevation float64 // km, and the elevation mask in degrees
	Body                CelestialObject
}

// Measurement is the geometry of a spacecraft as seen from a station.
type Measurement struct {
	Visible          bool
	Range, RangeRate float64 // km and km/s
	Elevation        float64 // degrees
	Azimuth          float64 // degrees in [0, 360)
	Epoch            Epoch
	Station          string
}

// Measure returns the range, range rate, elevation and azimuth of the spacecraft.
func (s Station) Measure(state State) Measurement {
	θgst := GMST(state.Epoch)
	// The station vectors are in ECEF, so let's convert them to the inertial frame.
	rSta := ECEF2ECI(s.R, θgst)
	vSta := ECEF2ECI(s.V, θgst)
	ρVec := r3.Sub(state.R, rSta)
	ρ := r3.Norm(ρVec)
	ρDot := r3.Dot(ρVec, r3.Sub(state.V, vSta)) / ρ
	_, el, az := s.RangeElAz(ECI2ECEF(state.R, θgst))
	return Measurement{el >= s.Elevation, ρ, ρDot, el, az, state.Epoch, s.Name}
}

// RangeElAz returns the range, elevation and azimuth (in degrees) of a given R vector in ECEF,
// using the South-East-Zenith frame of the station.
func (s Station) RangeElAz(rECEF r3.Vec) (ρ, el, az float64) {
	ρECEF := r3.Sub(rECEF, s.R)
	ρ = r3.Norm(ρECEF)
	rSEZ := MxV33(R2(math.Pi/2-s.LatΦ), MxV33(R3(s.Longθ), ρECEF))
	el = math.Asin(clamp(rSEZ.Z/ρ, -1, 1)) / deg2rad
	az = Rad2deg(math.Atan2(rSEZ.Y, -rSEZ.X))
	return
}

func (s Station) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km; el = %f deg", s.Name, s.LatΦ/deg2rad, s.Longθ/deg2rad, s.Altitude, s.Elevation)
}

// NewStation returns a new Earth station. Angles in degrees.
func NewStation(name string, altitude, elevation, latΦ, longθ float64) Station {
	R := GEO2ECEF(Earth, altitude, latΦ*deg2rad, longθ*deg2rad)
	V := r3.Cross(r3.Vec{Z: Earth.RotationRate}, R)
	return Station{name, R, V, latΦ * deg2rad, longθ * deg2rad, altitude, elevation, Earth}
}

// StationFromName returns one of the built-in Deep Space Network stations.
func StationFromName(name string) (Station, error) {
	switch strings.ToLower(name) {
	case "dss13":
		return DSS13Goldstone, nil
	case "dss34":
		return DSS34Canberra, nil
	case "dss65":
		return DSS65Madrid, nil
	default:
		return Station{}, fmt.Errorf("unknown station `%s`", name)
	}
}

// ElevationDetector triggers when the spacecraft rises above (increasing) or
// sets below (decreasing) the elevation mask of the station.
func ElevationDetector(s Station, action Action) *EventDetector {
	return &EventDetector{
		Name:   "elevation " + s.Name,
		G:      func(state State) (float64, error) { return s.Measure(state).Elevation - s.Elevation, nil },
		Action: action,
	}
}
