package orbprop

import (
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// StateFromTLE returns the SGP4 state at the epoch of a two line element set,
// truncated to the whole second. The TEME frame is used as the inertial frame.
func StateFromTLE(line1, line2 string, mass float64) (State, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	// go-satellite exits the process on malformed input, so check the format first.
	if len(line1) != 69 || len(line2) != 69 {
		return State{}, configError("tle", "lines must be 69 characters, got %d and %d", len(line1), len(line2))
	}
	if line1[0] != '1' || line2[0] != '2' {
		return State{}, configError("tle", "lines must start with 1 and 2")
	}
	epoch, err := tleEpoch(line1)
	if err != nil {
		return State{}, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return State{}, configError("tle", "sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}
	t := epoch.Time()
	pos, vel := satellite.Propagate(sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	R := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	V := r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z}
	for _, v := range []float64{R.X, R.Y, R.Z, V.X, V.Y, V.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return State{}, configError("tle", "sgp4 output is not finite")
		}
	}
	return NewState(epoch, R, V, mass, Earth), nil
}

// tleEpoch parses the epoch field (columns 19 to 32) of the first line.
func tleEpoch(line1 string) (Epoch, error) {
	field := strings.TrimSpace(line1[18:32])
	if len(field) < 5 {
		return Epoch{}, configError("tle", "malformed epoch %q", field)
	}
	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return Epoch{}, configError("tle", "malformed epoch year %q", field[:2])
	}
	day, err := strconv.ParseFloat(field[2:], 64)
	if err != nil || day < 1 {
		return Epoch{}, configError("tle", "malformed epoch day %q", field[2:])
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	t := start.Add(time.Duration((day - 1) * 86400 * float64(time.Second))).Truncate(time.Second)
	return NewEpoch(t), nil
}
