package orbprop

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000JD is the Julian date of the J2000 reference epoch.
const j2000JD = 2451545.0

// J2000 is 2000-01-01 12:00:00. The UTC/TT offset is not applied.
var J2000 = Epoch{julian.JDToTime(j2000JD).UTC()}

// Epoch is an absolute instant. The zero value is not a valid epoch.
type Epoch struct {
	t time.Time
}

// NewEpoch returns the epoch of the provided time.
func NewEpoch(t time.Time) Epoch {
	return Epoch{t.UTC()}
}

// EpochFromJD returns the epoch of a Julian date.
func EpochFromJD(jd float64) Epoch {
	return Epoch{julian.JDToTime(jd).UTC()}
}

// EpochFromJ2000Seconds returns the epoch at s seconds past J2000.
func EpochFromJ2000Seconds(s float64) Epoch {
	return J2000.Shift(s)
}

// Time returns the epoch as a UTC time.
func (e Epoch) Time() time.Time {
	return e.t
}

// Sub returns e-o in seconds.
func (e Epoch) Sub(o Epoch) float64 {
	return e.t.Sub(o.t).Seconds()
}

// Shift returns a new epoch s seconds after e, at nanosecond resolution.
func (e Epoch) Shift(s float64) Epoch {
	return Epoch{e.t.Add(time.Duration(math.Round(s * 1e9)))}
}

// JD returns the Julian date.
func (e Epoch) JD() float64 {
	return julian.TimeToJD(e.t)
}

// J2000Seconds returns the number of seconds since J2000.
func (e Epoch) J2000Seconds() float64 {
	return e.Sub(J2000)
}

// Before reports whether e is before o.
func (e Epoch) Before(o Epoch) bool {
	return e.t.Before(o.t)
}

// After reports whether e is after o.
func (e Epoch) After(o Epoch) bool {
	return e.t.After(o.t)
}

// Equal reports whether e and o are the same instant.
func (e Epoch) Equal(o Epoch) bool {
	return e.t.Equal(o.t)
}

// IsZero reports whether the epoch was never set.
func (e Epoch) IsZero() bool {
	return e.t.IsZero()
}

func (e Epoch) String() string {
	return e.t.Format("2006-01-02T15:04:05.000000Z")
}
