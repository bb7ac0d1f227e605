package orbprop

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// csvHeader lists the sample log columns. Angles are in degrees.
var csvHeader = []string{"epoch", "elapsed", "a", "e", "i", "omega", "Omega", "nu", "M"}

func sampleRecord(s TrajectorySample) []string {
	f := func(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }
	return []string{
		s.Epoch.Time().Format(time.RFC3339Nano),
		f(s.Elapsed, 6),
		f(s.A, 6),
		f(s.E, 9),
		f(Rad2deg(s.I), 6),
		f(Rad2deg(s.ArgPeri), 6),
		f(Rad2deg(s.RAAN), 6),
		f(Rad2deg(s.TrueAnom), 6),
		f(Rad2deg(s.MeanAnom), 6),
	}
}

// WriteSamplesCSV writes a sample log with a commented preamble.
func WriteSamplesCSV(w io.Writer, name string, samples []TrajectorySample) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n# Creation date (UTC): %s\n# Records are a, e, i, ω, Ω, ν, M. Distances in km, angles in degrees.\n", name, time.Now().UTC().Format(dateTimeFormat))
	cw := csv.NewWriter(bw)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write(sampleRecord(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// CSVStreamer writes samples as they are produced. It implements FixedStepHandler.
type CSVStreamer struct {
	cw  *csv.Writer
	err error
}

// NewCSVStreamer returns a streamer writing to w.
func NewCSVStreamer(w io.Writer) *CSVStreamer {
	return &CSVStreamer{cw: csv.NewWriter(w)}
}

// Init implements FixedStepHandler.
func (c *CSVStreamer) Init(s0 State, target Epoch) {
	c.err = c.cw.Write(csvHeader)
}

// HandleSample implements FixedStepHandler.
func (c *CSVStreamer) HandleSample(s State, elapsed float64) error {
	if c.err != nil {
		return c.err
	}
	c.err = c.cw.Write(sampleRecord(NewTrajectorySample(s, elapsed)))
	return c.err
}

// Finish implements FixedStepHandler.
func (c *CSVStreamer) Finish(final State) {
	c.cw.Flush()
	if c.err == nil {
		c.err = c.cw.Error()
	}
}

// Err returns the first write error.
func (c *CSVStreamer) Err() error {
	return c.err
}

// WriteXYZV writes the ephemeris every step seconds as interpolated state
// records "<jd> <x> <y> <z> <vx> <vy> <vz>" (km and km/s), readable by Cosmographia.
func WriteXYZV(w io.Writer, eph *Ephemeris, step float64) error {
	if !(step > 0) {
		return configError("xyzv step", "must be positive, got %f", step)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Creation date (UTC): %s\n# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>\n#   Position in km\n#   Velocity in km/sec\n", time.Now().UTC().Format(dateTimeFormat))
	min, max := eph.Min(), eph.Max()
	span := max.Sub(min)
	for k := 0; ; k++ {
		t := float64(k) * step
		last := t >= span
		epoch := min.Shift(t)
		if last {
			epoch = max
		}
		s, err := eph.At(epoch)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%.9f %.6f %.6f %.6f %.9f %.9f %.9f\n", epoch.JD(), s.R.X, s.R.Y, s.R.Z, s.V.X, s.V.Y, s.V.Z)
		if last {
			break
		}
	}
	return bw.Flush()
}

// XYZVRecord is one line of an interpolated state file.
type XYZVRecord struct {
	JD       float64
	Position [3]float64
	Velocity [3]float64
}

// ParseXYZV reads interpolated state records, skipping comments.
func ParseXYZV(r io.Reader) ([]XYZVRecord, error) {
	var out []XYZVRecord
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		txt := strings.TrimSpace(sc.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		fields := strings.Fields(txt)
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 fields, got %d", line, len(fields))
		}
		var vals [7]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vals[i] = v
		}
		out = append(out, XYZVRecord{JD: vals[0], Position: [3]float64{vals[1], vals[2], vals[3]}, Velocity: [3]float64{vals[4], vals[5], vals[6]}})
	}
	return out, sc.Err()
}
