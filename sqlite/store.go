// Package sqlite persists propagation runs and their sample logs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChristopherRabotin/orbprop"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario TEXT NOT NULL,
	idx      INTEGER NOT NULL,
	status   TEXT NOT NULL,
	error    TEXT NOT NULL DEFAULT '',
	final    TEXT NOT NULL,
	events   BLOB NOT NULL,
	created  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	run      INTEGER NOT NULL REFERENCES runs(id),
	epoch    TEXT NOT NULL,
	elapsed  REAL NOT NULL,
	a REAL, e REAL, i REAL, aop REAL, raan REAL, nu REAL, m REAL
);
CREATE INDEX IF NOT EXISTS samples_run ON samples(run, elapsed);
`

// Run is a stored run summary.
type Run struct {
	ID       int64
	Scenario string
	Index    int
	Status   string
	Error    string
	Final    time.Time
	Events   []Event
}

// Event is the stored form of an event occurrence.
type Event struct {
	Detector         string    `json:"detector"`
	Epoch            time.Time `json:"epoch"`
	Elapsed          float64   `json:"elapsed"`
	Action           string    `json:"action"`
	AlreadyTriggered bool      `json:"already_triggered,omitempty"`
}

// Store is a SQLite database of runs. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens or creates the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "orbprop.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a result, partial or not, and returns the run id.
func (s *Store) SaveRun(ctx context.Context, scenario string, idx int, res *orbprop.Result, runErr error) (id int64, retErr error) {
	if res == nil {
		return 0, errors.New("nil result")
	}
	events := make([]Event, len(res.Events))
	for i, e := range res.Events {
		events[i] = Event{Detector: e.Detector, Epoch: e.Epoch.Time(), Elapsed: e.Elapsed, Action: e.Action.String(), AlreadyTriggered: e.AlreadyTriggered}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return 0, fmt.Errorf("encode events: %w", err)
	}
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	r, err := tx.ExecContext(ctx, `INSERT INTO runs(scenario, idx, status, error, final, events, created) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		scenario, idx, res.Status.String(), errText, res.Final.Epoch.Time().Format(time.RFC3339Nano), payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	if id, err = r.LastInsertId(); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples(run, epoch, elapsed, a, e, i, aop, raan, nu, m) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare samples: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, smp := range res.Samples {
		if _, err := stmt.ExecContext(ctx, id, smp.Epoch.Time().Format(time.RFC3339Nano), smp.Elapsed, smp.A, smp.E, smp.I, smp.ArgPeri, smp.RAAN, smp.TrueAnom, smp.MeanAnom); err != nil {
			return 0, fmt.Errorf("insert sample: %w", err)
		}
	}
	return id, tx.Commit()
}

// Runs returns the stored runs of a scenario, in insertion order.
func (s *Store) Runs(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, scenario, idx, status, error, final, events FROM runs WHERE scenario = ? ORDER BY id`, scenario)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		var (
			r       Run
			final   string
			payload []byte
		)
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Index, &r.Status, &r.Error, &final, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if r.Final, err = time.Parse(time.RFC3339Nano, final); err != nil {
			return nil, fmt.Errorf("decode final epoch: %w", err)
		}
		if err := json.Unmarshal(payload, &r.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns the sample log of a run.
func (s *Store) Samples(ctx context.Context, run int64) ([]orbprop.TrajectorySample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT epoch, elapsed, a, e, i, aop, raan, nu, m FROM samples WHERE run = ? ORDER BY elapsed`, run)
	if err != nil {
		return nil, fmt.Errorf("select samples: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []orbprop.TrajectorySample
	for rows.Next() {
		var (
			smp   orbprop.TrajectorySample
			epoch string
		)
		if err := rows.Scan(&epoch, &smp.Elapsed, &smp.A, &smp.E, &smp.I, &smp.ArgPeri, &smp.RAAN, &smp.TrueAnom, &smp.MeanAnom); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, epoch)
		if err != nil {
			return nil, fmt.Errorf("decode epoch: %w", err)
		}
		smp.Epoch = orbprop.NewEpoch(t)
		out = append(out, smp)
	}
	return out, rows.Err()
}
