package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ChristopherRabotin/orbprop"
)

func testResult() *orbprop.Result {
	start := orbprop.NewEpoch(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	samples := make([]orbprop.TrajectorySample, 3)
	for i := range samples {
		samples[i] = orbprop.TrajectorySample{Epoch: start.Shift(float64(i) * 60), Elapsed: float64(i) * 60, A: 6878 + float64(i), E: 0.02, I: 1.7, MeanAnom: float64(i) * 0.1}
	}
	return &orbprop.Result{
		Status:  orbprop.StoppedByEvent,
		Final:   orbprop.State{Epoch: start.Shift(150)},
		Samples: samples,
		Events:  []orbprop.EventOccurrence{{Detector: "altitude 120.0 km", Epoch: start.Shift(150), Elapsed: 150, Action: orbprop.Stop}},
	}
}

func TestStoreSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	id, err := store.SaveRun(ctx, "leo", 0, testResult(), nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	runs, err := reloaded.Runs(ctx, "leo")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("expected run %d, got %+v", id, runs)
	}
	if runs[0].Status != "stopped by event" || len(runs[0].Events) != 1 || runs[0].Events[0].Action != "STOP" {
		t.Fatalf("unexpected run %+v", runs[0])
	}
	samples, err := reloaded.Samples(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	want := testResult().Samples
	for i, s := range samples {
		if !s.Epoch.Equal(want[i].Epoch) || s.A != want[i].A || s.MeanAnom != want[i].MeanAnom {
			t.Fatalf("sample %d: got %+v want %+v", i, s, want[i])
		}
	}
}

func TestStoreKeepsFailedRuns(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	res := testResult()
	res.Status = orbprop.Failed
	if _, err := store.SaveRun(context.Background(), "leo", 3, res, errors.New("numerical instability")); err != nil {
		t.Fatal(err)
	}
	runs, err := store.Runs(context.Background(), "leo")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Index != 3 || runs[0].Error != "numerical instability" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if _, err := store.SaveRun(context.Background(), "leo", 4, nil, nil); err == nil {
		t.Fatal("expected an error for a nil result")
	}
}
