package state_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daengine/daengine/internal/state"
	"github.com/daengine/daengine/pkg/assim"
	"github.com/daengine/daengine/pkg/types"
)

func TestStartRun(t *testing.T) {
	m := state.NewManager(t.TempDir(), nil)

	rec, err := m.StartRun("cycle-1", types.MethodEnKF)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if rec.RunID == "" {
		t.Error("expected a generated run ID")
	}
	if rec.Status != types.RunStatusRunning {
		t.Errorf("expected status running, got %s", rec.Status)
	}

	loaded, err := m.ReadRun(rec.RunID)
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	if loaded.Cycle != "cycle-1" || loaded.Method != types.MethodEnKF {
		t.Errorf("unexpected record: %+v", loaded)
	}
}

func TestCompleteRun(t *testing.T) {
	root := t.TempDir()
	m := state.NewManager(root, nil)

	rec, err := m.StartRun("cycle-1", types.MethodEnKF)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	diag := assim.Diagnostics{RetainedModes: 3, EnergyShare: 0.97}
	if err := m.CompleteRun(rec.RunID, diag, 10, 4, 25, "outputs/analysis.csv"); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	// Re-read through a fresh manager to exercise the on-disk record.
	loaded, err := state.NewManager(root, nil).ReadRun(rec.RunID)
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	if loaded.Status != types.RunStatusSucceeded {
		t.Errorf("expected status succeeded, got %s", loaded.Status)
	}
	if loaded.RetainedModes != 3 || loaded.EnergyShare != 0.97 {
		t.Errorf("diagnostics not persisted: %+v", loaded)
	}
	if loaded.StateDim != 10 || loaded.Observations != 4 || loaded.EnsembleSize != 25 {
		t.Errorf("dimensions not persisted: %+v", loaded)
	}
	if loaded.OutputPath != "outputs/analysis.csv" {
		t.Errorf("output path not persisted: %q", loaded.OutputPath)
	}
}

func TestFailRun(t *testing.T) {
	m := state.NewManager(t.TempDir(), nil)

	rec, err := m.StartRun("cycle-1", types.MethodSqrtKF)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := m.FailRun(rec.RunID, errors.New("observations are required")); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	loaded, err := m.ReadRun(rec.RunID)
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	if loaded.Status != types.RunStatusFailed {
		t.Errorf("expected status failed, got %s", loaded.Status)
	}
	if loaded.LastError != "observations are required" {
		t.Errorf("unexpected lastError: %q", loaded.LastError)
	}
}

func TestUpdateUnknownRun(t *testing.T) {
	m := state.NewManager(t.TempDir(), nil)
	if err := m.FailRun("no-such-run", errors.New("boom")); err == nil {
		t.Error("expected an error for an unknown run ID")
	}
}

func TestListRuns(t *testing.T) {
	root := t.TempDir()
	m := state.NewManager(root, nil)

	first, err := m.StartRun("cycle-1", types.MethodEnKF)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := m.StartRun("cycle-2", types.MethodEnKF)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	// A corrupt record must be skipped, not fail the listing.
	corrupt := filepath.Join(root, ".daengine", "runs", "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := m.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RunID != second.RunID || records[1].RunID != first.RunID {
		t.Errorf("expected newest-first ordering, got %s then %s", records[0].RunID, records[1].RunID)
	}
}

func TestCleanRuns(t *testing.T) {
	m := state.NewManager(t.TempDir(), nil)

	for i := 0; i < 3; i++ {
		if _, err := m.StartRun("cycle-1", types.MethodEnKF); err != nil {
			t.Fatalf("StartRun failed: %v", err)
		}
	}

	removed, err := m.CleanRuns()
	if err != nil {
		t.Fatalf("CleanRuns failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed records, got %d", removed)
	}

	records, err := m.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records after clean, got %d", len(records))
	}
}
