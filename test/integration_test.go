//go:build integration

package integration_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/internal/runner"
	"github.com/daengine/daengine/pkg/config"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/matio"
	"github.com/daengine/daengine/pkg/transform"
	"github.com/daengine/daengine/pkg/types"
)

// TestEndToEndAnalysis drives the whole pipeline: a config file on disk,
// CSV ensembles, the runner, and the persisted run records.
func TestEndToEndAnalysis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := t.TempDir()

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("inputs/state.csv", "1,1.1,0.9,1.05,0.95\n2,2.1,1.9,2.05,1.95\n")
	write("inputs/predictions.csv", "1,1.2,0.8,1.1,0.9\n")
	write("inputs/observations.csv", "1.4\n")
	write(config.DefaultFileName, `{
		"version": "1.0",
		"method": "enkf",
		"seed": 11,
		"inflation": 1.0,
		"errorModel": {"kind": "percent", "percent": 0.1},
		"cycles": [
			{
				"name": "cycle-1",
				"statePath": "inputs/state.csv",
				"predictionsPath": "inputs/predictions.csv",
				"observationsPath": "inputs/observations.csv",
				"outputPath": "outputs/analysis.csv"
			}
		],
		"scheduling": {"parallelization": 2}
	}`)

	cfg, err := config.NewManager().LoadConfig(filepath.Join(root, config.DefaultFileName))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	log := logger.CreateLoggerWithOutput("error", io.Discard)
	r := runner.New(cfg, root, log, nil)
	if err := r.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	out, err := matio.ReadMatrix(filepath.Join(root, "outputs/analysis.csv"))
	if err != nil {
		t.Fatalf("reading analysis: %v", err)
	}
	if rows, cols := out.Dims(); rows != 2 || cols != 5 {
		t.Errorf("expected a 2x5 analysed ensemble, got %dx%d", rows, cols)
	}

	records, err := r.States().ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 1 || records[0].Status != types.RunStatusSucceeded {
		t.Fatalf("expected a single succeeded run, got %+v", records)
	}
	if records[0].Cycle != "cycle-1" {
		t.Errorf("unexpected cycle name in record: %q", records[0].Cycle)
	}

	// Running again after an input change should just add another record.
	write("inputs/observations.csv", "1.6\n")
	if err := r.RunAll(context.Background()); err != nil {
		t.Fatalf("second RunAll failed: %v", err)
	}
	records, err = r.States().ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 run records, got %d", len(records))
	}
}

// TestEndToEndTransform maps an ensemble through a Gaussian mixture and back
// through the CSV layer.
func TestEndToEndTransform(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "ensemble.csv")
	out := filepath.Join(dir, "transformed.csv")

	src := rand.NewSource(3)
	ens := mat.NewDense(2, 50, nil)
	normal := rand.New(src)
	for i := 0; i < 2; i++ {
		for j := 0; j < 50; j++ {
			ens.Set(i, j, normal.NormFloat64())
		}
	}
	if err := matio.WriteMatrix(in, ens); err != nil {
		t.Fatal(err)
	}

	loaded, err := matio.ReadMatrix(in)
	if err != nil {
		t.Fatal(err)
	}

	mix := transform.Mixture{
		Weights: []float64{0.5, 0.5},
		Means:   []float64{-2, 2},
		Stddevs: []float64{0.5, 0.5},
	}
	mapped, err := transform.Anamorphosis(loaded, mix, transform.Options{
		SampleCount: 20000,
		Src:         rand.NewSource(4),
	})
	if err != nil {
		t.Fatalf("Anamorphosis failed: %v", err)
	}
	if err := matio.WriteMatrix(out, mapped); err != nil {
		t.Fatal(err)
	}

	final, err := matio.ReadMatrix(out)
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := final.Dims()
	if rows != 2 || cols != 50 {
		t.Fatalf("expected a 2x50 ensemble, got %dx%d", rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := final.At(i, j)
			if v < -6 || v > 6 {
				t.Fatalf("value %g at (%d,%d) is outside the mixture's range", v, i, j)
			}
		}
	}
}
