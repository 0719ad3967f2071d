package matio_test

import (
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/pkg/matio"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadMatrix(t *testing.T) {
	path := writeFile(t, "m.csv", "# state ensemble\n1,2,3\n4,5,6\n")

	m, err := matio.ReadMatrix(path)
	if err != nil {
		t.Fatalf("failed to read matrix: %v", err)
	}

	rows, cols := m.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("expected 2x3, got %dx%d", rows, cols)
	}
	if m.At(1, 2) != 6 {
		t.Errorf("expected element (1,2) = 6, got %g", m.At(1, 2))
	}
}

func TestReadMatrix_RaggedRows(t *testing.T) {
	path := writeFile(t, "ragged.csv", "1,2,3\n4,5\n")

	if _, err := matio.ReadMatrix(path); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}

func TestReadMatrix_NonNumeric(t *testing.T) {
	path := writeFile(t, "bad.csv", "1,2\n3,abc\n")

	_, err := matio.ReadMatrix(path)
	if err == nil {
		t.Fatal("expected error for non-numeric cell")
	}
}

func TestReadMatrix_Empty(t *testing.T) {
	path := writeFile(t, "empty.csv", "# only a comment\n")

	if _, err := matio.ReadMatrix(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestReadMatrix_Missing(t *testing.T) {
	if _, err := matio.ReadMatrix(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadVector_Column(t *testing.T) {
	path := writeFile(t, "v.csv", "1\n2\n3\n")

	v, err := matio.ReadVector(path)
	if err != nil {
		t.Fatalf("failed to read vector: %v", err)
	}
	if v.Len() != 3 || v.AtVec(2) != 3 {
		t.Errorf("unexpected vector: %v", mat.Formatted(v))
	}
}

func TestReadVector_Row(t *testing.T) {
	path := writeFile(t, "v.csv", "1,2,3\n")

	v, err := matio.ReadVector(path)
	if err != nil {
		t.Fatalf("failed to read vector: %v", err)
	}
	if v.Len() != 3 || v.AtVec(0) != 1 {
		t.Errorf("unexpected vector: %v", mat.Formatted(v))
	}
}

func TestReadVector_RejectsMatrix(t *testing.T) {
	path := writeFile(t, "m.csv", "1,2\n3,4\n")

	if _, err := matio.ReadVector(path); err == nil {
		t.Fatal("expected error for 2x2 input")
	}
}

func TestWriteMatrix_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "analysis.csv")

	want := mat.NewDense(2, 3, []float64{
		1.5, -2.25, 3.125,
		0.001, 1e6, -7,
	})

	if err := matio.WriteMatrix(path, want); err != nil {
		t.Fatalf("failed to write matrix: %v", err)
	}

	got, err := matio.ReadMatrix(path)
	if err != nil {
		t.Fatalf("failed to read matrix back: %v", err)
	}

	if !mat.Equal(want, got) {
		t.Errorf("round trip changed the matrix:\nwant %v\ngot %v",
			mat.Formatted(want), mat.Formatted(got))
	}
}
