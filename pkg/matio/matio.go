// Package matio reads and writes matrices as CSV files.
//
// Files are plain CSV with one ensemble member per column and one variable
// per row. Lines starting with '#' are comments; blank lines are skipped.
package matio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ReadMatrix loads a dense matrix from a CSV file. All rows must have the
// same number of columns.
func ReadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty matrix file", path)
	}

	rows := len(records)
	cols := len(records[0])
	data := make([]float64, 0, rows*cols)

	for i, record := range records {
		if len(record) != cols {
			return nil, fmt.Errorf("%s: row %d has %d columns, expected %d", path, i+1, len(record), cols)
		}
		for j, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %d: invalid number %q", path, i+1, j+1, cell)
			}
			data = append(data, v)
		}
	}

	return mat.NewDense(rows, cols, data), nil
}

// ReadVector loads a vector from a CSV file. The file may hold either a
// single column or a single row.
func ReadVector(path string) (*mat.VecDense, error) {
	m, err := ReadMatrix(path)
	if err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	switch {
	case cols == 1:
		return mat.VecDenseCopyOf(m.ColView(0)), nil
	case rows == 1:
		return mat.VecDenseCopyOf(m.RowView(0)), nil
	default:
		return nil, fmt.Errorf("%s: expected a vector, got a %dx%d matrix", path, rows, cols)
	}
}

// WriteMatrix writes a dense matrix as CSV, creating parent directories as
// needed.
func WriteMatrix(path string, m mat.Matrix) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create matrix file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
