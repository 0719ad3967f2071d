// Package ensemble provides the ensemble algebra shared by the analysis
// schemes: row means, anomaly matrices and per-row spreads of matrices
// whose columns are ensemble members.
package ensemble

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/daengine/daengine/pkg/randmat"
)

// RowMeans returns the mean of each row of m as a vector.
func RowMeans(m mat.Matrix) *mat.VecDense {
	rows, cols := m.Dims()
	means := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, m)
		means.SetVec(i, stat.Mean(row, nil))
	}
	return means
}

// RowStds returns the sample standard deviation of each row of m.
func RowStds(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	stds := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, m)
		stds[i] = stat.StdDev(row, nil)
	}
	return stds
}

// Anomalies returns m with each row's mean subtracted: X - mean(X) 1^T.
func Anomalies(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	means := RowMeans(m)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		mu := means.AtVec(i)
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(i, j)-mu)
		}
	}
	return out
}

// Center subtracts each row's mean from m in place and returns m.
func Center(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	means := RowMeans(m)
	for i := 0; i < rows; i++ {
		mu := means.AtVec(i)
		for j := 0; j < cols; j++ {
			m.Set(i, j, m.At(i, j)-mu)
		}
	}
	return m
}

// Replicate returns the matrix v 1^T: the vector v repeated across cols
// columns.
func Replicate(v *mat.VecDense, cols int) *mat.Dense {
	rows := v.Len()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		val := v.AtVec(i)
		for j := 0; j < cols; j++ {
			out.Set(i, j, val)
		}
	}
	return out
}

// Perturb returns v 1^T + E: the vector replicated across the columns of E
// with the error realizations added. Dimensions must agree.
func Perturb(v *mat.VecDense, e mat.Matrix) (*mat.Dense, error) {
	rows, cols := e.Dims()
	if v.Len() != rows {
		return nil, fmt.Errorf("vector length %d does not match error ensemble rows %d", v.Len(), rows)
	}
	out := Replicate(v, cols)
	out.Add(out, e)
	return out, nil
}

// NewGaussian returns an n-by-size ensemble with iid N(mu, sigma^2) members.
func NewGaussian(n, size int, mu, sigma float64, src rand.Source) *mat.Dense {
	out := randmat.Normal(n, size, sigma, src)
	if mu != 0 {
		rows, cols := out.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out.Set(i, j, out.At(i, j)+mu)
			}
		}
	}
	return out
}
