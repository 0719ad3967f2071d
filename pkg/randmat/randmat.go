// Package randmat generates random matrices for ensemble methods
package randmat

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewSource returns a seeded random source. Seed 0 yields a source seeded
// from the default stream position, which is fine for non-reproducible runs.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// Normal returns a rows-by-cols matrix of iid N(0, std^2) draws.
func Normal(rows, cols int, std float64, src rand.Source) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: src}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(rows, cols, data)
}

// ScaledNormal returns a rows-by-cols matrix where row i is drawn from
// N(0, stds[i]^2). Used for percent-of-spread error models where every
// observation row carries its own standard deviation.
func ScaledNormal(stds []float64, cols int, src rand.Source) *mat.Dense {
	rows := len(stds)
	out := mat.NewDense(rows, cols, nil)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, stds[i]*unit.Rand())
		}
	}
	return out
}

// HaarOrthogonal returns a random n-by-n orthogonal matrix distributed by
// Haar measure: the Q factor of a Gaussian matrix with the signs of the
// R diagonal folded in.
func HaarOrthogonal(n int, src rand.Source) *mat.Dense {
	z := Normal(n, n, 1, src)

	var qr mat.QR
	qr.Factorize(z)

	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	// Without the sign correction the distribution is biased.
	for j := 0; j < n; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < n; i++ {
				q.Set(i, j, -q.At(i, j))
			}
		}
	}

	return &q
}
