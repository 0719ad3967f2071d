package assim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Diagnostics reports how the singular spectrum of the innovation covariance
// factor was truncated during the last update.
type Diagnostics struct {
	// RetainedModes is the number of dominant singular modes kept.
	RetainedModes int
	// EnergyShare is the fraction of total squared singular value energy
	// the retained modes carry, in [0, 1].
	EnergyShare float64
}

// spectrum holds the truncated SVD factors of HE used by both schemes.
type spectrum struct {
	// u holds the first p left singular vectors (m-by-p).
	u *mat.Dense
	// invEnergies holds 1/s_i^2 for the retained modes.
	invEnergies []float64
	diag        Diagnostics
}

// truncatedSpectrum factorizes he = U S V^T and keeps the dominant modes.
// With an absolute threshold, modes with s^2 >= threshold survive; otherwise
// modes whose share of the total s^2 energy is at least energyPercent/100
// survive. Singular values come out of the factorization in descending
// order, so the retained modes are always a prefix.
func truncatedSpectrum(he *mat.Dense, threshold *float64, energyPercent float64) (*spectrum, error) {
	var svd mat.SVD
	if ok := svd.Factorize(he, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization of the innovation covariance factor failed")
	}

	values := svd.Values(nil)
	energies := make([]float64, len(values))
	total := 0.0
	for i, s := range values {
		energies[i] = s * s
		total += energies[i]
	}
	if total == 0 {
		return nil, ErrAllModesTruncated
	}

	p := 0
	retained := 0.0
	for _, e := range energies {
		if threshold != nil {
			if e < *threshold {
				break
			}
		} else if e/total < energyPercent/100.0 {
			break
		}
		retained += e
		p++
	}
	if p == 0 {
		return nil, ErrAllModesTruncated
	}

	var u mat.Dense
	svd.UTo(&u)

	inv := make([]float64, p)
	for i := 0; i < p; i++ {
		inv[i] = 1.0 / energies[i]
	}

	rows, _ := u.Dims()
	up := mat.DenseCopyOf(u.Slice(0, rows, 0, p))

	return &spectrum{
		u:           up,
		invEnergies: inv,
		diag: Diagnostics{
			RetainedModes: p,
			EnergyShare:   retained / total,
		},
	}, nil
}

// applyInverse computes U diag(invEnergies) U^T b for a matrix b, the
// truncated pseudo-inverse of HE HE^T applied to b.
func (sp *spectrum) applyInverse(b mat.Matrix) *mat.Dense {
	var proj mat.Dense
	proj.Mul(sp.u.T(), b) // p x cols

	rows, cols := proj.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			proj.Set(i, j, proj.At(i, j)*sp.invEnergies[i])
		}
	}

	var out mat.Dense
	out.Mul(sp.u, &proj) // m x cols
	return &out
}
