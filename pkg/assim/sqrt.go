package assim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/pkg/ensemble"
	"github.com/daengine/daengine/pkg/randmat"
)

// sqrtKF runs the deterministic square-root update. The mean is moved by the
// Kalman increment; the anomalies are rescaled through the symmetric factor
// of I - (H')^T C^-1 H' and rotated by a random orthogonal matrix so the
// analysed members stay statistically exchangeable.
func (a *Analysis) sqrtKF() (*mat.Dense, error) {
	he := a.covarianceFactor()
	kAnom := ensemble.Anomalies(a.state)
	hAnom := ensemble.Anomalies(a.predictions)

	kMean := ensemble.RowMeans(a.state)
	hMean := ensemble.RowMeans(a.predictions)

	var innov mat.VecDense
	innov.SubVec(a.obs, hMean) // m

	sp, err := truncatedSpectrum(he, a.truncation, a.truncationPercent)
	if err != nil {
		return nil, err
	}
	a.diag = sp.diag

	// Mean update: kMean + K' (H')^T C^-1 innov.
	weighted := sp.applyInverse(&innov) // m x 1

	var gain mat.Dense
	gain.Mul(hAnom.T(), weighted) // N x 1

	var increment mat.Dense
	increment.Mul(kAnom, &gain) // n x 1

	aMean := mat.VecDenseCopyOf(kMean)
	aMean.AddVec(aMean, increment.ColView(0))

	// Anomaly update: M = I - (H')^T C^-1 H'.
	cInvH := sp.applyInverse(hAnom) // m x N

	var t mat.Dense
	t.Mul(hAnom.T(), cInvH) // N x N

	size := a.size
	m := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			v := -t.At(i, j)
			if i == j {
				v += 1
			}
			m.Set(i, j, v)
		}
	}

	// Symmetric square root of M through its SVD, with negative singular
	// values (numerical noise) clamped to zero.
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD factorization of the anomaly transform failed")
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	for j, s := range values {
		root := 0.0
		if s > 0 {
			root = math.Sqrt(s)
		}
		for i := 0; i < size; i++ {
			u.Set(i, j, u.At(i, j)*root)
		}
	}

	var factor mat.Dense
	factor.Mul(&u, v.T()) // N x N

	var anomalies mat.Dense
	anomalies.Mul(kAnom, &factor) // n x N

	theta := randmat.HaarOrthogonal(size, a.src)
	var rotated mat.Dense
	rotated.Mul(&anomalies, theta.T())

	out := ensemble.Replicate(aMean, size)
	out.Add(out, &rotated)
	return out, nil
}
