package assim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/pkg/ensemble"
)

// enkf runs the stochastic (perturbed observation) update:
//
//	Ka = K + K' (H')^T (HE HE^T)^+ (D - H)
//
// with the pseudo-inverse taken through the truncated SVD of HE.
func (a *Analysis) enkf() (*mat.Dense, error) {
	he := a.covarianceFactor()
	kAnom := ensemble.Anomalies(a.state)
	hAnom := ensemble.Anomalies(a.predictions)

	var innovations mat.Dense
	innovations.Sub(a.perturbed, a.predictions) // m x N

	sp, err := truncatedSpectrum(he, a.truncation, a.truncationPercent)
	if err != nil {
		return nil, err
	}
	a.diag = sp.diag

	weighted := sp.applyInverse(&innovations) // m x N

	var gains mat.Dense
	gains.Mul(hAnom.T(), weighted) // N x N

	var update mat.Dense
	update.Mul(kAnom, &gains) // n x N

	var out mat.Dense
	out.Add(a.state, &update)
	return &out, nil
}
