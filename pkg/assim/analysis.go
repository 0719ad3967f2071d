// Package assim implements the ensemble Kalman analysis schemes.
//
// An Analysis computes the analysed (posterior) ensemble for a state
// ensemble K given ensemble predictions H at the observation locations and
// the observations themselves. Two schemes are supported: the stochastic
// ensemble Kalman filter (perturbed observations) and the deterministic
// square-root filter. Matrix orientation throughout is rows = variables,
// columns = ensemble members.
package assim

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/pkg/ensemble"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/randmat"
	"github.com/daengine/daengine/pkg/types"
)

// DefaultTruncationPercent is the energy-share cutoff used when no
// truncation is configured.
const DefaultTruncationPercent = 0.01

// Options configure an Analysis. State and Predictions are required; the
// observation side accepts any of Observations, PerturbedObservations,
// ErrorEnsemble, ErrorCovariance or the scalar error models, resolved in
// that order of precedence (see New).
type Options struct {
	// State is the n-by-N ensemble of parameters/states to update.
	State *mat.Dense
	// Predictions is the m-by-N ensemble of model-predicted observation
	// equivalents.
	Predictions *mat.Dense
	// Observations is the length-m observation vector.
	Observations *mat.VecDense
	// PerturbedObservations is an m-by-N ensemble of perturbed observations.
	PerturbedObservations *mat.Dense
	// ErrorEnsemble is an m-by-N ensemble of measurement error realizations.
	ErrorEnsemble *mat.Dense
	// ErrorCovariance is the m-by-m measurement error covariance; error
	// realizations are sampled from it when no ensemble is given.
	ErrorCovariance *mat.SymDense
	// ErrStd is an absolute measurement error standard deviation.
	ErrStd float64
	// ErrPercent scales the per-row spread of Predictions into an error
	// standard deviation.
	ErrPercent float64

	Method types.Method
	// Inflation scales the error ensemble when forming the innovation
	// covariance factor. Zero means 1.
	Inflation float64
	// Truncation is an absolute squared-singular-value threshold. When nil,
	// TruncationPercent applies.
	Truncation *float64
	// TruncationPercent is the minimum energy share a retained mode must
	// carry, as a percentage. Zero means DefaultTruncationPercent.
	TruncationPercent float64

	// Src seeds all random draws (error sampling, rotation matrices).
	// When nil a time-seeded source is used.
	Src    rand.Source
	Logger logger.Logger
}

// Analysis holds a fully resolved assimilation problem.
type Analysis struct {
	state       *mat.Dense // K, n x N
	predictions *mat.Dense // H, m x N
	obs         *mat.VecDense
	perturbed   *mat.Dense // D, m x N
	errs        *mat.Dense // E, m x N

	method            types.Method
	inflation         float64
	truncation        *float64
	truncationPercent float64

	stateDim, obsDim, size int

	src  rand.Source
	log  logger.Logger
	diag Diagnostics
}

// New resolves the measurement error model and validates dimensions.
//
// Error resolution order: an explicit error ensemble wins; otherwise a
// covariance is sampled; otherwise errors are recovered from the perturbed
// observations (E = D - d, with d defaulting to the ensemble mean of D);
// otherwise the scalar stddev/percent models generate them. When nothing
// applies, ErrNoErrorInformation is returned.
func New(opts Options) (*Analysis, error) {
	if opts.State == nil || opts.Predictions == nil {
		return nil, fmt.Errorf("state and prediction ensembles are required")
	}

	m, size := opts.Predictions.Dims()
	n, size2 := opts.State.Dims()
	if size != size2 {
		return nil, fmt.Errorf("ensemble size mismatch: predictions have %d members, state has %d", size, size2)
	}

	method := opts.Method
	if method == "" {
		method = types.MethodEnKF
	}
	if _, err := types.ParseMethod(string(method)); err != nil {
		return nil, err
	}

	src := opts.Src
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	log := opts.Logger
	if log == nil {
		log = logger.CreateLoggerWithOutput("error", io.Discard)
	}
	log = log.WithStage("analysis")

	a := &Analysis{
		state:             opts.State,
		predictions:       opts.Predictions,
		obs:               opts.Observations,
		perturbed:         opts.PerturbedObservations,
		method:            method,
		inflation:         opts.Inflation,
		truncation:        opts.Truncation,
		truncationPercent: opts.TruncationPercent,
		stateDim:          n,
		obsDim:            m,
		size:              size,
		src:               src,
		log:               log,
	}
	if a.inflation == 0 {
		a.inflation = 1.0
	}
	if a.truncation == nil && a.truncationPercent == 0 {
		a.truncationPercent = DefaultTruncationPercent
	}

	if a.obs != nil && a.obs.Len() != m {
		return nil, fmt.Errorf("observation vector has length %d, expected %d", a.obs.Len(), m)
	}
	if a.perturbed != nil {
		if err := checkDims("perturbed observations", a.perturbed, m, size); err != nil {
			return nil, err
		}
	}

	if err := a.resolveErrors(opts); err != nil {
		return nil, err
	}

	// Generate the perturbed observations when only d and E are known.
	if a.perturbed == nil {
		if a.obs == nil {
			return nil, ErrMissingObservations
		}
		d, err := ensemble.Perturb(a.obs, a.errs)
		if err != nil {
			return nil, err
		}
		a.perturbed = d
	}
	if a.obs == nil {
		a.obs = ensemble.RowMeans(a.perturbed)
	}

	return a, nil
}

func (a *Analysis) resolveErrors(opts Options) error {
	m, size := a.obsDim, a.size

	switch {
	case opts.ErrorEnsemble != nil:
		if err := checkDims("error ensemble", opts.ErrorEnsemble, m, size); err != nil {
			return err
		}
		a.errs = opts.ErrorEnsemble

	case opts.ErrorCovariance != nil:
		rm := opts.ErrorCovariance.SymmetricDim()
		if rm != m {
			return fmt.Errorf("error covariance is %dx%d, expected %dx%d", rm, rm, m, m)
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(opts.ErrorCovariance); !ok {
			return fmt.Errorf("error covariance is not positive definite")
		}
		var l mat.TriDense
		chol.LTo(&l)
		var e mat.Dense
		e.Mul(&l, randmat.Normal(m, size, 1, a.src))
		a.errs = &e
		a.log.Debug("sampled measurement errors from covariance",
			logger.WithField("observations", m))

	case a.obs == nil:
		if a.perturbed == nil {
			return ErrMissingObservations
		}
		// Assume the mean of the perturbed observations is the observation.
		a.log.Debug("deriving observations and errors from perturbed observations")
		a.obs = ensemble.RowMeans(a.perturbed)
		a.errs = ensemble.Anomalies(a.perturbed)

	case a.perturbed == nil:
		switch {
		case opts.ErrStd > 0:
			a.errs = randmat.Normal(m, size, opts.ErrStd, a.src)
		case opts.ErrPercent > 0:
			stds := ensemble.RowStds(a.predictions)
			for i := range stds {
				stds[i] *= opts.ErrPercent
			}
			a.errs = randmat.ScaledNormal(stds, size, a.src)
		default:
			return ErrNoErrorInformation
		}
		a.log.Debug("generated measurement errors from scalar error model")

	default:
		var e mat.Dense
		e.Sub(a.perturbed, ensemble.Replicate(a.obs, size))
		a.errs = ensemble.Center(&e)
	}

	return nil
}

// Update runs the configured scheme and returns the analysed ensemble.
func (a *Analysis) Update() (*mat.Dense, error) {
	start := time.Now()

	var (
		out *mat.Dense
		err error
	)
	switch a.method {
	case types.MethodEnKF:
		out, err = a.enkf()
	case types.MethodSqrtKF:
		out, err = a.sqrtKF()
	default:
		return nil, fmt.Errorf("unsupported method: %q", a.method)
	}
	if err != nil {
		return nil, fmt.Errorf("%s update failed: %w", a.method, err)
	}

	a.log.Info("analysis complete",
		logger.WithField("method", string(a.method)),
		logger.WithField("retainedModes", a.diag.RetainedModes),
		logger.WithField("energyShare", fmt.Sprintf("%.1f%%", 100*a.diag.EnergyShare)),
		logger.WithField("duration", time.Since(start).Round(time.Millisecond)))

	return out, nil
}

// Diagnostics returns the truncation diagnostics of the last Update.
func (a *Analysis) Diagnostics() Diagnostics {
	return a.diag
}

// Dims returns the state dimension, observation count and ensemble size.
func (a *Analysis) Dims() (n, m, size int) {
	return a.stateDim, a.obsDim, a.size
}

// covarianceFactor returns HE = H' + inflation * E, the factor whose outer
// product approximates the innovation covariance.
func (a *Analysis) covarianceFactor() *mat.Dense {
	he := ensemble.Anomalies(a.predictions)
	var scaled mat.Dense
	scaled.Scale(a.inflation, a.errs)
	he.Add(he, &scaled)
	return he
}

func checkDims(what string, m *mat.Dense, rows, cols int) error {
	r, c := m.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("%s are %dx%d, expected %dx%d", what, r, c, rows, cols)
	}
	return nil
}
