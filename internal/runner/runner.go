// Package runner orchestrates analysis cycles: it loads the configured
// input matrices, drives the analysis engine and persists results and run
// records.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/internal/state"
	"github.com/daengine/daengine/pkg/assim"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/matio"
	"github.com/daengine/daengine/pkg/notifier"
	"github.com/daengine/daengine/pkg/types"
)

// Runner executes the cycles of one configuration.
type Runner struct {
	cfg      *types.EngineConfig
	root     string
	log      logger.Logger
	states   *state.Manager
	notifier *notifier.RunNotifier
}

// New creates a runner rooted at projectRoot.
func New(cfg *types.EngineConfig, projectRoot string, log logger.Logger, n *notifier.RunNotifier) *Runner {
	if n == nil {
		n = notifier.New(false, log)
	}
	return &Runner{
		cfg:      cfg,
		root:     projectRoot,
		log:      log,
		states:   state.NewManager(projectRoot, log),
		notifier: n,
	}
}

// States exposes the run record manager.
func (r *Runner) States() *state.Manager {
	return r.states
}

// RunAll runs every configured cycle.
func (r *Runner) RunAll(ctx context.Context) error {
	return r.RunCycles(ctx, r.cfg.Cycles)
}

// RunCycles runs the given cycles concurrently, bounded by the configured
// parallelization. A failing cycle does not cancel its siblings; all
// failures are reported together.
func (r *Runner) RunCycles(ctx context.Context, cycles []types.Cycle) error {
	limit := 1
	if r.cfg.Scheduling != nil && r.cfg.Scheduling.Parallelization > 0 {
		limit = r.cfg.Scheduling.Parallelization
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	failures := make([]error, len(cycles))
	for i := range cycles {
		cycle := cycles[i]
		idx := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.RunCycle(ctx, &cycle); err != nil {
				failures[idx] = fmt.Errorf("cycle %q: %w", cycle.Name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// RunCycle runs a single cycle end to end.
func (r *Runner) RunCycle(ctx context.Context, cycle *types.Cycle) error {
	log := r.log.WithStage(cycle.Name)
	start := time.Now()

	rec, err := r.states.StartRun(cycle.Name, r.cfg.Method)
	if err != nil {
		return err
	}

	out, analysis, err := r.analyse(ctx, cycle, log)
	if err != nil {
		if ferr := r.states.FailRun(rec.RunID, err); ferr != nil {
			log.Warn("failed to persist run failure", logger.WithField("error", ferr))
		}
		r.notifier.NotifyRunFailure(cycle.Name, err)
		return err
	}

	outputPath := r.resolve(cycle.OutputPath)
	if err := matio.WriteMatrix(outputPath, out); err != nil {
		if ferr := r.states.FailRun(rec.RunID, err); ferr != nil {
			log.Warn("failed to persist run failure", logger.WithField("error", ferr))
		}
		r.notifier.NotifyRunFailure(cycle.Name, err)
		return err
	}

	n, m, size := analysis.Dims()
	if err := r.states.CompleteRun(rec.RunID, analysis.Diagnostics(), n, m, size, cycle.OutputPath); err != nil {
		log.Warn("failed to persist run record", logger.WithField("error", err))
	}

	log.Success("analysed ensemble written",
		logger.WithField("output", cycle.OutputPath),
		logger.WithField("runId", rec.RunID))
	r.notifier.NotifyRunSuccess(cycle.Name, time.Since(start))
	return nil
}

func (r *Runner) analyse(ctx context.Context, cycle *types.Cycle, log logger.Logger) (*mat.Dense, *assim.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	opts := assim.Options{
		Method:    r.cfg.Method,
		Inflation: r.cfg.Inflation,
		Logger:    log,
	}
	if r.cfg.Seed != 0 {
		opts.Src = rand.NewSource(r.cfg.Seed)
	}
	if t := r.cfg.Truncation; t != nil {
		if t.Threshold != nil {
			opts.Truncation = t.Threshold
		} else if t.EnergyPercent != nil {
			opts.TruncationPercent = *t.EnergyPercent
		}
	}

	var err error
	if opts.State, err = matio.ReadMatrix(r.resolve(cycle.StatePath)); err != nil {
		return nil, nil, err
	}
	if opts.Predictions, err = matio.ReadMatrix(r.resolve(cycle.PredictionsPath)); err != nil {
		return nil, nil, err
	}
	if cycle.ObservationsPath != "" {
		if opts.Observations, err = matio.ReadVector(r.resolve(cycle.ObservationsPath)); err != nil {
			return nil, nil, err
		}
	}
	if cycle.PerturbedObservationsPath != "" {
		if opts.PerturbedObservations, err = matio.ReadMatrix(r.resolve(cycle.PerturbedObservationsPath)); err != nil {
			return nil, nil, err
		}
	}
	if cycle.ErrorEnsemblePath != "" {
		if opts.ErrorEnsemble, err = matio.ReadMatrix(r.resolve(cycle.ErrorEnsemblePath)); err != nil {
			return nil, nil, err
		}
	}
	if err := r.applyErrorModel(&opts, cycle); err != nil {
		return nil, nil, err
	}

	analysis, err := assim.New(opts)
	if err != nil {
		return nil, nil, err
	}

	out, err := analysis.Update()
	if err != nil {
		return nil, nil, err
	}
	return out, analysis, nil
}

func (r *Runner) applyErrorModel(opts *assim.Options, cycle *types.Cycle) error {
	em := r.cfg.ErrorModel
	if em == nil {
		return nil
	}
	switch em.Kind {
	case types.ErrorModelStddev:
		opts.ErrStd = em.Stddev
	case types.ErrorModelPercent:
		opts.ErrPercent = em.Percent
	case types.ErrorModelCovariance:
		cov, err := matio.ReadMatrix(r.resolve(em.CovariancePath))
		if err != nil {
			return err
		}
		sym, err := toSymmetric(cov)
		if err != nil {
			return fmt.Errorf("%s: %w", em.CovariancePath, err)
		}
		opts.ErrorCovariance = sym
	case types.ErrorModelEnsemble:
		if opts.ErrorEnsemble == nil {
			return fmt.Errorf("cycle %q has no errorEnsemblePath for the ensemble error model", cycle.Name)
		}
	}
	return nil
}

// toSymmetric converts a square matrix to symmetric form, averaging any
// asymmetry left by file round-trips.
func toSymmetric(m *mat.Dense) (*mat.SymDense, error) {
	rows, cols := m.Dims()
	if rows != cols {
		return nil, fmt.Errorf("covariance must be square, got %dx%d", rows, cols)
	}
	sym := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := i; j < cols; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return sym, nil
}

func (r *Runner) resolve(path string) string {
	if filepath.IsAbs(path) || r.root == "" {
		return path
	}
	return filepath.Join(r.root, path)
}
