// Package transform maps Gaussian ensembles onto non-Gaussian marginals.
//
// The anamorphosis here is an empirical quantile mapping: every ensemble
// value is pushed through the ensemble's own empirical CDF and pulled back
// through the quantile function of a target Gaussian mixture. The mapping is
// monotone, so the rank structure of the ensemble survives.
package transform

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSampleCount is how many mixture samples back the target CDF when
// none is configured.
const DefaultSampleCount = 100000

// Mixture describes a Gaussian mixture by component. Weights need not sum
// to one; they are normalized. All three slices must have the same length.
type Mixture struct {
	Weights []float64
	Means   []float64
	Stddevs []float64
}

// Validate checks component counts and weight positivity.
func (m Mixture) Validate() error {
	if len(m.Weights) == 0 {
		return fmt.Errorf("mixture has no components")
	}
	if len(m.Means) != len(m.Weights) || len(m.Stddevs) != len(m.Weights) {
		return fmt.Errorf("mixture component mismatch: %d weights, %d means, %d stddevs",
			len(m.Weights), len(m.Means), len(m.Stddevs))
	}
	sum := 0.0
	for i, w := range m.Weights {
		if w < 0 {
			return fmt.Errorf("mixture weight %d is negative", i)
		}
		if m.Stddevs[i] <= 0 {
			return fmt.Errorf("mixture stddev %d must be positive", i)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("mixture weights sum to zero")
	}
	return nil
}

// normalized returns the weights scaled to sum to one.
func (m Mixture) normalized() []float64 {
	sum := 0.0
	for _, w := range m.Weights {
		sum += w
	}
	out := make([]float64, len(m.Weights))
	for i, w := range m.Weights {
		out[i] = w / sum
	}
	return out
}

// Sample draws count values from the mixture, allocating draws to
// components proportionally to their normalized weights.
func (m Mixture) Sample(count int, src rand.Source) []float64 {
	weights := m.normalized()
	samples := make([]float64, 0, count)
	for i, w := range weights {
		n := int(math.Round(w * float64(count)))
		dist := distuv.Normal{Mu: m.Means[i], Sigma: m.Stddevs[i], Src: src}
		for k := 0; k < n; k++ {
			samples = append(samples, dist.Rand())
		}
	}
	return samples
}

// Options configure an anamorphosis run.
type Options struct {
	// SampleCount is the number of mixture draws backing the target CDF.
	// Zero means DefaultSampleCount.
	SampleCount int
	// Src seeds the mixture sampling. Nil means time-seeded.
	Src rand.Source
}

// Anamorphosis maps every value of the ensemble onto the target mixture
// marginal. The output has the ensemble's shape.
func Anamorphosis(ens *mat.Dense, mix Mixture, opts Options) (*mat.Dense, error) {
	if err := mix.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mixture: %w", err)
	}

	count := opts.SampleCount
	if count == 0 {
		count = DefaultSampleCount
	}
	src := opts.Src
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	target := mix.Sample(count, src)
	if len(target) == 0 {
		return nil, fmt.Errorf("mixture sampling produced no values")
	}
	sort.Float64s(target)

	rows, cols := ens.Dims()
	source := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			source = append(source, ens.At(i, j))
		}
	}
	sort.Float64s(source)

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := stat.CDF(ens.At(i, j), stat.Empirical, source, nil)
			out.Set(i, j, stat.Quantile(p, stat.Empirical, target, nil))
		}
	}
	return out, nil
}
