package transform_test

import (
	"sort"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/daengine/daengine/pkg/ensemble"
	"github.com/daengine/daengine/pkg/transform"
)

func testMixture() transform.Mixture {
	return transform.Mixture{
		Weights: []float64{0.33, 0.33, 0.33},
		Means:   []float64{0.5, 1.0, 1.5},
		Stddevs: []float64{0.1, 0.1, 0.2},
	}
}

func TestMixture_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mix     transform.Mixture
		wantErr bool
	}{
		{"valid", testMixture(), false},
		{"empty", transform.Mixture{}, true},
		{
			"component mismatch",
			transform.Mixture{Weights: []float64{1, 1}, Means: []float64{0}, Stddevs: []float64{1, 1}},
			true,
		},
		{
			"negative weight",
			transform.Mixture{Weights: []float64{-1, 2}, Means: []float64{0, 1}, Stddevs: []float64{1, 1}},
			true,
		},
		{
			"zero weights",
			transform.Mixture{Weights: []float64{0, 0}, Means: []float64{0, 1}, Stddevs: []float64{1, 1}},
			true,
		},
		{
			"non-positive stddev",
			transform.Mixture{Weights: []float64{1}, Means: []float64{0}, Stddevs: []float64{0}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mix.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAnamorphosis_ShapeAndRange(t *testing.T) {
	ens := ensemble.NewGaussian(10, 50, 0, 1, rand.NewSource(1))

	out, err := transform.Anamorphosis(ens, testMixture(), transform.Options{
		SampleCount: 5000,
		Src:         rand.NewSource(2),
	})
	if err != nil {
		t.Fatalf("anamorphosis failed: %v", err)
	}

	rows, cols := out.Dims()
	if rows != 10 || cols != 50 {
		t.Fatalf("expected 10x50, got %dx%d", rows, cols)
	}

	// Mixture components live between 0.5 and 1.5 with small spreads, so
	// the mapped values must land in a tight band around them.
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := out.At(i, j)
			if v < -1 || v > 4 {
				t.Fatalf("mapped value %g far outside the mixture support", v)
			}
		}
	}
}

func TestAnamorphosis_Monotone(t *testing.T) {
	ens := mat.NewDense(1, 9, []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2})

	out, err := transform.Anamorphosis(ens, testMixture(), transform.Options{
		SampleCount: 5000,
		Src:         rand.NewSource(3),
	})
	if err != nil {
		t.Fatalf("anamorphosis failed: %v", err)
	}

	// Input was sorted, so the quantile mapping must keep the order.
	mapped := make([]float64, 9)
	mat.Row(mapped, 0, out)
	if !sort.Float64sAreSorted(mapped) {
		t.Errorf("mapping broke monotonicity: %v", mapped)
	}
}

func TestAnamorphosis_Deterministic(t *testing.T) {
	ens := ensemble.NewGaussian(4, 20, 0, 1, rand.NewSource(7))

	run := func() *mat.Dense {
		out, err := transform.Anamorphosis(ens, testMixture(), transform.Options{
			SampleCount: 2000,
			Src:         rand.NewSource(11),
		})
		if err != nil {
			t.Fatalf("anamorphosis failed: %v", err)
		}
		return out
	}

	if !mat.Equal(run(), run()) {
		t.Error("same seed produced different transforms")
	}
}

func TestAnamorphosis_WeightsAreNormalized(t *testing.T) {
	ens := ensemble.NewGaussian(2, 10, 0, 1, rand.NewSource(5))

	scaled := testMixture()
	for i := range scaled.Weights {
		scaled.Weights[i] *= 4
	}

	a, err := transform.Anamorphosis(ens, testMixture(), transform.Options{SampleCount: 1000, Src: rand.NewSource(17)})
	if err != nil {
		t.Fatalf("anamorphosis failed: %v", err)
	}
	b, err := transform.Anamorphosis(ens, scaled, transform.Options{SampleCount: 1000, Src: rand.NewSource(17)})
	if err != nil {
		t.Fatalf("anamorphosis failed: %v", err)
	}

	if !mat.Equal(a, b) {
		t.Error("scaling all weights changed the transform")
	}
}

func TestMixture_SampleAllocation(t *testing.T) {
	mix := transform.Mixture{
		Weights: []float64{3, 1},
		Means:   []float64{0, 100},
		Stddevs: []float64{1, 1},
	}

	samples := mix.Sample(1000, rand.NewSource(1))
	if len(samples) < 990 || len(samples) > 1010 {
		t.Fatalf("expected about 1000 samples, got %d", len(samples))
	}

	high := 0
	for _, s := range samples {
		if s > 50 {
			high++
		}
	}
	if high < 200 || high > 300 {
		t.Errorf("expected about a quarter of samples near 100, got %d of %d", high, len(samples))
	}
}
