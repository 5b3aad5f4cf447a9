package kernels

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/internal/workpool"
	"gosts/ports"
)

const (
	dftMinBits = 1000
	// ln(1/0.05): 95% of peaks of a random sequence stay below the threshold.
	dftThresholdFactor = 2.995732274
)

// DiscreteFourierTransform counts spectral peaks of the ±1 sequence that
// exceed the 95% threshold, detecting periodic features.
type DiscreteFourierTransform struct{}

func (DiscreteFourierTransform) Variant() kernel.Variant { return kernel.DiscreteFourierTransform }

func (DiscreteFourierTransform) Compute(ctx context.Context, seq *bits.Sequence, _ kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	if n < dftMinBits {
		return kernel.TestResult{}, core.NewInsufficientDataError("spectral test needs %d bits, have %d", dftMinBits, n)
	}

	n1, err := spectralPeaks(ctx, env.Strategy, seq.View())
	if err != nil {
		return kernel.TestResult{}, err
	}
	n0, d, p := spectralPValue(n, n1)

	var res kernel.TestResult
	res.AddStatistic("n0", n0)
	res.AddStatistic("n1", float64(n1))
	res.AddStatistic("d", d)
	if err := emit(&res, "p", p); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// spectralPeaks transforms b once and counts, across partitions of the
// harmonic range [0, n/2), the magnitudes below the threshold.
func spectralPeaks(ctx context.Context, s workpool.Strategy, b []uint8) (int, error) {
	n := len(b)
	x := make([]float64, n)
	for i, v := range b {
		x[i] = 2*float64(v) - 1
	}
	coeffs := fourier.NewFFT(n).Coefficients(nil, x)
	threshold := math.Sqrt(dftThresholdFactor * float64(n))

	parts, err := workpool.Map(ctx, s, n/2, func(r workpool.Range) (int, error) {
		below := 0
		for j := r.Lo; j < r.Hi; j++ {
			if cmplx.Abs(coeffs[j]) < threshold {
				below++
			}
		}
		return below, nil
	})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range parts {
		total += c
	}
	return total, nil
}

func spectralPValue(n, n1 int) (n0, d, p float64) {
	n0 = 0.95 * float64(n) / 2
	d = (float64(n1) - n0) / math.Sqrt(float64(n)/4*0.95*0.05)
	return n0, d, numeric.Erfc(math.Abs(d) / math.Sqrt2)
}
