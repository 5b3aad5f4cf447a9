package kernels

import (
	"context"
	"math"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/ports"
)

// ApproximateEntropy compares the frequencies of overlapping m-bit and
// (m+1)-bit patterns against a random sequence's.
type ApproximateEntropy struct{}

func (ApproximateEntropy) Variant() kernel.Variant { return kernel.ApproximateEntropy }

func (ApproximateEntropy) Compute(_ context.Context, seq *bits.Sequence, ps kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.ApproximateEntropy, kernel.ParamBlockLength)
	if m < 1 || m+1 > n {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "m=%d for n=%d", m, n)
	}
	if limit := numeric.Log2Floor(n) - 5; m >= limit {
		return kernel.TestResult{}, core.NewInsufficientDataError("approximate entropy with m=%d needs m < %d", m, limit)
	}

	apEn, chi2 := approximateEntropy(seq.View(), m)
	if err := numeric.CheckFinite("chi_squared", chi2); err != nil {
		return kernel.TestResult{}, err
	}
	var res kernel.TestResult
	res.AddStatistic("apen", apEn)
	res.AddStatistic("chi_squared", chi2)
	if err := emit(&res, "p", numeric.Igamc(math.Ldexp(1, m-1), chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// approximateEntropy returns ApEn(m) and χ² = 2n(ln 2 − ApEn).
func approximateEntropy(b []uint8, m int) (apEn, chi2 float64) {
	n := len(b)
	apEn = entropyPhi(b, m) - entropyPhi(b, m+1)
	chi2 = 2 * float64(n) * (math.Ln2 - apEn)
	return apEn, chi2
}

// entropyPhi is Σ (c/n)·ln(c/n) over the cyclic m-bit pattern counts.
func entropyPhi(b []uint8, m int) float64 {
	if m == 0 {
		return 0
	}
	n := float64(len(b))
	sum := 0.0
	for _, c := range patternCounts(b, m, 0, len(b)) {
		if c > 0 {
			f := float64(c) / n
			sum += f * math.Log(f)
		}
	}
	return sum
}
