package kernels

import (
	"context"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/ports"
)

const blockFrequencyMinBits = 100

// BlockFrequency checks that the proportion of ones in each M-bit block
// is close to one half.
type BlockFrequency struct{}

func (BlockFrequency) Variant() kernel.Variant { return kernel.BlockFrequency }

func (BlockFrequency) Compute(_ context.Context, seq *bits.Sequence, ps kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.BlockFrequency, kernel.ParamBlockLength)
	if m < 1 || m > n {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "M=%d for n=%d", m, n)
	}
	if n < blockFrequencyMinBits {
		return kernel.TestResult{}, core.NewInsufficientDataError("block frequency needs %d bits, have %d", blockFrequencyMinBits, n)
	}

	chi2, blocks := blockFrequency(seq.View(), m)
	var res kernel.TestResult
	res.AddStatistic("chi_squared", chi2)
	res.AddStatistic("blocks", float64(blocks))
	if err := emit(&res, "p", numeric.Igamc(float64(blocks)/2, chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

func blockFrequency(b []uint8, m int) (chi2 float64, blocks int) {
	blocks = len(b) / m
	sum := 0.0
	for j := 0; j < blocks; j++ {
		ones := 0
		for _, x := range b[j*m : (j+1)*m] {
			ones += int(x)
		}
		d := float64(ones)/float64(m) - 0.5
		sum += d * d
	}
	return 4 * float64(m) * sum, blocks
}
