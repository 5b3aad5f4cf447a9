package kernels

import (
	"context"
	"math"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/gf2"
	"gosts/internal/numeric"
	"gosts/internal/workpool"
	"gosts/ports"
)

const linearComplexityMinBlocks = 200

var linearComplexityPi = []float64{0.01047, 0.03125, 0.125, 0.5, 0.25, 0.0625, 0.020833}

// LinearComplexity measures the shortest LFSR generating each M-bit block.
// Blocks are independent, so partitions own contiguous block ranges.
type LinearComplexity struct{}

func (LinearComplexity) Variant() kernel.Variant { return kernel.LinearComplexity }

func (LinearComplexity) Compute(ctx context.Context, seq *bits.Sequence, ps kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.LinearComplexity, kernel.ParamBlockLength)
	if m < 4 || m > n {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "M=%d for n=%d", m, n)
	}
	blocks := n / m
	if blocks < linearComplexityMinBlocks {
		return kernel.TestResult{}, core.NewInsufficientDataError("linear complexity needs %d blocks, have %d", linearComplexityMinBlocks, blocks)
	}

	counts, err := complexityCounts(ctx, env, seq.View(), m)
	if err != nil {
		return kernel.TestResult{}, err
	}
	chi2 := chiSquare(counts, linearComplexityPi, blocks)

	var res kernel.TestResult
	res.AddStatistic("chi_squared", chi2)
	res.AddStatistic("blocks", float64(blocks))
	if err := emit(&res, "p", numeric.Igamc(3, chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

func complexityCounts(ctx context.Context, env ports.KernelEnv, b []uint8, m int) ([]int, error) {
	blocks := len(b) / m
	sign := 1.0
	if m%2 == 1 {
		sign = -1
	}
	mf := float64(m)
	mu := mf/2 + (9-sign)/36 - (mf/3+2.0/9.0)/math.Pow(2, mf)

	parts, err := workpool.Map(ctx, env.Strategy, blocks, func(r workpool.Range) ([]int, error) {
		sc, err := gf2.AllocScratch(m, env.Allocator())
		if err != nil {
			return nil, err
		}
		defer sc.Release()

		counts := make([]int, len(linearComplexityPi))
		for j := r.Lo; j < r.Hi; j++ {
			l := gf2.LinearComplexity(b[j*m:(j+1)*m], sc)
			counts[complexityClass(sign*(float64(l)-mu)+2.0/9.0)]++
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return workpool.SumCounts(parts), nil
}

func complexityClass(t float64) int {
	switch {
	case t <= -2.5:
		return 0
	case t <= -1.5:
		return 1
	case t <= -0.5:
		return 2
	case t <= 0.5:
		return 3
	case t <= 1.5:
		return 4
	case t <= 2.5:
		return 5
	}
	return 6
}
