package kernels

import (
	"context"
	"math"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/gf2"
	"gosts/ports"
)

const rankMinMatrices = 38

// Rank checks linear dependence among fixed-length substrings by ranking
// disjoint M×Q matrices over GF(2). Matrices are tallied as full rank,
// full rank minus one, or lower.
type Rank struct{}

func (Rank) Variant() kernel.Variant { return kernel.Rank }

func (Rank) Compute(_ context.Context, seq *bits.Sequence, ps kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.Rank, kernel.ParamRows)
	q := param(ps, kernel.Rank, kernel.ParamCols)
	if m < 2 || q < 2 {
		return kernel.TestResult{}, invalid("matrix", "%dx%d below 2x2", m, q)
	}
	if m*q > n {
		return kernel.TestResult{}, invalid("matrix", "%dx%d exceeds %d bits", m, q, n)
	}
	matrices := n / (m * q)
	if matrices < rankMinMatrices {
		return kernel.TestResult{}, core.NewInsufficientDataError("rank needs %d matrices, have %d", rankMinMatrices, matrices)
	}

	counts, err := rankCounts(seq.View(), m, q, env.Allocator())
	if err != nil {
		return kernel.TestResult{}, err
	}
	chi2 := chiSquare(counts, rankProbabilities(m, q), matrices)

	var res kernel.TestResult
	res.AddStatistic("matrices", float64(matrices))
	res.AddStatistic("full_rank", float64(counts[0]))
	res.AddStatistic("full_rank_minus_one", float64(counts[1]))
	res.AddStatistic("chi_squared", chi2)
	if err := emit(&res, "p", math.Exp(-chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// rankCounts ranks every complete M·Q window of b in one reused matrix.
func rankCounts(b []uint8, m, q int, alloc gf2.Allocator) ([]int, error) {
	mx, err := gf2.New(m, q, alloc)
	if err != nil {
		return nil, err
	}
	defer mx.Release()

	full := min(m, q)
	counts := make([]int, 3)
	for k := 0; k < len(b)/(m*q); k++ {
		if err := mx.Fill(b, k); err != nil {
			return nil, err
		}
		switch mx.Rank() {
		case full:
			counts[0]++
		case full - 1:
			counts[1]++
		default:
			counts[2]++
		}
	}
	return counts, nil
}

// rankProbabilities returns the chance that a random M×Q matrix has rank
// min(M,Q), min(M,Q)-1, or anything lower.
func rankProbabilities(m, q int) []float64 {
	full := min(m, q)
	pFull := rankProbability(full, m, q)
	pMinus := rankProbability(full-1, m, q)
	return []float64{pFull, pMinus, 1 - pFull - pMinus}
}

func rankProbability(r, m, q int) float64 {
	p := math.Ldexp(1, r*(q+m-r)-m*q)
	for i := 0; i < r; i++ {
		p *= (1 - math.Ldexp(1, i-q)) * (1 - math.Ldexp(1, i-m)) / (1 - math.Ldexp(1, i-r))
	}
	return p
}
