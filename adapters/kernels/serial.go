package kernels

import (
	"context"
	"math"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/internal/workpool"
	"gosts/ports"
)

// Serial checks the uniformity of all overlapping m-bit patterns through
// the ψ² differences of lengths m, m-1 and m-2. Partitions own ranges of
// starting offsets.
type Serial struct{}

func (Serial) Variant() kernel.Variant { return kernel.Serial }

func (Serial) Compute(ctx context.Context, seq *bits.Sequence, ps kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.Serial, kernel.ParamBlockLength)
	if m < 2 || m > 24 || m > n {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "m=%d for n=%d", m, n)
	}
	if limit := numeric.Log2Floor(n) - 2; m >= limit {
		return kernel.TestResult{}, core.NewInsufficientDataError("serial with m=%d needs m < %d", m, limit)
	}

	psi, err := serialPsi(ctx, env.Strategy, seq.View(), m)
	if err != nil {
		return kernel.TestResult{}, err
	}
	del1, del2, p1, p2 := serialPValues(psi, m)

	var res kernel.TestResult
	res.AddStatistic("psi2_m", psi[0])
	res.AddStatistic("psi2_m1", psi[1])
	res.AddStatistic("psi2_m2", psi[2])
	res.AddStatistic("delta1", del1)
	res.AddStatistic("delta2", del2)
	if err := emit(&res, "p1", p1); err != nil {
		return kernel.TestResult{}, err
	}
	if err := emit(&res, "p2", p2); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// serialPsi returns ψ²_m, ψ²_{m-1}, ψ²_{m-2}.
func serialPsi(ctx context.Context, s workpool.Strategy, b []uint8, m int) ([3]float64, error) {
	var psi [3]float64
	n := len(b)
	parts, err := workpool.Map(ctx, s, n, func(r workpool.Range) ([3][]int, error) {
		var counts [3][]int
		for j := range counts {
			if l := m - j; l >= 1 {
				counts[j] = patternCounts(b, l, r.Lo, r.Hi)
			}
		}
		return counts, nil
	})
	if err != nil {
		return psi, err
	}
	for j := range psi {
		l := m - j
		if l < 1 {
			continue
		}
		byPart := make([][]int, len(parts))
		for i, p := range parts {
			byPart[i] = p[j]
		}
		sq := sumSquares(workpool.SumCounts(byPart))
		psi[j] = math.Ldexp(float64(sq), l)/float64(n) - float64(n)
	}
	return psi, nil
}

func serialPValues(psi [3]float64, m int) (del1, del2, p1, p2 float64) {
	del1 = psi[0] - psi[1]
	del2 = psi[0] - 2*psi[1] + psi[2]
	p1 = numeric.Igamc(math.Ldexp(1, m-2), del1/2)
	p2 = numeric.Igamc(math.Ldexp(1, m-3), del2/2)
	return del1, del2, p1, p2
}
