package kernels

import (
	"context"
	"fmt"
	"math"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/internal/workpool"
	"gosts/ports"
)

// excursionStates are the walk states examined, in reporting order.
var excursionStates = []int{-4, -3, -2, -1, 1, 2, 3, 4}

// excursionPi[|x|-1][k] is the probability that a cycle visits state x
// exactly k times (k = 5 meaning five or more).
var excursionPi = [4][6]float64{
	{0.5, 0.25, 0.125, 0.0625, 0.03125, 0.03125},
	{0.75, 0.0625, 0.046875, 0.03515625, 0.0263671875, 0.0791015625},
	{0.8333333333, 0.02777777778, 0.02314814815, 0.01929012346, 0.01607510288, 0.0803755144},
	{0.875, 0.015625, 0.013671875, 0.01196289063, 0.0104675293, 0.0732727051},
}

const excursionMinCycles = 500

// randomWalk is the ±1 partial-sum walk of a sequence cut into cycles:
// cycle c covers positions [bounds[c], bounds[c+1]).
type randomWalk struct {
	sums   []int32
	bounds []int
}

func newRandomWalk(b []uint8) randomWalk {
	n := len(b)
	sums := make([]int32, n)
	bounds := []int{0}
	var s int32
	for i, x := range b {
		if x == 1 {
			s++
		} else {
			s--
		}
		sums[i] = s
		if s == 0 && i > 0 {
			bounds = append(bounds, i)
		}
	}
	if n > 0 && sums[n-1] == 0 {
		bounds = bounds[:len(bounds)-1]
	}
	bounds = append(bounds, n)
	return randomWalk{sums: sums, bounds: bounds}
}

// Cycles returns J.
func (w randomWalk) Cycles() int { return len(w.bounds) - 1 }

func checkCycles(n, cycles int) error {
	need := math.Max(0.005*math.Sqrt(float64(n)), excursionMinCycles)
	if float64(cycles) < need {
		return core.NewInsufficientDataError("random excursions needs %.0f cycles, have %d", need, cycles)
	}
	return nil
}

func stateName(x int) string { return fmt.Sprintf("x=%d", x) }

// RandomExcursions compares, per state, the number of cycles that visit
// it k times with the expected distribution. Partitions own cycle ranges.
type RandomExcursions struct{}

func (RandomExcursions) Variant() kernel.Variant { return kernel.RandomExcursions }

func (RandomExcursions) Compute(ctx context.Context, seq *bits.Sequence, _ kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	walk := newRandomWalk(seq.View())
	cycles := walk.Cycles()
	if err := checkCycles(seq.Len(), cycles); err != nil {
		return kernel.TestResult{}, err
	}

	chi2, err := excursionChiSquares(ctx, env.Strategy, walk)
	if err != nil {
		return kernel.TestResult{}, err
	}

	var res kernel.TestResult
	res.AddStatistic("cycles", float64(cycles))
	for i, x := range excursionStates {
		res.AddStatistic("chi_squared:"+stateName(x), chi2[i])
	}
	for i, x := range excursionStates {
		if err := emit(&res, stateName(x), numeric.Igamc(2.5, chi2[i]/2)); err != nil {
			return kernel.TestResult{}, err
		}
	}
	return res, nil
}

// excursionChiSquares returns one χ² per entry of excursionStates.
func excursionChiSquares(ctx context.Context, s workpool.Strategy, w randomWalk) ([]float64, error) {
	const width = 8
	parts, err := workpool.Map(ctx, s, w.Cycles(), func(r workpool.Range) ([]int, error) {
		nu := make([]int, 6*width)
		for c := r.Lo; c < r.Hi; c++ {
			var visits [width]int
			for _, v := range w.sums[w.bounds[c]:w.bounds[c+1]] {
				switch {
				case v >= -4 && v <= -1:
					visits[v+4]++
				case v >= 1 && v <= 4:
					visits[v+3]++
				}
			}
			for st, k := range visits {
				if k > 5 {
					k = 5
				}
				nu[k*width+st]++
			}
		}
		return nu, nil
	})
	if err != nil {
		return nil, err
	}
	nu := workpool.SumCounts(parts)

	cycles := float64(w.Cycles())
	out := make([]float64, width)
	for st, x := range excursionStates {
		pi := excursionPi[abs(x)-1]
		sum := 0.0
		for k := 0; k < 6; k++ {
			exp := cycles * pi[k]
			d := float64(nu[k*width+st]) - exp
			sum += d * d / exp
		}
		out[st] = sum
	}
	return out, nil
}

// RandomExcursionsVariant compares the total visits to each state in
// -9..9 with the number of cycles.
type RandomExcursionsVariant struct{}

func (RandomExcursionsVariant) Variant() kernel.Variant { return kernel.RandomExcursionsVariant }

func (RandomExcursionsVariant) Compute(_ context.Context, seq *bits.Sequence, _ kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	walk := newRandomWalk(seq.View())
	cycles := walk.Cycles()
	if err := checkCycles(seq.Len(), cycles); err != nil {
		return kernel.TestResult{}, err
	}

	var res kernel.TestResult
	res.AddStatistic("cycles", float64(cycles))
	visits := variantVisits(walk)
	for x := -9; x <= 9; x++ {
		if x == 0 {
			continue
		}
		if err := emit(&res, stateName(x), variantPValue(visits[x+9], cycles, x)); err != nil {
			return kernel.TestResult{}, err
		}
	}
	return res, nil
}

// variantVisits counts visits to each state -9..9, indexed by x+9.
func variantVisits(w randomWalk) [19]int {
	var visits [19]int
	for _, v := range w.sums {
		if v >= -9 && v <= 9 {
			visits[v+9]++
		}
	}
	return visits
}

func variantPValue(visits, cycles, x int) float64 {
	j := float64(cycles)
	return numeric.Erfc(math.Abs(float64(visits)-j) / math.Sqrt(2*j*float64(4*abs(x)-2)))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
