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

const (
	universalMinL = 6
	universalMaxL = 16
)

// universalThresholds[i] is the shortest sequence for L = 6+i.
var universalThresholds = []int{
	387840, 904960, 2068480, 4654080, 10342400, 22753280,
	49643520, 107560960, 231669760, 496435200, 1059061760,
}

var (
	universalExpected = []float64{
		5.2177052, 6.1962507, 7.1836656, 8.1764248, 9.1723243, 10.170032,
		11.168765, 12.168070, 13.167693, 14.167488, 15.167379,
	}
	universalVariance = []float64{
		2.954, 3.125, 3.238, 3.311, 3.356, 3.384, 3.401, 3.410, 3.416, 3.419, 3.421,
	}
)

// UniversalBlockLength derives L from the sequence length, or 0 when n is
// too short for any tabulated L.
func UniversalBlockLength(n int) int {
	l := 0
	for i, t := range universalThresholds {
		if n >= t {
			l = universalMinL + i
		}
	}
	return l
}

// UniversalStatistical (Maurer) measures the distance between matching
// L-bit blocks, detecting compressible sequences.
type UniversalStatistical struct{}

func (UniversalStatistical) Variant() kernel.Variant { return kernel.UniversalStatistical }

func (UniversalStatistical) Compute(_ context.Context, seq *bits.Sequence, ps kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	l := UniversalBlockLength(n)
	if ps.Has(kernel.ParamBlockLength) {
		l = ps.Int(kernel.ParamBlockLength, l)
	} else if l == 0 {
		return kernel.TestResult{}, core.NewInsufficientDataError("universal test needs %d bits, have %d", universalThresholds[0], n)
	}
	if l < universalMinL || l > universalMaxL {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "L=%d outside [%d,%d]", l, universalMinL, universalMaxL)
	}
	q := ps.Int(kernel.ParamInitBlocks, 10*(1<<uint(l)))
	if q < 10*(1<<uint(l)) {
		return kernel.TestResult{}, invalid(kernel.ParamInitBlocks, "Q=%d below 10·2^%d", q, l)
	}
	if (q+1)*l > n {
		return kernel.TestResult{}, invalid(kernel.ParamInitBlocks, "Q=%d with L=%d leaves no test blocks in n=%d", q, l, n)
	}
	if need := universalThresholds[l-universalMinL]; n < need {
		return kernel.TestResult{}, core.NewInsufficientDataError("universal test with L=%d needs %d bits, have %d", l, need, n)
	}

	phi, k := universalPhi(seq.View(), l, q)
	p, sigma := universalPValue(phi, l, k)

	var res kernel.TestResult
	res.AddStatistic("L", float64(l))
	res.AddStatistic("Q", float64(q))
	res.AddStatistic("K", float64(k))
	res.AddStatistic("phi", phi)
	res.AddStatistic("sigma", sigma)
	if err := emit(&res, "p", p); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// universalPhi initialises the last-seen table with Q blocks, then averages
// log2 of the distance since each of the K remaining blocks was last seen.
func universalPhi(b []uint8, l, q int) (float64, int) {
	k := len(b)/l - q
	last := make([]int, 1<<uint(l))
	block := func(i int) int {
		v := 0
		for _, x := range b[(i-1)*l : i*l] {
			v = v<<1 | int(x)
		}
		return v
	}
	for i := 1; i <= q; i++ {
		last[block(i)] = i
	}
	sum := 0.0
	for i := q + 1; i <= q+k; i++ {
		dec := block(i)
		sum += math.Log2(float64(i - last[dec]))
		last[dec] = i
	}
	return sum / float64(k), k
}

func universalPValue(phi float64, l, k int) (p, sigma float64) {
	lf, kf := float64(l), float64(k)
	c := 0.7 - 0.8/lf + (4+32/lf)*math.Pow(kf, -3/lf)/15
	sigma = c * math.Sqrt(universalVariance[l-universalMinL]/kf)
	p = numeric.Erfc(math.Abs(phi-universalExpected[l-universalMinL]) / (math.Sqrt2 * sigma))
	return p, sigma
}
