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

// overlappingClasses is K: block match counts 0..K-1 are tallied
// individually and everything >= K shares the last class.
const overlappingClasses = 5

// overlappingPublished holds the corrected class probabilities tabulated
// for m=9, M=1032, which the exact expression below only approximates.
var overlappingPublished = [overlappingClasses + 1]float64{
	0.364091, 0.185659, 0.139381, 0.100571, 0.070432, 0.139865,
}

// OverlappingTemplateMatching counts overlapping occurrences of the m-bit
// all-ones template in M-bit blocks.
type OverlappingTemplateMatching struct{}

func (OverlappingTemplateMatching) Variant() kernel.Variant {
	return kernel.OverlappingTemplateMatching
}

func (OverlappingTemplateMatching) Compute(_ context.Context, seq *bits.Sequence, ps kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.OverlappingTemplateMatching, kernel.ParamTemplateLength)
	blockLen := param(ps, kernel.OverlappingTemplateMatching, kernel.ParamBlockLength)
	if m < 2 || m > blockLen {
		return kernel.TestResult{}, invalid(kernel.ParamTemplateLength, "m=%d for M=%d", m, blockLen)
	}
	if blockLen > n {
		return kernel.TestResult{}, invalid(kernel.ParamBlockLength, "M=%d exceeds n=%d", blockLen, n)
	}

	pi := overlappingProbabilities(m, blockLen)
	blocks := n / blockLen
	minPi := pi[0]
	for _, p := range pi[1:] {
		minPi = math.Min(minPi, p)
	}
	if float64(blocks)*minPi <= 5 {
		return kernel.TestResult{}, core.NewInsufficientDataError(
			"overlapping template expects N·min π = %.2f <= 5 with %d blocks", float64(blocks)*minPi, blocks)
	}

	counts := overlappingCounts(seq.View(), m, blockLen)
	chi2 := chiSquare(counts, pi, blocks)

	var res kernel.TestResult
	res.AddStatistic("chi_squared", chi2)
	res.AddStatistic("blocks", float64(blocks))
	if err := emit(&res, "p", numeric.Igamc(float64(overlappingClasses)/2, chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

// overlappingCounts buckets each block by how many times the all-ones
// template of length m occurs in it, overlaps included.
func overlappingCounts(b []uint8, m, blockLen int) []int {
	counts := make([]int, overlappingClasses+1)
	blocks := len(b) / blockLen
	for j := 0; j < blocks; j++ {
		block := b[j*blockLen : (j+1)*blockLen]
		w, run := 0, 0
		for _, x := range block {
			if x == 1 {
				run++
				if run >= m {
					w++
				}
			} else {
				run = 0
			}
		}
		if w > overlappingClasses {
			w = overlappingClasses
		}
		counts[w]++
	}
	return counts
}

// overlappingProbabilities returns π_0..π_K for the all-ones template of
// length m in blocks of blockLen bits. The default sizes use the published
// table; other sizes use the exact expression.
func overlappingProbabilities(m, blockLen int) []float64 {
	if m == 9 && blockLen == 1032 {
		pi := overlappingPublished
		return pi[:]
	}
	lambda := float64(blockLen-m+1) / math.Ldexp(1, m)
	eta := lambda / 2
	pi := make([]float64, overlappingClasses+1)
	sum := 0.0
	for u := 0; u < overlappingClasses; u++ {
		pi[u] = overlapProbability(u, eta)
		sum += pi[u]
	}
	pi[overlappingClasses] = 1 - sum
	return pi
}

// overlapProbability is the probability of exactly u overlapping matches
// given the expected count parameter eta.
func overlapProbability(u int, eta float64) float64 {
	if u == 0 {
		return math.Exp(-eta)
	}
	lgam := func(x float64) float64 {
		v, _ := math.Lgamma(x)
		return v
	}
	uf := float64(u)
	sum := 0.0
	for l := 1; l <= u; l++ {
		lf := float64(l)
		sum += math.Exp(-eta - uf*math.Ln2 + lf*math.Log(eta) -
			lgam(lf+1) + lgam(uf) - lgam(lf) - lgam(uf-lf+1))
	}
	return sum
}
