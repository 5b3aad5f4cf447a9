package kernels

import (
	"context"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
	"gosts/ports"
)

// runTable describes the block size and longest-run classes used for a
// given sequence length. Runs <= minRun fall in class 0 and runs >=
// minRun+len(pi)-1 in the last class.
type runTable struct {
	m      int
	minRun int
	pi     []float64
}

var runTables = []struct {
	below int
	table runTable
}{
	{6272, runTable{m: 8, minRun: 1, pi: []float64{0.21484375, 0.3671875, 0.23046875, 0.1875}}},
	{750000, runTable{m: 128, minRun: 4, pi: []float64{0.1174035788, 0.242955959, 0.249363483, 0.17517706, 0.102701071, 0.112398847}}},
	{0, runTable{m: 10000, minRun: 10, pi: []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727}}},
}

const longestRunMinBits = 128

func runTableFor(n int) runTable {
	for _, rt := range runTables {
		if rt.below == 0 || n < rt.below {
			return rt.table
		}
	}
	return runTables[len(runTables)-1].table
}

// LongestRunOfOnes compares the distribution of the longest run of ones
// within fixed blocks to its expected distribution.
type LongestRunOfOnes struct{}

func (LongestRunOfOnes) Variant() kernel.Variant { return kernel.LongestRunOfOnes }

func (LongestRunOfOnes) Compute(_ context.Context, seq *bits.Sequence, _ kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	if n < longestRunMinBits {
		return kernel.TestResult{}, core.NewInsufficientDataError("longest run needs %d bits, have %d", longestRunMinBits, n)
	}

	tbl := runTableFor(n)
	counts, blocks := longestRunCounts(seq.View(), tbl)
	chi2 := chiSquare(counts, tbl.pi, blocks)

	var res kernel.TestResult
	res.AddStatistic("block_length", float64(tbl.m))
	res.AddStatistic("chi_squared", chi2)
	k := len(tbl.pi) - 1
	if err := emit(&res, "p", numeric.Igamc(float64(k)/2, chi2/2)); err != nil {
		return kernel.TestResult{}, err
	}
	return res, nil
}

func longestRunCounts(b []uint8, tbl runTable) ([]int, int) {
	blocks := len(b) / tbl.m
	last := len(tbl.pi) - 1
	counts := make([]int, len(tbl.pi))
	for j := 0; j < blocks; j++ {
		longest, run := 0, 0
		for _, x := range b[j*tbl.m : (j+1)*tbl.m] {
			if x == 1 {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}
		class := longest - tbl.minRun
		if class < 0 {
			class = 0
		} else if class > last {
			class = last
		}
		counts[class]++
	}
	return counts, blocks
}
