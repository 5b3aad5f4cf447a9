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

const cusumMinBits = 100

// CumulativeSums measures the maximal excursion of the ±1 random walk,
// once from the start of the sequence and once from its end.
type CumulativeSums struct{}

func (CumulativeSums) Variant() kernel.Variant { return kernel.CumulativeSums }

func (CumulativeSums) Compute(_ context.Context, seq *bits.Sequence, _ kernel.ParameterSet, _ ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	if n < cusumMinBits {
		return kernel.TestResult{}, core.NewInsufficientDataError("cumulative sums needs %d bits, have %d", cusumMinBits, n)
	}

	var res kernel.TestResult
	for _, dir := range []struct {
		name    string
		reverse bool
	}{{"forward", false}, {"reverse", true}} {
		z, p := cumulativeSums(seq.View(), dir.reverse)
		res.AddStatistic("z_"+dir.name, float64(z))
		if err := emit(&res, dir.name, p); err != nil {
			return kernel.TestResult{}, err
		}
	}
	return res, nil
}

// cumulativeSums returns the largest partial-sum magnitude z and its p-value.
func cumulativeSums(b []uint8, reverse bool) (int, float64) {
	n := len(b)
	s, z := 0, 0
	for i := 0; i < n; i++ {
		idx := i
		if reverse {
			idx = n - 1 - i
		}
		if b[idx] == 1 {
			s++
		} else {
			s--
		}
		if s > z {
			z = s
		} else if -s > z {
			z = -s
		}
	}

	zf := float64(z)
	rootN := math.Sqrt(float64(n))
	phi := numeric.NormalCDF

	sum1 := 0.0
	for k := (-n/z + 1) / 4; k <= (n/z-1)/4; k++ {
		kf := float64(k)
		sum1 += phi((4*kf+1)*zf/rootN) - phi((4*kf-1)*zf/rootN)
	}
	sum2 := 0.0
	for k := (-n/z - 3) / 4; k <= (n/z-1)/4; k++ {
		kf := float64(k)
		sum2 += phi((4*kf+3)*zf/rootN) - phi((4*kf+1)*zf/rootN)
	}
	return z, 1 - sum1 + sum2
}
