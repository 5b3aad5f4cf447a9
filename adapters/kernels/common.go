// Package kernels implements the SP 800-22 statistical tests behind the
// ports.Kernel interface. Every kernel is a pure function of its inputs;
// the multi-threaded ones split work through a workpool.Strategy and only
// ever combine integer or per-item partials, so any worker count produces
// the same result.
package kernels

import (
	"fmt"

	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/numeric"
)

// param reads key from ps, falling back to v's recommended default.
func param(ps kernel.ParameterSet, v kernel.Variant, key string) int {
	return ps.Int(key, kernel.Defaults(v).Int(key, 0))
}

// emit guards p and appends it to res.
func emit(res *kernel.TestResult, name string, p float64) error {
	p, err := numeric.CheckPValue(name, p)
	if err != nil {
		return err
	}
	res.AddPValue(name, p)
	return nil
}

// chiSquare returns Σ (obs_i − N·π_i)² / (N·π_i).
func chiSquare(obs []int, pi []float64, n int) float64 {
	sum := 0.0
	for i, o := range obs {
		exp := float64(n) * pi[i]
		d := float64(o) - exp
		sum += d * d / exp
	}
	return sum
}

// patternCounts tallies the m-bit patterns starting at offsets [lo, hi) of
// b, reading past the end cyclically. Pattern values are big-endian.
func patternCounts(b []uint8, m, lo, hi int) []int {
	counts := make([]int, 1<<uint(m))
	if m == 0 {
		counts[0] = hi - lo
		return counts
	}
	n := len(b)
	if n == 0 || lo >= hi {
		return counts
	}
	mask := 1<<uint(m) - 1
	v := 0
	for k := 0; k < m; k++ {
		v = v<<1 | int(b[(lo+k)%n])
	}
	for i := lo; i < hi; i++ {
		counts[v]++
		v = (v<<1 | int(b[(i+m)%n])) & mask
	}
	return counts
}

// sumSquares adds the squared counts exactly.
func sumSquares(counts []int) int64 {
	var s int64
	for _, c := range counts {
		s += int64(c) * int64(c)
	}
	return s
}

func invalid(key string, format string, args ...interface{}) error {
	return core.NewInvalidParametersError(key, fmt.Sprintf(format, args...))
}

func bitString(t []uint8) string {
	buf := make([]byte, len(t))
	for i, b := range t {
		buf[i] = '0' + b
	}
	return string(buf)
}
