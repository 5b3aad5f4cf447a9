// Package numeric wraps the special functions the kernels map statistics
// through, and guards the p-values they produce.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"gosts/domain/core"
)

// roundingSlack is how far outside [0,1] a p-value may land from floating
// point cancellation before it is treated as a defect.
const roundingSlack = 1e-12

// Igamc is the upper regularized incomplete gamma function Q(a, x).
func Igamc(a, x float64) float64 {
	return mathext.GammaIncRegComp(a, x)
}

// Igam is the lower regularized incomplete gamma function P(a, x).
func Igam(a, x float64) float64 {
	return mathext.GammaIncReg(a, x)
}

// NormalCDF is the standard normal distribution function.
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// Erfc is the complementary error function.
func Erfc(x float64) float64 {
	return math.Erfc(x)
}

// ChiSquareSurvival returns P(X > x) for X ~ χ²(dof).
func ChiSquareSurvival(dof, x float64) float64 {
	return distuv.ChiSquared{K: dof}.Survival(x)
}

// CheckPValue rejects NaN, infinities and values meaningfully outside [0,1].
// Values within rounding slack of the interval are clamped onto it.
func CheckPValue(name string, p float64) (float64, error) {
	switch {
	case math.IsNaN(p) || math.IsInf(p, 0):
		return 0, core.NewComputationError("p-value %s is %v", name, p)
	case p < -roundingSlack || p > 1+roundingSlack:
		return 0, core.NewComputationError("p-value %s = %g outside [0,1]", name, p)
	case p < 0:
		return 0, nil
	case p > 1:
		return 1, nil
	}
	return p, nil
}

// CheckFinite rejects a NaN or infinite intermediate statistic.
func CheckFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return core.NewComputationError("statistic %s is %v", name, v)
	}
	return nil
}

// Log2Floor returns ⌊log2 n⌋ for n >= 1.
func Log2Floor(n int) int {
	l := -1
	for n > 0 {
		n >>= 1
		l++
	}
	return l
}
