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

// NonOverlappingTemplateMatching counts non-overlapping occurrences of
// each aperiodic m-bit template in N blocks. It yields one p-value per
// template, named by the template's bits. Partitions own template ranges.
type NonOverlappingTemplateMatching struct{}

func (NonOverlappingTemplateMatching) Variant() kernel.Variant {
	return kernel.NonOverlappingTemplateMatching
}

type templateOutcome struct {
	name string
	chi2 float64
	p    float64
}

func (NonOverlappingTemplateMatching) Compute(ctx context.Context, seq *bits.Sequence, ps kernel.ParameterSet, env ports.KernelEnv) (kernel.TestResult, error) {
	n := seq.Len()
	m := param(ps, kernel.NonOverlappingTemplateMatching, kernel.ParamTemplateLength)
	blocks := param(ps, kernel.NonOverlappingTemplateMatching, kernel.ParamBlocks)
	if m < 2 || m > 16 {
		return kernel.TestResult{}, invalid(kernel.ParamTemplateLength, "m=%d outside [2,16]", m)
	}
	if blocks < 1 || m > n/blocks {
		return kernel.TestResult{}, invalid(kernel.ParamBlocks, "N=%d blocks cannot hold m=%d templates in n=%d", blocks, m, n)
	}

	templates := AperiodicTemplates(m)
	if len(ps.Templates) > 0 {
		templates = make([][]uint8, len(ps.Templates))
		for i, s := range ps.Templates {
			t, ok := parseTemplate(s, m)
			if !ok {
				return kernel.TestResult{}, invalid("templates", "%q is not a %d-bit template", s, m)
			}
			templates[i] = t
		}
	}

	blockLen := n / blocks
	lambda := float64(blockLen-m+1) / math.Ldexp(1, m)
	if lambda < 1 {
		return kernel.TestResult{}, core.NewInsufficientDataError("template matching expects λ=%.3f < 1 match per block", lambda)
	}
	variance := float64(blockLen) * (1/math.Ldexp(1, m) - float64(2*m-1)/math.Ldexp(1, 2*m))

	b := seq.View()
	parts, err := workpool.Map(ctx, env.Strategy, len(templates), func(r workpool.Range) ([]templateOutcome, error) {
		out := make([]templateOutcome, 0, r.Hi-r.Lo)
		for _, t := range templates[r.Lo:r.Hi] {
			chi2 := 0.0
			for j := 0; j < blocks; j++ {
				w := float64(countNonOverlapping(b[j*blockLen:(j+1)*blockLen], t))
				chi2 += (w - lambda) * (w - lambda) / variance
			}
			out = append(out, templateOutcome{
				name: bitString(t),
				chi2: chi2,
				p:    numeric.Igamc(float64(blocks)/2, chi2/2),
			})
		}
		return out, nil
	})
	if err != nil {
		return kernel.TestResult{}, err
	}

	var res kernel.TestResult
	res.AddStatistic("lambda", lambda)
	res.AddStatistic("variance", variance)
	for _, o := range workpool.Concat(parts) {
		res.AddStatistic("chi_squared:"+o.name, o.chi2)
		if err := emit(&res, o.name, o.p); err != nil {
			return kernel.TestResult{}, err
		}
	}
	return res, nil
}

// countNonOverlapping scans block for t, skipping past each match.
func countNonOverlapping(block, t []uint8) int {
	m := len(t)
	w := 0
	for i := 0; i+m <= len(block); {
		if matchAt(block, t, i) {
			w++
			i += m
		} else {
			i++
		}
	}
	return w
}

func matchAt(b, t []uint8, i int) bool {
	for k, x := range t {
		if b[i+k] != x {
			return false
		}
	}
	return true
}
