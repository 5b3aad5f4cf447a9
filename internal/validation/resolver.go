// Package validation resolves declared parameter sets against each
// kernel's size constraints before anything is computed.
package validation

import (
	"fmt"
	"sort"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

// allowedKeys lists the parameters each variant understands.
var allowedKeys = map[kernel.Variant][]string{
	kernel.ApproximateEntropy:             {kernel.ParamBlockLength},
	kernel.BlockFrequency:                 {kernel.ParamBlockLength},
	kernel.LinearComplexity:               {kernel.ParamBlockLength},
	kernel.NonOverlappingTemplateMatching: {kernel.ParamTemplateLength, kernel.ParamBlocks},
	kernel.OverlappingTemplateMatching:    {kernel.ParamTemplateLength, kernel.ParamBlockLength},
	kernel.Rank:                           {kernel.ParamRows, kernel.ParamCols},
	kernel.Serial:                         {kernel.ParamBlockLength},
	kernel.UniversalStatistical:           {kernel.ParamBlockLength, kernel.ParamInitBlocks},
}

// Resolve merges ps over the variant's defaults and checks the result
// against a sequence of n bits. It never touches the sequence itself and
// has no side effects. Violations wrap core.ErrInvalidParameters.
func Resolve(ps kernel.ParameterSet, n int) (kernel.ParameterSet, error) {
	if !ps.Kernel.Valid() {
		return kernel.ParameterSet{}, fmt.Errorf("%w: %d", core.ErrUnknownKernel, int(ps.Kernel))
	}
	if n <= 0 {
		return kernel.ParameterSet{}, core.NewInvalidParametersError("sequence", "is empty")
	}
	if err := checkKeys(ps); err != nil {
		return kernel.ParameterSet{}, err
	}

	resolved := mergeDefaults(ps)
	if err := check(resolved, ps, n); err != nil {
		return kernel.ParameterSet{}, err
	}
	return resolved, nil
}

func checkKeys(ps kernel.ParameterSet) error {
	allowed := map[string]bool{}
	for _, k := range allowedKeys[ps.Kernel] {
		allowed[k] = true
	}
	keys := make([]string, 0, len(ps.Values))
	for k := range ps.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !allowed[k] {
			return core.NewInvalidParametersError(k, fmt.Sprintf("is not a %s parameter", ps.Kernel))
		}
	}
	if len(ps.Templates) > 0 && ps.Kernel != kernel.NonOverlappingTemplateMatching {
		return core.NewInvalidParametersError("templates", fmt.Sprintf("are not a %s parameter", ps.Kernel))
	}
	return nil
}

func mergeDefaults(ps kernel.ParameterSet) kernel.ParameterSet {
	out := ps
	out.Values = map[string]int{}
	for k, v := range kernel.Defaults(ps.Kernel).Values {
		out.Values[k] = v
	}
	for k, v := range ps.Values {
		out.Values[k] = v
	}
	if out.ID == "" {
		out.ID = core.DefaultParameterSetID
	}
	if len(ps.Templates) > 0 {
		out.Templates = append([]string(nil), ps.Templates...)
	}
	return out
}

// check applies the variant's constraints. declared is the set as written,
// used where a default must stay derived rather than fixed.
func check(ps, declared kernel.ParameterSet, n int) error {
	v := ps.Values
	switch ps.Kernel {
	case kernel.ApproximateEntropy:
		return firstError(
			between(kernel.ParamBlockLength, v[kernel.ParamBlockLength], 1, 24),
			atMost(kernel.ParamBlockLength, v[kernel.ParamBlockLength]+1, n, "m+1 bits"),
		)
	case kernel.BlockFrequency:
		return firstError(
			between(kernel.ParamBlockLength, v[kernel.ParamBlockLength], 1, n),
		)
	case kernel.LinearComplexity:
		return firstError(
			between(kernel.ParamBlockLength, v[kernel.ParamBlockLength], 4, 5000),
			atMost(kernel.ParamBlockLength, v[kernel.ParamBlockLength], n, "block"),
		)
	case kernel.NonOverlappingTemplateMatching:
		m, blocks := v[kernel.ParamTemplateLength], v[kernel.ParamBlocks]
		if err := firstError(
			between(kernel.ParamTemplateLength, m, 2, 16),
			between(kernel.ParamBlocks, blocks, 1, 100),
		); err != nil {
			return err
		}
		if err := atMost(kernel.ParamTemplateLength, m, n/blocks, "block of n/N bits"); err != nil {
			return err
		}
		return checkTemplates(ps.Templates, m)
	case kernel.OverlappingTemplateMatching:
		m, blockLen := v[kernel.ParamTemplateLength], v[kernel.ParamBlockLength]
		return firstError(
			between(kernel.ParamTemplateLength, m, 2, blockLen),
			atMost(kernel.ParamBlockLength, blockLen, n, "sequence"),
		)
	case kernel.Rank:
		rows, cols := v[kernel.ParamRows], v[kernel.ParamCols]
		if err := firstError(
			between(kernel.ParamRows, rows, 2, 64),
			between(kernel.ParamCols, cols, 2, 64),
		); err != nil {
			return err
		}
		if rows*cols > n {
			return core.NewInvalidParametersError("matrix",
				fmt.Sprintf("%dx%d needs %d bits for one submatrix, have %d", rows, cols, rows*cols, n))
		}
		return nil
	case kernel.Serial:
		return firstError(
			between(kernel.ParamBlockLength, v[kernel.ParamBlockLength], 2, 24),
			atMost(kernel.ParamBlockLength, v[kernel.ParamBlockLength], n, "sequence"),
		)
	case kernel.UniversalStatistical:
		return checkUniversal(declared, n)
	case kernel.CumulativeSums, kernel.DiscreteFourierTransform, kernel.LongestRunOfOnes,
		kernel.RandomExcursions, kernel.RandomExcursionsVariant:
		return nil
	}
	return fmt.Errorf("%w: %d", core.ErrUnknownKernel, int(ps.Kernel))
}

func checkUniversal(ps kernel.ParameterSet, n int) error {
	if !ps.Has(kernel.ParamBlockLength) {
		if ps.Has(kernel.ParamInitBlocks) {
			return core.NewInvalidParametersError(kernel.ParamInitBlocks, "requires an explicit block_length")
		}
		return nil
	}
	l := ps.Int(kernel.ParamBlockLength, 0)
	if err := between(kernel.ParamBlockLength, l, 6, 16); err != nil {
		return err
	}
	minQ := 10 * (1 << uint(l))
	q := ps.Int(kernel.ParamInitBlocks, minQ)
	if q < minQ {
		return core.NewInvalidParametersError(kernel.ParamInitBlocks, fmt.Sprintf("%d below 10·2^L = %d", q, minQ))
	}
	if (q+1)*l > n {
		return core.NewInvalidParametersError(kernel.ParamInitBlocks,
			fmt.Sprintf("(Q+1)·L = %d exceeds %d bits", (q+1)*l, n))
	}
	return nil
}

func checkTemplates(templates []string, m int) error {
	for _, t := range templates {
		if len(t) != m {
			return core.NewInvalidParametersError("templates", fmt.Sprintf("%q is not %d bits", t, m))
		}
		for i := 0; i < len(t); i++ {
			if t[i] != '0' && t[i] != '1' {
				return core.NewInvalidParametersError("templates", fmt.Sprintf("%q is not binary", t))
			}
		}
	}
	return nil
}

func between(key string, v, lo, hi int) error {
	if v < lo || v > hi {
		return core.NewInvalidParametersError(key, fmt.Sprintf("%d outside [%d,%d]", v, lo, hi))
	}
	return nil
}

func atMost(key string, v, limit int, what string) error {
	if v > limit {
		return core.NewInvalidParametersError(key, fmt.Sprintf("%d does not fit a %s of %d", v, what, limit))
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
