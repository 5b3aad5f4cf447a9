package kernel

import (
	"fmt"
	"sort"
	"strings"

	"gosts/domain/core"
)

// Parameter keys understood by the kernels.
const (
	ParamBlockLength    = "block_length"
	ParamTemplateLength = "template_length"
	ParamBlocks         = "blocks"
	ParamRows           = "rows"
	ParamCols           = "cols"
	ParamInitBlocks     = "init_blocks"
)

// ParameterSet is a named, kernel-tagged mapping of parameter values.
type ParameterSet struct {
	ID     core.ParameterSetID `json:"id" yaml:"id"`
	Kernel Variant             `json:"kernel" yaml:"kernel"`
	Values map[string]int      `json:"values,omitempty" yaml:"values,omitempty"`
	// Templates optionally restricts NonOverlappingTemplateMatching to the
	// listed bit patterns instead of every aperiodic template.
	Templates []string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Int returns the value of key, or def when absent.
func (p ParameterSet) Int(key string, def int) int {
	if v, ok := p.Values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key was set explicitly.
func (p ParameterSet) Has(key string) bool {
	_, ok := p.Values[key]
	return ok
}

// With returns a copy of p with key set to v.
func (p ParameterSet) With(key string, v int) ParameterSet {
	values := make(map[string]int, len(p.Values)+1)
	for k, val := range p.Values {
		values[k] = val
	}
	values[key] = v
	p.Values = values
	return p
}

// Canonical renders the set deterministically, used for fingerprints.
func (p ParameterSet) Canonical() string {
	keys := make([]string, 0, len(p.Values))
	for k := range p.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(p.Kernel.String())
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%d", k, p.Values[k])
	}
	if len(p.Templates) > 0 {
		b.WriteString(";templates=")
		b.WriteString(strings.Join(p.Templates, ","))
	}
	return b.String()
}

// Defaults returns the recommended parameter set for v.
func Defaults(v Variant) ParameterSet {
	ps := ParameterSet{ID: core.DefaultParameterSetID, Kernel: v, Values: map[string]int{}}
	switch v {
	case ApproximateEntropy:
		ps.Values[ParamBlockLength] = 10
	case BlockFrequency:
		ps.Values[ParamBlockLength] = 128
	case LinearComplexity:
		ps.Values[ParamBlockLength] = 500
	case NonOverlappingTemplateMatching:
		ps.Values[ParamTemplateLength] = 9
		ps.Values[ParamBlocks] = 8
	case OverlappingTemplateMatching:
		ps.Values[ParamTemplateLength] = 9
		ps.Values[ParamBlockLength] = 1032
	case Rank:
		ps.Values[ParamRows] = 32
		ps.Values[ParamCols] = 32
	case Serial:
		ps.Values[ParamBlockLength] = 16
	}
	return ps
}
