package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

func set(v kernel.Variant, values map[string]int) kernel.ParameterSet {
	return kernel.ParameterSet{ID: "test", Kernel: v, Values: values}
}

func TestResolve_FillsDefaults(t *testing.T) {
	ps, err := Resolve(set(kernel.Rank, map[string]int{kernel.ParamRows: 16}), 1000000)
	require.NoError(t, err)
	assert.Equal(t, 16, ps.Values[kernel.ParamRows])
	assert.Equal(t, 32, ps.Values[kernel.ParamCols])
	assert.Equal(t, core.ParameterSetID("test"), ps.ID)

	ps, err = Resolve(kernel.ParameterSet{Kernel: kernel.Serial}, 1000000)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultParameterSetID, ps.ID)
	assert.Equal(t, 16, ps.Values[kernel.ParamBlockLength])
}

func TestResolve_DoesNotAliasInput(t *testing.T) {
	in := set(kernel.BlockFrequency, map[string]int{kernel.ParamBlockLength: 20})
	out, err := Resolve(in, 1000)
	require.NoError(t, err)
	out.Values[kernel.ParamBlockLength] = 99
	assert.Equal(t, 20, in.Values[kernel.ParamBlockLength])
}

func TestResolve_Violations(t *testing.T) {
	tests := []struct {
		name string
		ps   kernel.ParameterSet
		n    int
	}{
		{"rank exceeds bits", set(kernel.Rank, nil), 1000},
		{"rank rows too small", set(kernel.Rank, map[string]int{kernel.ParamRows: 1}), 1000000},
		{"rank cols too large", set(kernel.Rank, map[string]int{kernel.ParamCols: 65}), 1000000},
		{"block frequency longer than n", set(kernel.BlockFrequency, map[string]int{kernel.ParamBlockLength: 2000}), 1000},
		{"apen m+1 beyond n", set(kernel.ApproximateEntropy, map[string]int{kernel.ParamBlockLength: 10}), 10},
		{"apen m too large", set(kernel.ApproximateEntropy, map[string]int{kernel.ParamBlockLength: 25}), 1 << 30},
		{"linear complexity below 4", set(kernel.LinearComplexity, map[string]int{kernel.ParamBlockLength: 3}), 1000000},
		{"template too long", set(kernel.NonOverlappingTemplateMatching, map[string]int{kernel.ParamTemplateLength: 17}), 1000000},
		{"too many blocks", set(kernel.NonOverlappingTemplateMatching, map[string]int{kernel.ParamBlocks: 101}), 1000000},
		{"template beyond block", set(kernel.NonOverlappingTemplateMatching, map[string]int{kernel.ParamBlocks: 100}), 800},
		{"overlapping m beyond M", set(kernel.OverlappingTemplateMatching, map[string]int{kernel.ParamTemplateLength: 20, kernel.ParamBlockLength: 16}), 1000000},
		{"overlapping M beyond n", set(kernel.OverlappingTemplateMatching, nil), 1000},
		{"serial m too small", set(kernel.Serial, map[string]int{kernel.ParamBlockLength: 1}), 1000000},
		{"universal L out of table", set(kernel.UniversalStatistical, map[string]int{kernel.ParamBlockLength: 17}), 1 << 30},
		{"universal Q too small", set(kernel.UniversalStatistical, map[string]int{kernel.ParamBlockLength: 6, kernel.ParamInitBlocks: 100}), 1000000},
		{"universal no test blocks", set(kernel.UniversalStatistical, map[string]int{kernel.ParamBlockLength: 6}), 3840},
		{"universal Q without L", set(kernel.UniversalStatistical, map[string]int{kernel.ParamInitBlocks: 640}), 1000000},
		{"unknown key", set(kernel.CumulativeSums, map[string]int{kernel.ParamBlockLength: 4}), 1000000},
		{"empty sequence", set(kernel.DiscreteFourierTransform, nil), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.ps, tt.n)
			assert.True(t, core.IsInvalidParameters(err), "got %v", err)
		})
	}
}

func TestResolve_Templates(t *testing.T) {
	ps := set(kernel.NonOverlappingTemplateMatching, map[string]int{kernel.ParamTemplateLength: 3})
	ps.Templates = []string{"001", "011"}
	_, err := Resolve(ps, 100000)
	require.NoError(t, err)

	ps.Templates = []string{"0011"}
	_, err = Resolve(ps, 100000)
	assert.True(t, core.IsInvalidParameters(err))

	ps.Templates = []string{"0x1"}
	_, err = Resolve(ps, 100000)
	assert.True(t, core.IsInvalidParameters(err))

	other := set(kernel.Rank, nil)
	other.Templates = []string{"001"}
	_, err = Resolve(other, 100000)
	assert.True(t, core.IsInvalidParameters(err))
}

func TestResolve_AcceptsBoundaries(t *testing.T) {
	ok := []struct {
		ps kernel.ParameterSet
		n  int
	}{
		{set(kernel.Rank, nil), 1024},
		{set(kernel.Rank, map[string]int{kernel.ParamRows: 64, kernel.ParamCols: 2}), 128},
		{set(kernel.BlockFrequency, map[string]int{kernel.ParamBlockLength: 100}), 100},
		{set(kernel.UniversalStatistical, nil), 1000},
		{set(kernel.UniversalStatistical, map[string]int{kernel.ParamBlockLength: 6}), 3846},
		{set(kernel.LongestRunOfOnes, nil), 1},
	}
	for _, tc := range ok {
		_, err := Resolve(tc.ps, tc.n)
		assert.NoError(t, err, tc.ps.Canonical())
	}
}

func TestResolve_UnknownKernel(t *testing.T) {
	_, err := Resolve(kernel.ParameterSet{Kernel: kernel.Variant(42)}, 100)
	assert.ErrorIs(t, err, core.ErrUnknownKernel)
}

func TestResolve_EveryVariantDefaultsResolve(t *testing.T) {
	for _, v := range kernel.All() {
		_, err := Resolve(kernel.Defaults(v), 1000000)
		assert.NoError(t, err, v.String())
	}
}
