package verdict

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

func evidenceFrom(values []float64, names ...string) []Evidence {
	if len(names) == 0 {
		names = []string{"p"}
	}
	out := make([]Evidence, len(values))
	for i, v := range values {
		var res kernel.TestResult
		for _, n := range names {
			res.AddPValue(n, v)
		}
		out[i] = Evidence{Sample: core.SampleIDForIndex("s", i), Parameter: core.DefaultParameterSetID, Result: res}
	}
	return out
}

func grid(k int) []float64 {
	out := make([]float64, k)
	for i := range out {
		out[i] = (float64(i) + 0.5) / float64(k)
	}
	return out
}

func TestProportion_Interval(t *testing.T) {
	passed, prop, low, high := Proportion(grid(976), 0.01)
	assert.Equal(t, 966, passed)
	assert.InDelta(t, 0.989754, prop, 1e-6)
	assert.InDelta(t, 0.980445, low, 1e-6)
	assert.InDelta(t, 0.999555, high, 1e-6)
}

func TestUniformity_Histogram(t *testing.T) {
	hist, chi2, p := Uniformity([]float64{0, 0.05, 0.1, 0.55, 0.99, 1})
	assert.Equal(t, [10]int{2, 1, 0, 0, 0, 1, 0, 0, 0, 2}, hist)
	assert.Greater(t, chi2, 0.0)
	assert.Greater(t, p, 0.0)

	_, chi2, p = Uniformity(grid(1000))
	assert.InDelta(t, 0.0, chi2, 1e-12)
	assert.InDelta(t, 1.0, p, 1e-12)
}

func TestAggregate_UniformEvidencePasses(t *testing.T) {
	v := Aggregate(kernel.Rank, evidenceFrom(grid(976)), DefaultConfig())
	assert.Equal(t, StatusPass, v.Status)
	assert.True(t, v.Pass)
	assert.Equal(t, ReasonNone, v.Reason)
	assert.Equal(t, 976, v.Samples)
	assert.InDelta(t, 0.989754, v.Proportion, 1e-6)
	assert.GreaterOrEqual(t, v.UniformityPValue, 0.0001)
	assert.InDelta(t, 0.5, v.Summary.Median, 1e-9)
}

func TestAggregate_LowPValuesFailProportion(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 0.001
	}
	v := Aggregate(kernel.BlockFrequency, evidenceFrom(values), DefaultConfig())
	assert.Equal(t, StatusFail, v.Status)
	assert.Equal(t, ReasonProportion, v.Reason)
	assert.Equal(t, 0.0, v.Proportion)
}

func TestAggregate_ClusteredPValuesFailUniformity(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 0.5 + float64(i)/1000
	}
	v := Aggregate(kernel.Serial, evidenceFrom(values), DefaultConfig())
	assert.Equal(t, StatusFail, v.Status)
	assert.Equal(t, ReasonUniformity, v.Reason)
	assert.Equal(t, 1.0, v.Proportion)
	assert.Less(t, v.UniformityPValue, 0.0001)
}

func TestAggregate_NoEvidenceIsIndeterminate(t *testing.T) {
	v := Aggregate(kernel.RandomExcursions, nil, DefaultConfig())
	assert.Equal(t, StatusIndeterminate, v.Status)
	assert.False(t, v.Pass)
	assert.Equal(t, ReasonNoEvidence, v.Reason)
}

func TestAggregate_ComponentsJudgedSeparately(t *testing.T) {
	ev := evidenceFrom(grid(200), "forward", "reverse")
	for i := range ev {
		ev[i].Result.PValues[1].Value = 0.0001
	}
	v := Aggregate(kernel.CumulativeSums, ev, DefaultConfig())
	require.Len(t, v.Components, 2)
	assert.Equal(t, "forward", v.Components[0].Name)
	assert.True(t, v.Components[0].Pass())
	assert.Equal(t, "reverse", v.Components[1].Name)
	assert.False(t, v.Components[1].Pass())
	assert.Equal(t, StatusFail, v.Status)
	assert.Equal(t, 0.0, v.Proportion)
	assert.Equal(t, 200, v.Samples)
}

func TestAggregate_IndependentOfEvidenceOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, 300)
	for i := range values {
		values[i] = rng.Float64()
	}
	ev := evidenceFrom(values, "a", "b")
	for i := range ev {
		ev[i].Parameter = core.ParameterSetID(fmt.Sprintf("set-%d", i%3))
	}
	want := Aggregate(kernel.Serial, ev, DefaultConfig())

	shuffled := append([]Evidence(nil), ev...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	got := Aggregate(kernel.Serial, shuffled, DefaultConfig())
	assert.Equal(t, want, got)
	assert.Len(t, got.Components, 6)
	assert.Equal(t, core.ParameterSetID("set-0"), got.Components[0].Parameter)
	assert.Equal(t, "a", got.Components[0].Name)
}
