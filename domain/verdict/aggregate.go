// Package verdict reduces a kernel's completed results across samples to a
// single pass/fail decision.
package verdict

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

const uniformityBins = 10

// Aggregate judges v from its evidence. It is a pure function of the
// evidence set: the order of evidence does not affect the verdict.
func Aggregate(v kernel.Variant, evidence []Evidence, cfg Config) Verdict {
	out := Verdict{Kernel: v, Status: StatusIndeterminate, Reason: ReasonNoEvidence}
	if len(evidence) == 0 {
		return out
	}

	components := collect(evidence)
	samples := map[core.SampleID]bool{}
	for _, e := range evidence {
		samples[e.Sample] = true
	}
	out.Samples = len(samples)

	var all []float64
	out.Proportion, out.UniformityPValue = 1, 1
	pass, propFail := true, false
	for _, c := range components {
		judged := judge(c.key, c.values, cfg)
		out.Components = append(out.Components, judged)
		all = append(all, c.values...)

		if judged.Proportion < out.Proportion {
			out.Proportion = judged.Proportion
		}
		if judged.UniformityPValue < out.UniformityPValue {
			out.UniformityPValue = judged.UniformityPValue
			out.UniformityStatistic = judged.UniformityStatistic
		}
		if !judged.ProportionPass {
			propFail = true
		}
		pass = pass && judged.Pass()
	}
	out.Summary = summarize(all)

	if len(out.Components) == 0 {
		return out
	}
	out.Pass = pass
	out.Reason = ReasonNone
	if pass {
		out.Status = StatusPass
	} else {
		out.Status = StatusFail
		out.Reason = ReasonUniformity
		if propFail {
			out.Reason = ReasonProportion
		}
	}
	return out
}

type componentKey struct {
	parameter core.ParameterSetID
	name      string
	order     int
}

type component struct {
	key    componentKey
	values []float64
}

// collect groups p-values by (parameter set, p-value name), ordering
// components by parameter set id and then by the name's position within
// the result, and sorting each component's values.
func collect(evidence []Evidence) []component {
	index := map[componentKey]int{}
	var out []component
	for _, e := range evidence {
		for i, p := range e.Result.PValues {
			k := componentKey{parameter: e.Parameter, name: p.Name}
			idx, ok := index[k]
			if !ok {
				k.order = i
				idx = len(out)
				index[componentKey{parameter: e.Parameter, name: p.Name}] = idx
				out = append(out, component{key: k})
			}
			out[idx].values = append(out[idx].values, p.Value)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.parameter != b.parameter {
			return a.parameter < b.parameter
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.name < b.name
	})
	for i := range out {
		sort.Float64s(out[i].values)
	}
	return out
}

func judge(key componentKey, values []float64, cfg Config) Component {
	c := Component{Parameter: key.parameter, Name: key.name, Count: len(values)}

	c.Passed, c.Proportion, c.Low, c.High = Proportion(values, cfg.Alpha)
	c.ProportionPass = c.Proportion >= c.Low && c.Proportion <= c.High

	c.Histogram, c.UniformityStatistic, c.UniformityPValue = Uniformity(values)
	c.UniformityPass = c.UniformityPValue >= cfg.UniformityThreshold
	return c
}

// Proportion returns how many p-values reach alpha, their fraction, and the
// acceptable interval p̂ ± 3·sqrt(p̂(1−p̂)/k) with p̂ = 1 − alpha.
func Proportion(values []float64, alpha float64) (passed int, proportion, low, high float64) {
	k := len(values)
	if k == 0 {
		return 0, 0, 0, 0
	}
	for _, p := range values {
		if p >= alpha {
			passed++
		}
	}
	proportion = float64(passed) / float64(k)
	centre := 1 - alpha
	spread := 3 * math.Sqrt(centre*(1-centre)/float64(k))
	return passed, proportion, centre - spread, centre + spread
}

// Uniformity bins p-values into ten equal intervals of [0,1] and tests the
// histogram against the uniform expectation with a χ²(9) statistic.
func Uniformity(values []float64) (hist [uniformityBins]int, chi2, p float64) {
	if len(values) == 0 {
		return hist, 0, 0
	}
	for _, v := range values {
		bin := int(v * uniformityBins)
		if bin >= uniformityBins {
			bin = uniformityBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}
	expected := float64(len(values)) / uniformityBins
	for _, c := range hist {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	p = distuv.ChiSquared{K: uniformityBins - 1}.Survival(chi2)
	return hist, chi2, p
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	data := stats.Float64Data(sorted)
	mean, _ := data.Mean()
	median, _ := data.Median()
	lo, _ := data.Min()
	hi, _ := data.Max()
	return Summary{Count: len(sorted), Mean: mean, Median: median, Min: lo, Max: hi}
}
