package verdict

import (
	"gosts/domain/core"
	"gosts/domain/kernel"
)

// Status is the outcome of aggregating one kernel.
type Status string

const (
	StatusPass          Status = "pass"
	StatusFail          Status = "fail"
	StatusIndeterminate Status = "indeterminate"
)

// Reason explains a non-passing verdict.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonProportion Reason = "proportion_out_of_range"
	ReasonUniformity Reason = "p_values_not_uniform"
	ReasonNoEvidence Reason = "no_completed_runs"
	ReasonPending    Reason = "runs_pending"
)

// Pending is the verdict for a kernel whose runs have not all reached a
// terminal state. It is never judged.
func Pending(v kernel.Variant) Verdict {
	return Verdict{Kernel: v, Status: StatusIndeterminate, Reason: ReasonPending}
}

// Config holds the significance level and uniformity threshold.
type Config struct {
	Alpha               float64 `json:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	UniformityThreshold float64 `json:"uniformity_threshold" yaml:"uniformity_threshold" validate:"gt=0,lt=1"`
}

// DefaultConfig is the recommended α = 0.01 with a 0.0001 uniformity
// threshold.
func DefaultConfig() Config {
	return Config{Alpha: 0.01, UniformityThreshold: 0.0001}
}

// Evidence is one Completed run's result.
type Evidence struct {
	Sample    core.SampleID
	Parameter core.ParameterSetID
	Result    kernel.TestResult
}

// Verdict is the per-kernel decision.
type Verdict struct {
	Kernel kernel.Variant `json:"kernel"`
	Status Status         `json:"status"`
	Pass   bool           `json:"pass"`
	Reason Reason         `json:"reason,omitempty"`
	// Samples is the number of distinct samples that contributed evidence.
	Samples int `json:"samples"`
	// Proportion and UniformityPValue are the worst values over components.
	Proportion          float64     `json:"proportion"`
	UniformityPValue    float64     `json:"uniformity_p_value"`
	UniformityStatistic float64     `json:"uniformity_statistic"`
	Components          []Component `json:"components,omitempty"`
	Summary             Summary     `json:"summary"`
}

// Component judges the p-values of one name under one parameter set.
type Component struct {
	Parameter           core.ParameterSetID `json:"parameter_set_id"`
	Name                string              `json:"name"`
	Count               int                 `json:"count"`
	Passed              int                 `json:"passed"`
	Proportion          float64             `json:"proportion"`
	Low                 float64             `json:"low"`
	High                float64             `json:"high"`
	ProportionPass      bool                `json:"proportion_pass"`
	Histogram           [10]int             `json:"histogram"`
	UniformityStatistic float64             `json:"uniformity_statistic"`
	UniformityPValue    float64             `json:"uniformity_p_value"`
	UniformityPass      bool                `json:"uniformity_pass"`
}

// Pass reports whether both checks hold.
func (c Component) Pass() bool { return c.ProportionPass && c.UniformityPass }

// Summary describes every p-value the verdict saw.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}
