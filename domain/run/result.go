package run

import (
	"time"

	"gosts/domain/kernel"
	"gosts/domain/verdict"
)

// Result is what one execution of a schedule produced. Runs are copies in
// schedule order; Verdicts are in variant order.
type Result struct {
	Manifest Manifest          `json:"manifest"`
	Counts   Counts            `json:"counts"`
	Runs     []TestRun         `json:"runs"`
	Verdicts []verdict.Verdict `json:"verdicts"`
	Elapsed  time.Duration     `json:"elapsed_ns"`
}

// NewResult snapshots the schedule's runs.
func NewResult(s *Schedule, m Manifest, verdicts []verdict.Verdict, elapsed time.Duration) Result {
	runs := make([]TestRun, len(s.runs))
	for i, r := range s.runs {
		runs[i] = *r
	}
	return Result{
		Manifest: m,
		Counts:   s.Counts(),
		Runs:     runs,
		Verdicts: verdicts,
		Elapsed:  elapsed,
	}
}

// Passed reports whether every run settled without failure and every
// verdict passed.
func (r Result) Passed() bool {
	if r.Counts.Failed > 0 || r.Counts.Pending > 0 || r.Counts.Running > 0 {
		return false
	}
	for _, v := range r.Verdicts {
		if !v.Pass {
			return false
		}
	}
	return true
}

// Verdict looks up the verdict for v.
func (r Result) Verdict(v kernel.Variant) (verdict.Verdict, bool) {
	for _, vd := range r.Verdicts {
		if vd.Kernel == v {
			return vd, true
		}
	}
	return verdict.Verdict{}, false
}

// Evidence collects the Completed runs of v in schedule order.
func (s *Schedule) Evidence(v kernel.Variant) []verdict.Evidence {
	var out []verdict.Evidence
	for _, r := range s.runs {
		if r.Kernel != v || r.Status != StatusCompleted || r.Result == nil {
			continue
		}
		out = append(out, verdict.Evidence{Sample: r.Sample, Parameter: r.Parameter, Result: *r.Result})
	}
	return out
}
