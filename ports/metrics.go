package ports

import (
	"time"

	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/domain/verdict"
)

// MetricsRecorder observes scheduler activity.
type MetricsRecorder interface {
	RunStarted(v kernel.Variant)
	RunFinished(v kernel.Variant, status run.Status, reason run.FailureReason, elapsed time.Duration)
	ScheduleFinished(counts run.Counts, verdicts []verdict.Verdict, elapsed time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RunStarted(kernel.Variant)                                                {}
func (NopMetrics) RunFinished(kernel.Variant, run.Status, run.FailureReason, time.Duration) {}
func (NopMetrics) ScheduleFinished(run.Counts, []verdict.Verdict, time.Duration)            {}
