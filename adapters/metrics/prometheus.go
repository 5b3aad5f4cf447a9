// Package metrics exports scheduler activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/domain/verdict"
)

// Recorder implements ports.MetricsRecorder.
type Recorder struct {
	RunsStarted      *prometheus.CounterVec
	RunsFinished     *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RunsInFlight     prometheus.Gauge
	SchedulesTotal   prometheus.Counter
	ScheduleDuration prometheus.Histogram
	VerdictStatus    *prometheus.GaugeVec
	Proportion       *prometheus.GaugeVec
}

// NewRecorder registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		RunsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gosts_runs_started_total",
			Help: "Test runs dispatched, by kernel",
		}, []string{"kernel"}),
		RunsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gosts_runs_finished_total",
			Help: "Test runs settled, by kernel, status and failure reason",
		}, []string{"kernel", "status", "reason"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gosts_run_duration_seconds",
			Help:    "Kernel execution time per run",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10), // 0.5ms to ~2min
		}, []string{"kernel"}),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gosts_runs_in_flight",
			Help: "Runs currently executing",
		}),
		SchedulesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gosts_schedules_total",
			Help: "Schedules executed to completion or cancellation",
		}),
		ScheduleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gosts_schedule_duration_seconds",
			Help:    "Wall time per schedule",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		VerdictStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gosts_verdict_pass",
			Help: "Latest verdict per kernel: 1 pass, 0 fail, -1 indeterminate",
		}, []string{"kernel"}),
		Proportion: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gosts_verdict_proportion",
			Help: "Latest minimum passing proportion per kernel",
		}, []string{"kernel"}),
	}
}

func (r *Recorder) RunStarted(v kernel.Variant) {
	r.RunsStarted.WithLabelValues(v.String()).Inc()
	r.RunsInFlight.Inc()
}

func (r *Recorder) RunFinished(v kernel.Variant, status run.Status, reason run.FailureReason, elapsed time.Duration) {
	r.RunsInFlight.Dec()
	r.RunsFinished.WithLabelValues(v.String(), string(status), string(reason)).Inc()
	r.RunDuration.WithLabelValues(v.String()).Observe(elapsed.Seconds())
}

func (r *Recorder) ScheduleFinished(_ run.Counts, verdicts []verdict.Verdict, elapsed time.Duration) {
	r.SchedulesTotal.Inc()
	r.ScheduleDuration.Observe(elapsed.Seconds())
	for _, v := range verdicts {
		r.VerdictStatus.WithLabelValues(v.Kernel.String()).Set(statusValue(v.Status))
		if v.Status != verdict.StatusIndeterminate {
			r.Proportion.WithLabelValues(v.Kernel.String()).Set(v.Proportion)
		}
	}
}

func statusValue(s verdict.Status) float64 {
	switch s {
	case verdict.StatusPass:
		return 1
	case verdict.StatusFail:
		return 0
	}
	return -1
}
