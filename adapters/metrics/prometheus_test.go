package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/domain/verdict"
	"gosts/ports"
)

var _ ports.MetricsRecorder = (*Recorder)(nil)

func newTestRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRecorder(reg), reg
}

func TestRecorder_RunLifecycle(t *testing.T) {
	r, _ := newTestRecorder(t)

	r.RunStarted(kernel.Rank)
	r.RunStarted(kernel.Rank)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RunsInFlight))

	r.RunFinished(kernel.Rank, run.StatusCompleted, run.ReasonNone, 20*time.Millisecond)
	r.RunFinished(kernel.Rank, run.StatusFailed, run.ReasonAllocationFailure, time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.RunsInFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RunsStarted.WithLabelValues("Rank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsFinished.WithLabelValues("Rank", "completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsFinished.WithLabelValues("Rank", "failed", "allocation_failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.RunDuration))
}

func TestRecorder_ScheduleFinished(t *testing.T) {
	r, reg := newTestRecorder(t)

	r.ScheduleFinished(run.Counts{Completed: 3}, []verdict.Verdict{
		{Kernel: kernel.Serial, Status: verdict.StatusPass, Proportion: 0.99},
		{Kernel: kernel.Rank, Status: verdict.StatusFail, Proportion: 0.8},
		{Kernel: kernel.UniversalStatistical, Status: verdict.StatusIndeterminate},
	}, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.SchedulesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.VerdictStatus.WithLabelValues("Serial")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.VerdictStatus.WithLabelValues("Rank")))
	assert.Equal(t, -1.0, testutil.ToFloat64(r.VerdictStatus.WithLabelValues("UniversalStatistical")))
	assert.Equal(t, 0.8, testutil.ToFloat64(r.Proportion.WithLabelValues("Rank")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.Proportion), "indeterminate verdicts leave no proportion")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["gosts_schedule_duration_seconds"])
	assert.True(t, names["gosts_verdict_pass"])
}

func TestNewRecorder_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		newTestRecorder(t)
		newTestRecorder(t)
	})
}
