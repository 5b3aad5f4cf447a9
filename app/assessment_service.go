package app

import (
	"context"
	"fmt"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/ports"
)

// AssessmentRequest names the kernels and parameter sets to apply. No
// kernels means all of them.
type AssessmentRequest struct {
	Kernels       []kernel.Variant      `json:"kernels,omitempty"`
	ParameterSets []kernel.ParameterSet `json:"parameter_sets,omitempty"`
}

// AssessmentService turns samples plus a request into a schedule and runs it.
type AssessmentService struct {
	scheduler *Scheduler
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(scheduler *Scheduler) *AssessmentService {
	return &AssessmentService{scheduler: scheduler}
}

// Scheduler returns the underlying scheduler.
func (a *AssessmentService) Scheduler() *Scheduler { return a.scheduler }

// Plan builds the schedule without executing anything.
func (a *AssessmentService) Plan(samples []*bits.Sequence, req AssessmentRequest) (*run.Schedule, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", core.ErrScheduleFatal)
	}
	ids := make([]core.SampleID, len(samples))
	for i, s := range samples {
		ids[i] = s.ID()
	}
	return run.Build(ids, req.ParameterSets, req.Kernels)
}

// Assess plans and executes in one step.
func (a *AssessmentService) Assess(ctx context.Context, samples []*bits.Sequence, req AssessmentRequest) (run.Result, error) {
	sched, err := a.Plan(samples, req)
	if err != nil {
		return run.Result{}, err
	}
	return a.scheduler.RunSchedule(ctx, sched, samples)
}

// AssessSource loads samples from src first.
func (a *AssessmentService) AssessSource(ctx context.Context, src ports.SampleSource, req AssessmentRequest) (run.Result, error) {
	samples, err := src.Load(ctx)
	if err != nil {
		return run.Result{}, fmt.Errorf("failed to load samples from %s: %w", src.Describe(), err)
	}
	a.scheduler.log.Info("loaded %d samples from %s", len(samples), src.Describe())
	return a.Assess(ctx, samples, req)
}

// Resume continues a schedule left partly Pending, for example by an
// earlier cancellation.
func (a *AssessmentService) Resume(ctx context.Context, sched *run.Schedule, samples []*bits.Sequence) (run.Result, error) {
	return a.scheduler.RunSchedule(ctx, sched, samples)
}
