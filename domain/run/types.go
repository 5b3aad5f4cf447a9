package run

import (
	"errors"
	"fmt"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

// Status is the lifecycle state of a TestRun.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRunning          Status = "running"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusInsufficientData Status = "insufficient_data"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusInsufficientData
}

// FailureReason classifies a Failed run.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonAllocationFailure FailureReason = "allocation_failure"
	ReasonInvalidParameters FailureReason = "invalid_parameters"
	ReasonComputationError  FailureReason = "computation_error"
)

// ReasonFor maps a run-scoped error onto its failure class. Anything not
// recognisably an allocation or parameter problem is a computation error.
func ReasonFor(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case core.IsAllocationFailure(err):
		return ReasonAllocationFailure
	case core.IsInvalidParameters(err):
		return ReasonInvalidParameters
	}
	return ReasonComputationError
}

// ErrIllegalTransition is returned when a run is moved out of a final state
// or skips Running.
var ErrIllegalTransition = errors.New("illegal run transition")

// Triple identifies one unit of work.
type Triple struct {
	Sample    core.SampleID       `json:"sample_id"`
	Kernel    kernel.Variant      `json:"kernel"`
	Parameter core.ParameterSetID `json:"parameter_set_id"`
}

func (t Triple) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Sample, t.Kernel, t.Parameter)
}

// TestRun is one evaluation of one kernel against one sample under one
// parameter set. Only the scheduler mutates it.
type TestRun struct {
	Triple
	Params kernel.ParameterSet `json:"-"`

	Status Status             `json:"status"`
	Reason FailureReason      `json:"failure_reason,omitempty"`
	Detail string             `json:"detail,omitempty"`
	Result *kernel.TestResult `json:"result,omitempty"`
}

// NewTestRun creates a Pending run.
func NewTestRun(sample core.SampleID, ps kernel.ParameterSet) *TestRun {
	return &TestRun{
		Triple: Triple{Sample: sample, Kernel: ps.Kernel, Parameter: ps.ID},
		Params: ps,
		Status: StatusPending,
	}
}

// Start moves a Pending run to Running.
func (r *TestRun) Start() error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: %s from %s to %s", ErrIllegalTransition, r.Triple, r.Status, StatusRunning)
	}
	r.Status = StatusRunning
	return nil
}

// Complete records a result.
func (r *TestRun) Complete(res kernel.TestResult) error {
	if err := r.finish(StatusCompleted); err != nil {
		return err
	}
	r.Result = &res
	return nil
}

// Fail records a failure classified from err.
func (r *TestRun) Fail(err error) error {
	if e := r.finish(StatusFailed); e != nil {
		return e
	}
	r.Reason = ReasonFor(err)
	if r.Reason == ReasonNone {
		r.Reason = ReasonComputationError
	}
	if err != nil {
		r.Detail = err.Error()
	}
	return nil
}

// Insufficient records that the sample is below the kernel's minimum.
func (r *TestRun) Insufficient(err error) error {
	if e := r.finish(StatusInsufficientData); e != nil {
		return e
	}
	if err != nil {
		r.Detail = err.Error()
	}
	return nil
}

// Resolve settles a Running run from a kernel's outcome.
func (r *TestRun) Resolve(res kernel.TestResult, err error) error {
	switch {
	case err == nil:
		return r.Complete(res)
	case core.IsInsufficientData(err):
		return r.Insufficient(err)
	}
	return r.Fail(err)
}

// Requeue returns a Running run to Pending. Used when cancellation stops a
// kernel before it settles, so that a resumed schedule runs it again.
func (r *TestRun) Requeue() error {
	if r.Status != StatusRunning {
		return fmt.Errorf("%w: %s from %s to %s", ErrIllegalTransition, r.Triple, r.Status, StatusPending)
	}
	r.Status = StatusPending
	return nil
}

func (r *TestRun) finish(to Status) error {
	if r.Status != StatusRunning {
		return fmt.Errorf("%w: %s from %s to %s", ErrIllegalTransition, r.Triple, r.Status, to)
	}
	r.Status = to
	return nil
}

// Counts tallies runs by state.
type Counts struct {
	Pending          int `json:"pending"`
	Running          int `json:"running"`
	Completed        int `json:"completed"`
	Failed           int `json:"failed"`
	InsufficientData int `json:"insufficient_data"`
}

// Add tallies one status.
func (c *Counts) Add(s Status) {
	switch s {
	case StatusPending:
		c.Pending++
	case StatusRunning:
		c.Running++
	case StatusCompleted:
		c.Completed++
	case StatusFailed:
		c.Failed++
	case StatusInsufficientData:
		c.InsufficientData++
	}
}

// Total returns the number of runs counted.
func (c Counts) Total() int {
	return c.Pending + c.Running + c.Completed + c.Failed + c.InsufficientData
}
