package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gosts/domain/bits"
	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/domain/run"
	"gosts/domain/verdict"
	"gosts/internal"
	"gosts/internal/gf2"
	"gosts/internal/numeric"
	"gosts/internal/validation"
	"gosts/internal/workpool"
	"gosts/ports"
)

// SchedulerConfig controls one Scheduler.
type SchedulerConfig struct {
	Workers int
	// ScratchLimitBytes caps the GF(2) scratch a single run may hold live.
	// Zero means unlimited.
	ScratchLimitBytes int64
	Verdict           verdict.Config
	CodeVersion       string
	Metrics           ports.MetricsRecorder
	// Progress is called with the scheduler lock held each time a run
	// settles. It must not block.
	Progress func(done, total int)
	Logger   *internal.Logger
}

type progressKey struct{}

// WithProgress attaches a per-call progress callback to ctx. RunSchedule
// invokes it after SchedulerConfig.Progress under the same rules.
func WithProgress(ctx context.Context, fn func(done, total int)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) func(done, total int) {
	fn, _ := ctx.Value(progressKey{}).(func(done, total int))
	return fn
}

// Scheduler executes schedules on a fixed worker pool. Runs are dispatched
// in schedule order; each settles independently of every other run.
type Scheduler struct {
	registry ports.KernelRegistry
	pool     *workpool.Pool
	cfg      SchedulerConfig
	log      *internal.Logger
	metrics  ports.MetricsRecorder

	// mu guards every TestRun's state while a schedule executes.
	mu sync.Mutex
}

// NewScheduler validates cfg and sizes the pool. Configuration problems
// wrap core.ErrScheduleFatal.
func NewScheduler(registry ports.KernelRegistry, cfg SchedulerConfig) (*Scheduler, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: no kernel registry", core.ErrScheduleFatal)
	}
	pool, err := workpool.New(cfg.Workers)
	if err != nil {
		return nil, err
	}
	if cfg.ScratchLimitBytes < 0 {
		return nil, fmt.Errorf("%w: negative scratch limit %d", core.ErrScheduleFatal, cfg.ScratchLimitBytes)
	}
	if cfg.Verdict == (verdict.Config{}) {
		cfg.Verdict = verdict.DefaultConfig()
	}
	if a := cfg.Verdict.Alpha; a <= 0 || a >= 1 {
		return nil, fmt.Errorf("%w: alpha %g outside (0,1)", core.ErrScheduleFatal, a)
	}
	if u := cfg.Verdict.UniformityThreshold; u <= 0 || u >= 1 {
		return nil, fmt.Errorf("%w: uniformity threshold %g outside (0,1)", core.ErrScheduleFatal, u)
	}

	s := &Scheduler{registry: registry, pool: pool, cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}
	if s.log == nil {
		s.log = internal.DefaultLogger
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	return s, nil
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int { return s.pool.Size() }

// Config returns the effective configuration.
func (s *Scheduler) Config() SchedulerConfig { return s.cfg }

// RunSchedule executes every run of sched that is not already terminal,
// then aggregates verdicts from the Completed runs. Calling it again on the
// same schedule resumes: settled runs are never recomputed.
//
// Cancellation stops dispatch. Runs already executing observe ctx at their
// partition boundaries; a run stopped that way returns to Pending. The
// partial result is returned together with ctx's error.
//
// A run-scoped failure never aborts the schedule. The returned error is
// non-nil only for cancellation or a fatal configuration problem.
func (s *Scheduler) RunSchedule(ctx context.Context, sched *run.Schedule, samples []*bits.Sequence) (run.Result, error) {
	index, err := indexSamples(sched, samples)
	if err != nil {
		return run.Result{}, err
	}

	began := time.Now()
	manifest := run.NewManifest(sched, s.pool.Size(), s.cfg.Verdict.Alpha, s.cfg.CodeVersion)
	s.log.Info("schedule %s started: %d runs over %d samples, %d workers, fingerprint %s",
		sched.ID, sched.Len(), manifest.Samples, s.pool.Size(), sched.Fingerprint().Short())

	total := sched.Len()
	done := 0
	for _, r := range sched.Runs() {
		if r.Status.Terminal() {
			done++
		}
	}

	var wg sync.WaitGroup
	for _, r := range sched.Runs() {
		s.mu.Lock()
		pending := r.Status == run.StatusPending
		s.mu.Unlock()
		if !pending {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := s.pool.Acquire(ctx); err != nil {
			break
		}

		s.mu.Lock()
		startErr := r.Start()
		s.mu.Unlock()
		if startErr != nil {
			s.pool.Release()
			s.log.Error("run %s: %v", r.Triple, startErr)
			continue
		}

		wg.Add(1)
		go func(r *run.TestRun, seq *bits.Sequence) {
			defer wg.Done()
			defer s.pool.Release()
			s.settle(ctx, r, seq, &done, total)
		}(r, index[r.Sample])
	}
	wg.Wait()

	verdicts := s.aggregate(sched)
	elapsed := time.Since(began)
	res := run.NewResult(sched, manifest, verdicts, elapsed)
	s.metrics.ScheduleFinished(res.Counts, verdicts, elapsed)

	c := res.Counts
	s.log.Info("schedule %s finished in %s: completed=%d failed=%d insufficient=%d pending=%d",
		sched.ID, elapsed.Round(time.Millisecond), c.Completed, c.Failed, c.InsufficientData, c.Pending)

	if err := ctx.Err(); err != nil {
		s.log.Warn("schedule %s cancelled with %d runs pending", sched.ID, c.Pending)
		return res, err
	}
	return res, nil
}

// settle executes one Running run and records its outcome.
func (s *Scheduler) settle(ctx context.Context, r *run.TestRun, seq *bits.Sequence, done *int, total int) {
	s.metrics.RunStarted(r.Kernel)
	began := time.Now()
	res, err := s.execute(ctx, r, seq)
	elapsed := time.Since(began)

	s.mu.Lock()
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if e := r.Requeue(); e != nil {
			s.log.Error("run %s: %v", r.Triple, e)
		}
		s.mu.Unlock()
		return
	}
	if e := r.Resolve(res, err); e != nil {
		s.log.Error("run %s: %v", r.Triple, e)
	}
	status, reason, detail := r.Status, r.Reason, r.Detail
	*done++
	if s.cfg.Progress != nil {
		s.cfg.Progress(*done, total)
	}
	if fn := progressFrom(ctx); fn != nil {
		fn(*done, total)
	}
	s.mu.Unlock()

	s.metrics.RunFinished(r.Kernel, status, reason, elapsed)
	switch status {
	case run.StatusFailed:
		s.log.Warn("run %s failed (%s): %s", r.Triple, reason, detail)
	case run.StatusInsufficientData:
		s.log.Debug("run %s: %s", r.Triple, detail)
	default:
		s.log.Debug("run %s %s in %s", r.Triple, status, elapsed)
	}
}

// execute resolves parameters and runs the kernel. Panics become
// computation errors; nothing escapes to other runs.
func (s *Scheduler) execute(ctx context.Context, r *run.TestRun, seq *bits.Sequence) (res kernel.TestResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = kernel.TestResult{}, core.NewComputationError("%s panicked: %v", r.Kernel, rec)
		}
	}()

	ps, err := validation.Resolve(r.Params, seq.Len())
	if err != nil {
		return kernel.TestResult{}, err
	}
	k, err := s.registry.Kernel(r.Kernel)
	if err != nil {
		return kernel.TestResult{}, core.NewComputationError("%v", err)
	}

	env := ports.KernelEnv{Strategy: workpool.Sequential()}
	if r.Kernel.MultiThreaded() {
		env.Strategy = workpool.Parallel(s.pool)
	}
	var budget *gf2.Budget
	if s.cfg.ScratchLimitBytes > 0 {
		budget = gf2.NewBudget(s.cfg.ScratchLimitBytes)
		env.Alloc = budget
	}

	res, err = k.Compute(ctx, seq, ps, env)
	if err != nil {
		return kernel.TestResult{}, err
	}
	if budget != nil && budget.Live() != 0 {
		return kernel.TestResult{}, core.NewComputationError("%s left %d scratch rows live", r.Kernel, budget.Live())
	}
	return checkResult(r.Kernel, res)
}

// checkResult refuses an empty result or any p-value outside [0,1].
func checkResult(v kernel.Variant, res kernel.TestResult) (kernel.TestResult, error) {
	if len(res.PValues) == 0 {
		return kernel.TestResult{}, core.NewComputationError("%s produced no p-values", v)
	}
	for i, p := range res.PValues {
		checked, err := numeric.CheckPValue(p.Name, p.Value)
		if err != nil {
			return kernel.TestResult{}, err
		}
		res.PValues[i].Value = checked
	}
	return res, nil
}

func (s *Scheduler) aggregate(sched *run.Schedule) []verdict.Verdict {
	kernels := sched.Kernels()
	out := make([]verdict.Verdict, 0, len(kernels))
	for _, v := range kernels {
		if !sched.Settled(v) {
			out = append(out, verdict.Pending(v))
			continue
		}
		out = append(out, verdict.Aggregate(v, sched.Evidence(v), s.cfg.Verdict))
	}
	return out
}

// indexSamples maps ids to sequences and checks every run has its sample.
func indexSamples(sched *run.Schedule, samples []*bits.Sequence) (map[core.SampleID]*bits.Sequence, error) {
	if sched == nil {
		return nil, fmt.Errorf("%w: no schedule", core.ErrScheduleFatal)
	}
	index := make(map[core.SampleID]*bits.Sequence, len(samples))
	for _, seq := range samples {
		if seq == nil {
			return nil, fmt.Errorf("%w: nil sample", core.ErrScheduleFatal)
		}
		if _, dup := index[seq.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateSample, seq.ID())
		}
		index[seq.ID()] = seq
	}
	for _, r := range sched.Runs() {
		if _, ok := index[r.Sample]; !ok {
			return nil, fmt.Errorf("%w: sample %s is not loaded", core.ErrScheduleFatal, r.Sample)
		}
	}
	return index, nil
}
