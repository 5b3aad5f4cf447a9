package run

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

// Schedule is the full, ordered set of runs for one invocation. Its
// membership is fixed at Build; only the runs' states change afterwards.
type Schedule struct {
	ID          core.ScheduleID
	runs        []*TestRun
	fingerprint Fingerprint
}

// Build expands samples × kernels × parameter sets. A requested kernel
// without a configured parameter set gets its defaults under the id
// "default". Identical triples collapse into one run; the same parameter
// set id declared twice with different contents is an error.
func Build(samples []core.SampleID, sets []kernel.ParameterSet, kernels []kernel.Variant) (*Schedule, error) {
	seen := map[core.SampleID]bool{}
	for _, s := range samples {
		if seen[s] {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateSample, s)
		}
		seen[s] = true
	}

	bySet, err := groupSets(sets)
	if err != nil {
		return nil, err
	}

	variants, err := orderKernels(kernels)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{ID: core.NewScheduleID()}
	for _, sample := range samples {
		for _, v := range variants {
			group := bySet[v]
			if len(group) == 0 {
				group = []kernel.ParameterSet{kernel.Defaults(v)}
			}
			for _, ps := range group {
				sched.runs = append(sched.runs, NewTestRun(sample, ps))
			}
		}
	}
	sched.fingerprint = NewFingerprint(samples, variants, sched.runs)
	return sched, nil
}

func groupSets(sets []kernel.ParameterSet) (map[kernel.Variant][]kernel.ParameterSet, error) {
	out := map[kernel.Variant][]kernel.ParameterSet{}
	canonical := map[string]string{}
	for _, ps := range sets {
		if !ps.Kernel.Valid() {
			return nil, fmt.Errorf("%w: parameter set %s names kernel %d", core.ErrUnknownKernel, ps.ID, int(ps.Kernel))
		}
		if ps.ID == "" {
			ps.ID = core.DefaultParameterSetID
		}
		key := ps.Kernel.String() + "/" + ps.ID.String()
		if prev, ok := canonical[key]; ok {
			if prev != ps.Canonical() {
				return nil, fmt.Errorf("%w: parameter set %s declared twice with different values", core.ErrScheduleFatal, key)
			}
			continue
		}
		canonical[key] = ps.Canonical()
		out[ps.Kernel] = append(out[ps.Kernel], ps)
	}
	return out, nil
}

// orderKernels de-duplicates and sorts into variant order; empty means all.
func orderKernels(kernels []kernel.Variant) ([]kernel.Variant, error) {
	if len(kernels) == 0 {
		return kernel.All(), nil
	}
	seen := map[kernel.Variant]bool{}
	var out []kernel.Variant
	for _, v := range kernels {
		if !v.Valid() {
			return nil, fmt.Errorf("%w: %d", core.ErrUnknownKernel, int(v))
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Runs returns the runs in schedule order.
func (s *Schedule) Runs() []*TestRun { return s.runs }

// Len returns the number of runs.
func (s *Schedule) Len() int { return len(s.runs) }

// Fingerprint identifies the schedule's content for resume.
func (s *Schedule) Fingerprint() Fingerprint { return s.fingerprint }

// Counts tallies the current run states.
func (s *Schedule) Counts() Counts {
	var c Counts
	for _, r := range s.runs {
		c.Add(r.Status)
	}
	return c
}

// Done reports whether every run is terminal.
func (s *Schedule) Done() bool {
	for _, r := range s.runs {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// Settled reports whether every run of v is terminal.
func (s *Schedule) Settled(v kernel.Variant) bool {
	for _, r := range s.runs {
		if r.Kernel == v && !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// Kernels returns the distinct variants in the schedule, in variant order.
func (s *Schedule) Kernels() []kernel.Variant {
	seen := map[kernel.Variant]bool{}
	var out []kernel.Variant
	for _, r := range s.runs {
		if !seen[r.Kernel] {
			seen[r.Kernel] = true
			out = append(out, r.Kernel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fingerprint hashes what determines a schedule's outcome: which samples,
// which kernels, which parameter values.
type Fingerprint struct {
	SampleHash    core.Hash `json:"sample_hash"`
	KernelHash    core.Hash `json:"kernel_hash"`
	ParameterHash core.Hash `json:"parameter_hash"`
	Fingerprint   core.Hash `json:"fingerprint"`
}

// NewFingerprint builds the fingerprint over the ordered runs.
func NewFingerprint(samples []core.SampleID, kernels []kernel.Variant, runs []*TestRun) Fingerprint {
	sampleParts := make([]string, len(samples))
	for i, s := range samples {
		sampleParts[i] = s.String()
	}
	kernelParts := make([]string, len(kernels))
	for i, v := range kernels {
		kernelParts[i] = v.String()
	}
	runParts := make([]string, len(runs))
	for i, r := range runs {
		runParts[i] = r.Sample.String() + "|" + r.Parameter.String() + "|" + r.Params.Canonical()
	}

	fp := Fingerprint{
		SampleHash:    core.HashParts(sampleParts...),
		KernelHash:    core.HashParts(kernelParts...),
		ParameterHash: core.HashParts(runParts...),
	}
	data := fmt.Sprintf("samples:%s|kernels:%s|runs:%s", fp.SampleHash, fp.KernelHash, fp.ParameterHash)
	fp.Fingerprint = core.Hash(fmt.Sprintf("%x", sha256.Sum256([]byte(data))))
	return fp
}

// Short returns the first 12 hex digits, for logs.
func (f Fingerprint) Short() string {
	s := string(f.Fingerprint)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
