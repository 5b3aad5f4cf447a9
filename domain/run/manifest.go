package run

import (
	"fmt"
	"time"

	"gosts/domain/core"
	"gosts/domain/kernel"
)

// Manifest describes a schedule for reports: what was asked for, before
// any outcome is known.
type Manifest struct {
	ScheduleID  core.ScheduleID  `json:"schedule_id"`
	Fingerprint Fingerprint      `json:"fingerprint"`
	Samples     int              `json:"samples"`
	Kernels     []kernel.Variant `json:"kernels"`
	Runs        int              `json:"runs"`
	Workers     int              `json:"workers"`
	Alpha       float64          `json:"alpha"`
	CodeVersion string           `json:"code_version"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewManifest summarises s.
func NewManifest(s *Schedule, workers int, alpha float64, codeVersion string) Manifest {
	samples := map[core.SampleID]bool{}
	for _, r := range s.Runs() {
		samples[r.Sample] = true
	}
	return Manifest{
		ScheduleID:  s.ID,
		Fingerprint: s.Fingerprint(),
		Samples:     len(samples),
		Kernels:     s.Kernels(),
		Runs:        s.Len(),
		Workers:     workers,
		Alpha:       alpha,
		CodeVersion: codeVersion,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the manifest is complete.
func (m Manifest) Validate() error {
	if core.ID(m.ScheduleID).IsEmpty() {
		return fmt.Errorf("manifest: schedule_id cannot be empty")
	}
	if m.Fingerprint.Fingerprint.IsEmpty() {
		return fmt.Errorf("manifest: fingerprint cannot be empty")
	}
	if m.Workers < 1 {
		return fmt.Errorf("manifest: workers must be positive")
	}
	if m.Alpha <= 0 || m.Alpha >= 1 {
		return fmt.Errorf("manifest: alpha %g outside (0,1)", m.Alpha)
	}
	return nil
}
