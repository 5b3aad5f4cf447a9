package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/internal/errors"
)

// Sample formats understood by the file source.
const (
	FormatASCII  = "ascii"
	FormatBinary = "binary"
)

// Assessment is the YAML document describing one run of the engine.
// Zero-valued engine settings fall back to the environment configuration.
type Assessment struct {
	Workers             int                   `yaml:"workers" validate:"gte=0,lte=1024"`
	Alpha               float64               `yaml:"alpha" validate:"gte=0,lt=1"`
	UniformityThreshold float64               `yaml:"uniformity_threshold" validate:"gte=0,lt=1"`
	ScratchLimitBytes   int64                 `yaml:"scratch_limit_bytes" validate:"gte=0"`
	Samples             SampleConfig          `yaml:"samples"`
	Kernels             []kernel.Variant      `yaml:"kernels"`
	ParameterSets       []kernel.ParameterSet `yaml:"parameter_sets"`
	Report              ReportConfig          `yaml:"report"`
}

// SampleConfig locates the bits. A file holds one stream unless Length and
// Count cut it into several; a serial device always needs both.
type SampleConfig struct {
	Path        string        `yaml:"path" validate:"required_without=Device"`
	Format      string        `yaml:"format" validate:"omitempty,oneof=ascii binary"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud" validate:"gte=0"`
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`
	Length      int           `yaml:"length" validate:"gte=0"`
	Count       int           `yaml:"count" validate:"gte=0"`
	Prefix      string        `yaml:"prefix"`
}

// ReportConfig selects report outputs.
type ReportConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats" validate:"dive,oneof=json xlsx md html"`
}

// LoadFile reads and validates an assessment document. A relative sample
// path is taken relative to the document.
func LoadFile(path string) (*Assessment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	a, err := ParseAssessment(data)
	if err != nil {
		return nil, errors.Wrapf(err, "assessment %s", path)
	}
	if a.Samples.Path != "" && !filepath.IsAbs(a.Samples.Path) {
		a.Samples.Path = filepath.Join(filepath.Dir(path), a.Samples.Path)
	}
	return a, nil
}

// ParseAssessment decodes YAML strictly: unknown keys are rejected.
func ParseAssessment(data []byte) (*Assessment, error) {
	a := &Assessment{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(a); err != nil && err != io.EOF {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks field ranges and cross-field rules.
func (a *Assessment) Validate() error {
	if err := validate.Struct(a); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	s := a.Samples
	if s.Device != "" && (s.Length == 0 || s.Count == 0) {
		return errors.ConfigInvalid("samples: a serial device needs length and count")
	}
	if (s.Length == 0) != (s.Count == 0) && s.Device == "" {
		return errors.ConfigInvalid("samples: length and count must be given together")
	}
	for i, ps := range a.ParameterSets {
		if _, err := core.ParseParameterSetID(string(ps.ID)); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("parameter_sets[%d]: %v", i, err))
		}
	}
	return nil
}

// SampleFormat returns the declared format, defaulting to ASCII.
func (s SampleConfig) SampleFormat() string {
	if s.Format == "" {
		return FormatASCII
	}
	return s.Format
}

// Engine overlays the document's non-zero engine settings on env.
func (a *Assessment) Engine(env EngineConfig) EngineConfig {
	if a.Workers > 0 {
		env.Workers = a.Workers
	}
	if a.Alpha > 0 {
		env.Alpha = a.Alpha
	}
	if a.UniformityThreshold > 0 {
		env.UniformityThreshold = a.UniformityThreshold
	}
	if a.ScratchLimitBytes > 0 {
		env.ScratchLimitBytes = a.ScratchLimitBytes
	}
	return env
}
