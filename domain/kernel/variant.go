package kernel

import (
	"fmt"
	"strings"

	"gosts/domain/core"
)

// Variant is the closed set of statistical tests the engine can run.
type Variant int

const (
	ApproximateEntropy Variant = iota
	BlockFrequency
	CumulativeSums
	DiscreteFourierTransform
	LinearComplexity
	LongestRunOfOnes
	NonOverlappingTemplateMatching
	OverlappingTemplateMatching
	RandomExcursions
	RandomExcursionsVariant
	Rank
	Serial
	UniversalStatistical

	variantCount
)

var variantNames = [variantCount]string{
	ApproximateEntropy:             "ApproximateEntropy",
	BlockFrequency:                 "BlockFrequency",
	CumulativeSums:                 "CumulativeSums",
	DiscreteFourierTransform:       "DiscreteFourierTransform",
	LinearComplexity:               "LinearComplexity",
	LongestRunOfOnes:               "LongestRunOfOnes",
	NonOverlappingTemplateMatching: "NonOverlappingTemplateMatching",
	OverlappingTemplateMatching:    "OverlappingTemplateMatching",
	RandomExcursions:               "RandomExcursions",
	RandomExcursionsVariant:        "RandomExcursionsVariant",
	Rank:                           "Rank",
	Serial:                         "Serial",
	UniversalStatistical:           "UniversalStatistical",
}

// All returns every variant in declaration order.
func All() []Variant {
	out := make([]Variant, variantCount)
	for i := range out {
		out[i] = Variant(i)
	}
	return out
}

// Valid reports whether v is a member of the enumeration.
func (v Variant) Valid() bool { return v >= 0 && v < variantCount }

func (v Variant) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// MultiThreaded reports whether the kernel partitions its own work across
// the worker pool.
func (v Variant) MultiThreaded() bool {
	switch v {
	case DiscreteFourierTransform, LinearComplexity, NonOverlappingTemplateMatching,
		RandomExcursions, Serial:
		return true
	default:
		return false
	}
}

// Parse accepts the canonical name case-insensitively, with or without
// underscores or spaces.
func Parse(s string) (Variant, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.TrimSpace(s)))
	for i, name := range variantNames {
		if strings.ToLower(name) == norm {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownKernel, s)
}

// MarshalText renders the canonical name.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownKernel, int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText parses a variant name.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
