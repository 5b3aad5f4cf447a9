package kernels

import (
	"fmt"

	"gosts/domain/core"
	"gosts/domain/kernel"
	"gosts/ports"
)

// New returns the kernel implementing v. The switch covers the closed
// variant set; adding a variant without a case here fails the registry test.
func New(v kernel.Variant) (ports.Kernel, error) {
	switch v {
	case kernel.ApproximateEntropy:
		return ApproximateEntropy{}, nil
	case kernel.BlockFrequency:
		return BlockFrequency{}, nil
	case kernel.CumulativeSums:
		return CumulativeSums{}, nil
	case kernel.DiscreteFourierTransform:
		return DiscreteFourierTransform{}, nil
	case kernel.LinearComplexity:
		return LinearComplexity{}, nil
	case kernel.LongestRunOfOnes:
		return LongestRunOfOnes{}, nil
	case kernel.NonOverlappingTemplateMatching:
		return NonOverlappingTemplateMatching{}, nil
	case kernel.OverlappingTemplateMatching:
		return OverlappingTemplateMatching{}, nil
	case kernel.RandomExcursions:
		return RandomExcursions{}, nil
	case kernel.RandomExcursionsVariant:
		return RandomExcursionsVariant{}, nil
	case kernel.Rank:
		return Rank{}, nil
	case kernel.Serial:
		return Serial{}, nil
	case kernel.UniversalStatistical:
		return UniversalStatistical{}, nil
	}
	return nil, fmt.Errorf("%w: %d", core.ErrUnknownKernel, int(v))
}

// Registry is the default ports.KernelRegistry.
type Registry struct{}

// Kernel implements ports.KernelRegistry.
func (Registry) Kernel(v kernel.Variant) (ports.Kernel, error) { return New(v) }

// All returns one kernel per variant in variant order.
func All() []ports.Kernel {
	out := make([]ports.Kernel, 0, len(kernel.All()))
	for _, v := range kernel.All() {
		k, err := New(v)
		if err != nil {
			panic(err)
		}
		out = append(out, k)
	}
	return out
}
