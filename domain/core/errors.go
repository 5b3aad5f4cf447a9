package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Run-scoped failures
	ErrAllocationFailure = errors.New("scratch allocation failed")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrComputation       = errors.New("computation error")
	ErrInsufficientData  = errors.New("insufficient data for analysis")

	// Schedule-scoped failures
	ErrUnknownKernel   = errors.New("unknown kernel variant")
	ErrScheduleFatal   = errors.New("schedule cannot proceed")
	ErrDuplicateSample = errors.New("duplicate sample id")
)

// Error constructors with context
func NewInvalidParametersError(param string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameters, param, reason)
}

func NewComputationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrComputation, fmt.Sprintf(format, args...))
}

func NewInsufficientDataError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

func NewAllocationError(rows, cols int, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %dx%d matrix", ErrAllocationFailure, rows, cols)
	}
	return fmt.Errorf("%w: %dx%d matrix: %v", ErrAllocationFailure, rows, cols, cause)
}

// Error checking helpers
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsInvalidParameters(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

func IsAllocationFailure(err error) bool {
	return errors.Is(err, ErrAllocationFailure)
}
