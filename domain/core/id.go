package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	ScheduleID     ID
	SampleID       ID
	ParameterSetID ID
)

// DefaultParameterSetID names the parameter set synthesized for a kernel
// that was requested without an explicit configuration.
const DefaultParameterSetID ParameterSetID = "default"

// NewScheduleID returns a fresh schedule identifier
func NewScheduleID() ScheduleID { return ScheduleID(NewID()) }

// String conversions for domain IDs
func (id ScheduleID) String() string     { return ID(id).String() }
func (id SampleID) String() string       { return ID(id).String() }
func (id ParameterSetID) String() string { return ID(id).String() }

// ParseSampleID parses a string into SampleID
func ParseSampleID(s string) (SampleID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sample ID cannot be empty")
	}
	return SampleID(s), nil
}

// ParseParameterSetID parses a string into ParameterSetID
func ParseParameterSetID(s string) (ParameterSetID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("parameter set ID cannot be empty")
	}
	return ParameterSetID(s), nil
}

// SampleIDForIndex names the i-th stream cut from a single source
func SampleIDForIndex(prefix string, i int) SampleID {
	if prefix == "" {
		prefix = "stream"
	}
	return SampleID(fmt.Sprintf("%s-%04d", prefix, i))
}
