package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrLineMissing         = errors.New("line missing")
	ErrLineImplausible     = errors.New("line outside plausibility range")
	ErrScopeMismatch       = errors.New("market scope mismatch")
	ErrSourceMissing       = errors.New("market source attribution missing")
	ErrContestNotFound     = errors.New("contest not found")
	ErrInsufficientSamples = errors.New("sample count must be at least 1")
	ErrSimulationTimeout   = errors.New("simulation exceeded wall-clock budget")
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key violation")
	ErrInvalidID           = errors.New("invalid ID format")
	ErrNoActiveSnapshot    = errors.New("no active calibration snapshot")
)

// StructuralError aborts the pipeline before simulation. No DecisionRecord
// is produced when one of these is returned.
type StructuralError struct {
	Reason string
	Err    error
}

// NewStructuralError creates a structural error with a reason code.
func NewStructuralError(reason string, err error) *StructuralError {
	return &StructuralError{Reason: reason, Err: err}
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("structural error (%s)", e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// SimulationError is fatal for the request: the sampling step itself failed.
// Absence of data propagates as an error, never as a placeholder value.
type SimulationError struct {
	ContestID string
	Err       error
}

// NewSimulationError creates a simulation error for a contest.
func NewSimulationError(contestID string, err error) *SimulationError {
	return &SimulationError{ContestID: contestID, Err: err}
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed for contest %s: %v", e.ContestID, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// IsSimulation reports whether err is a SimulationError.
func IsSimulation(err error) bool {
	var se *SimulationError
	return errors.As(err, &se)
}
