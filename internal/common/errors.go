// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Solver errors. These are data dependent and recoverable per draw: the
	// estimation loop rejects the offending parameter draw and moves on.
	ErrSolutionDoesNotExist = errors.New("rational expectations solution does not exist")
	ErrSolutionNotUnique    = errors.New("rational expectations solution is not unique")
	ErrNumericalDegeneracy  = errors.New("numerically degenerate decomposition")

	// Assembly and smoothing errors. These indicate a misconfigured model and
	// abort the run.
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrMissingSystemMatrix = errors.New("missing system matrix")

	// Enumeration errors are fatal and rejected before any computation starts.
	ErrInvalidEnumValue = errors.New("invalid enumeration value")

	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UnitError attributes a failure to a single (draw, conditioning type,
// output type) unit of work.
type UnitError struct {
	Err    error
	Cond   string
	Output string
	Draw   int
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("draw %d cond=%s output=%s: %v", e.Draw, e.Cond, e.Output, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// NewUnitError wraps err with the identity of the failed unit.
func NewUnitError(draw int, cond, output string, err error) error {
	return &UnitError{
		Draw:   draw,
		Cond:   cond,
		Output: output,
		Err:    err,
	}
}

// IsRecoverable reports whether an error is a per-draw numerical failure that
// the batch should skip rather than abort on.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSolutionDoesNotExist) ||
		errors.Is(err, ErrSolutionNotUnique) ||
		errors.Is(err, ErrNumericalDegeneracy)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return false
}
