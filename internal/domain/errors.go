package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrUnknownCRS            = fmt.Errorf("crs: %w", ErrNotFound)
	ErrNoTransformation      = fmt.Errorf("transformation: %w", ErrNotFound)
	ErrMissingCode           = fmt.Errorf("identifiable without code: %w", ErrInvalidInput)
	ErrNilArgument           = fmt.Errorf("required argument is nil: %w", ErrInvalidInput)
	ErrInvalidAxisCount      = fmt.Errorf("axis count: %w", ErrInvalidInput)
	ErrUnsupportedUnderlying = fmt.Errorf("compound underlying crs: %w", ErrUnsupported)
	ErrUnsupportedCRSType    = fmt.Errorf("crs type: %w", ErrUnsupported)
	ErrNonAffineMatrix       = fmt.Errorf("matrix is not affine: %w", ErrInvalidInput)
	ErrSingularMatrix        = fmt.Errorf("matrix is not invertible: %w", ErrUnsupported)
	ErrOutOfDomain           = fmt.Errorf("coordinate outside projection domain: %w", ErrInvalidInput)
	ErrInvalidCoordinate     = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrNotReady              = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable    = fmt.Errorf("storage: %w", ErrUnavailable)
)

// UnknownCRSError is returned when a textual CRS identifier cannot be resolved.
type UnknownCRSError struct {
	Code string // The code as requested
}

// Error implements the error interface.
func (e *UnknownCRSError) Error() string {
	return fmt.Sprintf("unknown crs %q", e.Code)
}

// Unwrap returns the underlying error type.
func (e *UnknownCRSError) Unwrap() error {
	return ErrUnknownCRS
}

// TransformationError reports per-point failures of a batch transformation.
// Points carries the best-effort output; failed indexes keep their input values.
type TransformationError struct {
	Source string         // Source CRS code
	Target string         // Target CRS code
	Errors map[int]string // Point index -> cause
	Points []Point3       // Partially transformed points
	Err    error          // Underlying error, if the whole step failed
}

// NewTransformationError creates an empty error for a batch of the given size.
func NewTransformationError(source, target string) *TransformationError {
	return &TransformationError{
		Source: source,
		Target: target,
		Errors: make(map[int]string),
	}
}

// SetPointError records the failure cause for a point index. The first cause wins.
func (e *TransformationError) SetPointError(index int, cause string) {
	if _, ok := e.Errors[index]; ok {
		return
	}
	e.Errors[index] = cause
}

// Merge adds the per-point causes of other that are not yet recorded.
func (e *TransformationError) Merge(other *TransformationError) {
	for idx, cause := range other.Errors {
		e.SetPointError(idx, cause)
	}
	if e.Err == nil {
		e.Err = other.Err
	}
}

// HasErrors returns true if at least one point failed or the step failed.
func (e *TransformationError) HasErrors() bool {
	return len(e.Errors) > 0 || e.Err != nil
}

// FailedIndexes returns the failed point indexes in ascending order.
func (e *TransformationError) FailedIndexes() []int {
	idx := make([]int, 0, len(e.Errors))
	for i := range e.Errors {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Error implements the error interface.
func (e *TransformationError) Error() string {
	var b strings.Builder
	b.WriteString("transformation")
	if e.Source != "" || e.Target != "" {
		fmt.Fprintf(&b, " %s -> %s", e.Source, e.Target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if n := len(e.Errors); n > 0 {
		first := e.FailedIndexes()[0]
		fmt.Fprintf(&b, ": %d point(s) failed, first at index %d: %s", n, first, e.Errors[first])
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *TransformationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidCoordinate
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
