package engine

import "fmt"

// ValidationError indicates a malformed condition or pattern definition.
// These are always surfaced to the caller and never silently coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientDataError indicates that a calculation cannot be performed
// because a required sample is empty, such as a team with zero matches
// played. Callers decide the fallback, typically a "not enough data" state
// rather than a fabricated number.
type InsufficientDataError struct {
	Subject string
	Reason  string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Subject, e.Reason)
}

// InsufficientSampleError indicates that a model comparison has no
// observations to test against.
type InsufficientSampleError struct {
	Reason string
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("insufficient sample size: %s", e.Reason)
}

// DataInconsistencyWarning records a lenient import policy violation,
// such as half-time goals exceeding full-time goals. Imports proceed;
// the warning is reported alongside the accepted record.
type DataInconsistencyWarning struct {
	MatchID string
	Detail  string
}

func (w *DataInconsistencyWarning) String() string {
	if w.MatchID != "" {
		return fmt.Sprintf("data inconsistency on match %s: %s", w.MatchID, w.Detail)
	}
	return fmt.Sprintf("data inconsistency: %s", w.Detail)
}
