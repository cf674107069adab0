/*
errors.go - Centralized error types for the cash-flow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input validation errors - Bad schedule rows or out-of-range terms
  2. Extraction errors - Term extraction call or payload failures
  3. Store errors - Missing projects, activities or persistence failures

USAGE:
  if errors.Is(err, generic.ErrInvalidSpan) {
      // report the row, keep forecasting the rest
  }

SEE ALSO:
  - schedule/schedule.go: Row validation
  - terms/extraction.go: Extraction outcomes
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSpan is returned when an activity ends before it starts.
	ErrInvalidSpan = errors.New("invalid span: end before start")

	// ErrNegativeValue is returned when an activity carries a negative value.
	ErrNegativeValue = errors.New("negative activity value")

	// ErrInvalidTerms is returned when a commercial term is out of range.
	ErrInvalidTerms = errors.New("invalid commercial terms")

	// ErrExtractionFailed is returned when the term extraction call itself fails.
	ErrExtractionFailed = errors.New("term extraction failed")

	// ErrParseFailure is returned when an extraction response holds no usable record.
	ErrParseFailure = errors.New("term extraction response not parseable")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrActivityNotFound is returned when a referenced activity doesn't exist.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrExtractorUnavailable is returned when no extraction backend is configured.
	ErrExtractorUnavailable = errors.New("term extractor not configured")

	// ErrDuplicateID is returned when a project or activity ID is already taken.
	ErrDuplicateID = errors.New("duplicate id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SpanError provides details about an inverted date span.
type SpanError struct {
	Start Date
	End   Date
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("invalid span: end %s before start %s", e.End, e.Start)
}

func (e *SpanError) Unwrap() error {
	return ErrInvalidSpan
}

// TermError names the offending commercial term.
type TermError struct {
	Field  string
	Value  string
	Reason string
}

func (e *TermError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *TermError) Unwrap() error {
	return ErrInvalidTerms
}

// ValidationErrors collects every problem found in one input so callers can
// report them all at once.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "no validation errors"
	case 1:
		return v[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", v[0].Error(), len(v)-1)
	}
}

func (v ValidationErrors) Unwrap() []error {
	return v
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSpan) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrInvalidTerms) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrActivityNotFound)
}
