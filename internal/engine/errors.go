package engine

import (
	"errors"
	"fmt"
)

// QueryError is the terminal error of a query execution.
//
// No partial result accompanies a QueryError. Predicate-level problems such
// as incomparable values or failed geocoding are not errors; they only make
// the affected predicate reject the entity.
type QueryError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// ExecutionID identifies the failed execution.
	ExecutionID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes query errors.
type ErrorKind string

const (
	// KindInvalidQuery indicates a builder error or an invalid predicate.
	KindInvalidQuery ErrorKind = "invalid_query"

	// KindInvalidRegex indicates a regular expression that does not compile.
	KindInvalidRegex ErrorKind = "invalid_regex"

	// KindMalformedRange indicates range bounds that cannot be compared.
	KindMalformedRange ErrorKind = "malformed_range"

	// KindIndexUnavailable indicates the index failed or could not be reached.
	KindIndexUnavailable ErrorKind = "index_unavailable"

	// KindSourceFailure indicates a source predicate failed to enumerate its
	// candidates.
	KindSourceFailure ErrorKind = "source_failure"

	// KindResourceLimit indicates more entities were materialized than allowed.
	KindResourceLimit ErrorKind = "resource_limit"

	// KindCancelled indicates the context was cancelled or timed out.
	KindCancelled ErrorKind = "cancelled"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.ExecutionID != "" {
		msg += fmt.Sprintf(" (execution=%s)", e.ExecutionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error { return e.Err }

// IsKind reports whether err is a QueryError of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == kind
	}
	return false
}

// IsCancelled returns true if the execution was cancelled.
func IsCancelled(err error) bool { return IsKind(err, KindCancelled) }

// IsIndexUnavailable returns true if the index failed.
func IsIndexUnavailable(err error) bool { return IsKind(err, KindIndexUnavailable) }

// IsResourceLimit returns true if the materialization budget was exhausted.
// Matches both QueryError with KindResourceLimit and LimitExceededError.
func IsResourceLimit(err error) bool {
	if IsKind(err, KindResourceLimit) {
		return true
	}
	var le *LimitExceededError
	return errors.As(err, &le)
}

func newQueryError(kind ErrorKind, executionID, message string, err error) *QueryError {
	return &QueryError{Kind: kind, Message: message, ExecutionID: executionID, Err: err}
}
