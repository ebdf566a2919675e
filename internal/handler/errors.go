package handler

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// CodeNotFound indicates a referenced workspace, content stream, node
	// aggregate or node type does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInvariantViolation indicates the command would break a constraint
	// of the content graph.
	CodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"

	// CodeConcurrencyConflict indicates the expected stream version did not
	// match. Most conflicts can be retried against fresh state.
	CodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"

	// CodeRebaseConflict indicates replayed commands failed during a rebase.
	CodeRebaseConflict ErrorCode = "REBASE_CONFLICT"
)

// DomainError is returned by command handlers when a command is rejected.
type DomainError struct {
	Code    ErrorCode
	Message string

	// Details carries structured context, e.g. the violated rule under
	// "reason" or the failing commands of a rebase.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if reason := e.Details["reason"]; reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsInvariantViolation reports whether err is an INVARIANT_VIOLATION.
func IsInvariantViolation(err error) bool { return hasCode(err, CodeInvariantViolation) }

// IsConcurrencyConflict reports whether err is a CONCURRENCY_CONFLICT.
func IsConcurrencyConflict(err error) bool { return hasCode(err, CodeConcurrencyConflict) }

// IsRebaseConflict reports whether err is a REBASE_CONFLICT.
func IsRebaseConflict(err error) bool { return hasCode(err, CodeRebaseConflict) }

// Reason returns the rule a domain error names, or "".
func Reason(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Details["reason"]
	}
	return ""
}

func notFound(reason, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf(format, args...),
		Details: map[string]string{"reason": reason},
	}
}

func violation(reason, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    CodeInvariantViolation,
		Message: fmt.Sprintf(format, args...),
		Details: map[string]string{"reason": reason},
	}
}

// NewConcurrencyConflict wraps a stream version mismatch.
func NewConcurrencyConflict(reason string, err error) *DomainError {
	return &DomainError{
		Code:    CodeConcurrencyConflict,
		Message: err.Error(),
		Details: map[string]string{"reason": reason},
		Err:     err,
	}
}
