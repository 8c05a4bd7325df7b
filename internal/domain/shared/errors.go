package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// This lets errors.Is match a specific error against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeInvalidInput             = "INVALID_INPUT"
	CodeIllegalTransition        = "ILLEGAL_TRANSITION"
	CodeAlreadyFinalized         = "ALREADY_FINALIZED"
	CodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
	CodeIncompleteGraph          = "INCOMPLETE_GRAPH"
	CodeImmutableRecordViolation = "IMMUTABLE_RECORD_VIOLATION"
	CodeNotEditable              = "NOT_EDITABLE"
)

// Common domain errors
var (
	ErrNotFound                 = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput             = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrIllegalTransition        = NewDomainError(CodeIllegalTransition, "Status transition is not allowed")
	ErrAlreadyFinalized         = NewDomainError(CodeAlreadyFinalized, "Invoice is already finalized")
	ErrConcurrencyConflict      = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrIncompleteGraph          = NewDomainError(CodeIncompleteGraph, "Required relations are not loaded")
	ErrImmutableRecordViolation = NewDomainError(CodeImmutableRecordViolation, "Record is immutable")
	ErrNotEditable              = NewDomainError(CodeNotEditable, "Only draft invoices can be edited")
)

// IsCode reports whether err wraps a DomainError with the given code
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
