package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeScopeViolation    = "SCOPE_VIOLATION"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
	ErrCodeGenerationTimeout = "GENERATION_TIMEOUT"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query text cannot be empty")
	ErrEmptyDenialNotes      = NewDomainError(ErrCodeValidation, "decision notes are required when denying an approval")
	ErrInvalidDecision       = NewDomainError(ErrCodeValidation, "decision must be approved or denied")
	ErrEmbeddingDimension    = NewDomainError(ErrCodeValidation, "embedding has wrong dimensions")
	ErrInvalidApprovalStatus = NewDomainError(ErrCodeValidation, "invalid approval status")
)

// Not found errors
var (
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
	ErrApprovalNotFound = NewDomainError(ErrCodeNotFound, "approval request not found")
	ErrGrantNotFound    = NewDomainError(ErrCodeNotFound, "access grant not found")
)

// State errors
var (
	ErrApprovalAlreadyDecided = NewDomainError(ErrCodeInvalidState, "approval request has already been decided")
)

// Scope errors
var (
	ErrScopeRequired = NewDomainError(ErrCodeScopeViolation, "owner scope is required")
)

// Generation errors
var (
	ErrGenerationFailed      = NewDomainError(ErrCodeGenerationFailed, "generation service failed after retries")
	ErrGenerationTimeout     = NewDomainError(ErrCodeGenerationTimeout, "generation service timed out")
	ErrGenerationUnavailable = NewDomainError(ErrCodeUnavailable, "generation service unavailable")
	ErrGenerationRateLimited = NewDomainError(ErrCodeRateLimited, "generation service rate limited")
)

// IsRetryableGeneration reports whether a generation error is worth another attempt.
func IsRetryableGeneration(err error) bool {
	domainErr, ok := err.(*DomainError)
	if !ok {
		return false
	}
	return domainErr.Code == ErrCodeUnavailable || domainErr.Code == ErrCodeRateLimited
}
