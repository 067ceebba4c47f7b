package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeInternal          ErrorType = "internal"
	ErrorTypeExternal          ErrorType = "external"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrOrganizationNotFound = NewDomainError(ErrorTypeNotFound, "organization not found", nil)
	ErrMemberNotFound       = NewDomainError(ErrorTypeNotFound, "member not found", nil)
	ErrContextNotFound      = NewDomainError(ErrorTypeNotFound, "context entry not found", nil)
	ErrDocumentNotFound     = NewDomainError(ErrorTypeNotFound, "knowledge base document not found", nil)
	ErrFindingNotFound      = NewDomainError(ErrorTypeNotFound, "finding not found", nil)
	ErrVendorNotFound       = NewDomainError(ErrorTypeNotFound, "vendor not found", nil)
	ErrRiskNotFound         = NewDomainError(ErrorTypeNotFound, "risk not found", nil)
	ErrPolicyNotFound       = NewDomainError(ErrorTypeNotFound, "policy not found", nil)
	ErrTaskNotFound         = NewDomainError(ErrorTypeNotFound, "task not found", nil)
	ErrIntegrationNotFound  = NewDomainError(ErrorTypeNotFound, "integration connection not found", nil)
	ErrProviderNotFound     = NewDomainError(ErrorTypeNotFound, "integration provider not found", nil)
	ErrTrustPortalNotFound  = NewDomainError(ErrorTypeNotFound, "trust portal not found", nil)
	ErrRunNotFound          = NewDomainError(ErrorTypeNotFound, "onboarding run not found", nil)

	// Validation Errors
	ErrInvalidInput         = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidSlug          = NewDomainError(ErrorTypeValidation, "invalid slug format", nil)
	ErrUnsupportedFileType  = NewDomainError(ErrorTypeValidation, "unsupported file type", nil)
	ErrFileTooLarge         = NewDomainError(ErrorTypeValidation, "file exceeds maximum upload size", nil)
	ErrInvalidFileData      = NewDomainError(ErrorTypeValidation, "file data is not valid base64", nil)
	ErrUnsupportedPlatform  = NewDomainError(ErrorTypeValidation, "unsupported device platform", nil)
	ErrProviderNotTestable  = NewDomainError(ErrorTypeValidation, "provider has no connection test", nil)

	// Authorization Errors
	ErrUnauthorized    = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidAPIKey   = NewDomainError(ErrorTypeUnauthorized, "invalid API key", nil)
	ErrInvalidToken    = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired    = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)
	ErrInvalidRunToken = NewDomainError(ErrorTypeUnauthorized, "invalid run access token", nil)

	// Permission Errors
	ErrForbidden               = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)
	ErrOrgMismatch             = NewDomainError(ErrorTypeForbidden, "organization mismatch", nil)

	// Conflict Errors
	ErrDuplicateSlug        = NewDomainError(ErrorTypeConflict, "slug already exists", nil)
	ErrIntegrationExists    = NewDomainError(ErrorTypeConflict, "provider already connected", nil)
	ErrFriendlyURLTaken     = NewDomainError(ErrorTypeConflict, "friendly URL already in use", nil)

	// Lifecycle Errors
	ErrInvalidTransition = NewDomainError(ErrorTypeInvalidTransition, "invalid status transition", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)

	// External Errors
	ErrStorageFailed     = NewDomainError(ErrorTypeExternal, "object storage request failed", nil)
	ErrVectorStoreFailed = NewDomainError(ErrorTypeExternal, "vector store request failed", nil)
	ErrLLMFailed         = NewDomainError(ErrorTypeExternal, "LLM provider error", nil)
	ErrCRMFailed         = NewDomainError(ErrorTypeExternal, "CRM request failed", nil)
	ErrMDMFailed         = NewDomainError(ErrorTypeExternal, "device management request failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeForbidden
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is an external provider error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// IsInvalidTransitionError checks if an error is a lifecycle transition error
func IsInvalidTransitionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInvalidTransition
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external dependency error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// Wrap attaches a cause to a sentinel, keeping the sentinel's type and message
func Wrap(sentinel *DomainError, err error) error {
	return &DomainError{
		Type:    sentinel.Type,
		Message: sentinel.Message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}
