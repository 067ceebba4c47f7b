package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "context entry not found",
				Err:     errors.New("db error"),
			},
			wantMsg: "not_found: context entry not found (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
				Err:     nil,
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	unwrapped := errors.Unwrap(domainErr)
	assert.Equal(t, baseErr, unwrapped)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrDocumentNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrDocumentNotFound,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "question").WithDetail("reason", "required")

	assert.Equal(t, "question", err.Details["field"])
	assert.Equal(t, "required", err.Details["reason"])
}

func TestWrap_KeepsSentinelTypeAndCause(t *testing.T) {
	cause := errors.New("NoSuchKey")
	err := Wrap(ErrStorageFailed, cause)

	assert.True(t, IsExternalError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "object storage request failed")

	// the sentinel itself is untouched
	assert.Nil(t, ErrStorageFailed.Err)
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		checker func(error) bool
		match   []error
		miss    []error
	}{
		{
			name:    "not found",
			checker: IsNotFoundError,
			match:   []error{ErrContextNotFound, fmt.Errorf("wrapped: %w", ErrDocumentNotFound), ErrRunNotFound},
			miss:    []error{ErrInvalidInput, errors.New("regular"), nil},
		},
		{
			name:    "validation",
			checker: IsValidationError,
			match:   []error{ErrInvalidInput, fmt.Errorf("wrapped: %w", ErrFileTooLarge), ErrUnsupportedFileType},
			miss:    []error{ErrFindingNotFound, errors.New("regular")},
		},
		{
			name:    "unauthorized",
			checker: IsUnauthorizedError,
			match:   []error{ErrUnauthorized, ErrInvalidAPIKey, ErrInvalidRunToken},
			miss:    []error{ErrInvalidInput},
		},
		{
			name:    "forbidden",
			checker: IsForbiddenError,
			match:   []error{ErrForbidden, ErrInsufficientPermissions},
			miss:    []error{ErrUnauthorized},
		},
		{
			name:    "conflict",
			checker: IsConflictError,
			match:   []error{ErrDuplicateSlug, ErrIntegrationExists, ErrFriendlyURLTaken},
			miss:    []error{ErrInvalidInput},
		},
		{
			name:    "internal",
			checker: IsInternalError,
			match:   []error{ErrInternal, ErrDatabaseError, WrapInternal("x", errors.New("y"))},
			miss:    []error{ErrLLMFailed},
		},
		{
			name:    "external",
			checker: IsExternalError,
			match:   []error{ErrStorageFailed, ErrVectorStoreFailed, WrapExternal("hubspot", errors.New("502"))},
			miss:    []error{ErrInternal},
		},
		{
			name:    "invalid transition",
			checker: IsInvalidTransitionError,
			match:   []error{ErrInvalidTransition},
			miss:    []error{ErrInvalidInput, ErrForbidden},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, err := range tt.match {
				assert.True(t, tt.checker(err), "expected match for %v", err)
			}
			for _, err := range tt.miss {
				assert.False(t, tt.checker(err), "expected miss for %v", err)
			}
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrPolicyNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidInput, ErrorTypeValidation},
		{"invalid transition", ErrInvalidTransition, ErrorTypeInvalidTransition},
		{"wrapped external", fmt.Errorf("ctx: %w", ErrCRMFailed), ErrorTypeExternal},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeInvalidTransition, "invalid status transition", nil).
		WithDetail("from", "closed").
		WithDetail("to", "ready_for_review")

	details := GetErrorDetails(fmt.Errorf("wrapped: %w", err))
	require.NotNil(t, details)
	assert.Equal(t, "closed", details["from"])
	assert.Equal(t, "ready_for_review", details["to"])

	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestAllErrorVariablesAreDefined(t *testing.T) {
	sentinels := map[string]*DomainError{
		"ErrOrganizationNotFound":    ErrOrganizationNotFound,
		"ErrMemberNotFound":          ErrMemberNotFound,
		"ErrContextNotFound":         ErrContextNotFound,
		"ErrDocumentNotFound":        ErrDocumentNotFound,
		"ErrFindingNotFound":         ErrFindingNotFound,
		"ErrVendorNotFound":          ErrVendorNotFound,
		"ErrRiskNotFound":            ErrRiskNotFound,
		"ErrPolicyNotFound":          ErrPolicyNotFound,
		"ErrTaskNotFound":            ErrTaskNotFound,
		"ErrIntegrationNotFound":     ErrIntegrationNotFound,
		"ErrProviderNotFound":        ErrProviderNotFound,
		"ErrTrustPortalNotFound":     ErrTrustPortalNotFound,
		"ErrRunNotFound":             ErrRunNotFound,
		"ErrInvalidInput":            ErrInvalidInput,
		"ErrUnsupportedFileType":     ErrUnsupportedFileType,
		"ErrFileTooLarge":            ErrFileTooLarge,
		"ErrInvalidFileData":         ErrInvalidFileData,
		"ErrUnsupportedPlatform":     ErrUnsupportedPlatform,
		"ErrProviderNotTestable":     ErrProviderNotTestable,
		"ErrUnauthorized":            ErrUnauthorized,
		"ErrInvalidToken":            ErrInvalidToken,
		"ErrTokenExpired":            ErrTokenExpired,
		"ErrInvalidRunToken":         ErrInvalidRunToken,
		"ErrForbidden":               ErrForbidden,
		"ErrInsufficientPermissions": ErrInsufficientPermissions,
		"ErrOrgMismatch":             ErrOrgMismatch,
		"ErrIntegrationExists":       ErrIntegrationExists,
		"ErrFriendlyURLTaken":        ErrFriendlyURLTaken,
		"ErrInvalidTransition":       ErrInvalidTransition,
		"ErrTransactionFailed":       ErrTransactionFailed,
		"ErrStorageFailed":           ErrStorageFailed,
		"ErrVectorStoreFailed":       ErrVectorStoreFailed,
		"ErrLLMFailed":               ErrLLMFailed,
		"ErrCRMFailed":               ErrCRMFailed,
		"ErrMDMFailed":               ErrMDMFailed,
	}

	for name, err := range sentinels {
		t.Run(name, func(t *testing.T) {
			require.NotNil(t, err)
			assert.NotEmpty(t, err.Type)
			assert.NotEmpty(t, err.Message)
		})
	}
}
