package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"not found error", services.ErrContextNotFound, http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("delete: %w", services.ErrDocumentNotFound), http.StatusNotFound, "not_found"},
		{"validation error", services.ErrInvalidInput, http.StatusBadRequest, "bad_request"},
		{"unauthorized error", services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden error", services.ErrInsufficientPermissions, http.StatusForbidden, "forbidden"},
		{"conflict error", services.ErrIntegrationExists, http.StatusConflict, "conflict"},
		{"invalid transition", services.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
		{"external error", services.Wrap(services.ErrStorageFailed, errors.New("timeout")), http.StatusBadGateway, "bad_gateway"},
		{"internal error", services.ErrInternal, http.StatusInternalServerError, "internal_error"},
		{"unknown error", errors.New("some unknown error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)

			assert.False(t, response.Success)
			assert.Equal(t, tt.expectedError, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}
}

func TestHandleServiceError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.Wrap(services.ErrStorageFailed, errors.New("secret bucket name")), zap.NewNop())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "secret bucket name")
	assert.Contains(t, w.Body.String(), "object storage request failed")
}

func TestHandleServiceErrorWithDetails(t *testing.T) {
	logger := zap.NewNop()

	err := services.NewDomainError(services.ErrorTypeInvalidTransition, "invalid status transition", nil).
		WithDetail("from", "closed").
		WithDetail("to", "ready_for_review")

	w := httptest.NewRecorder()
	HandleServiceError(w, err, logger)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, "invalid_transition", response.Error)
	assert.Equal(t, "closed", response.Details["from"])
	assert.Equal(t, "ready_for_review", response.Details["to"])
}

func TestHandleServiceErrorNil(t *testing.T) {
	logger := zap.NewNop()
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, logger)

	// Should not write anything
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("custom validation error", func(t *testing.T) {
		fields := map[string]string{
			"question": "question is required",
			"answer":   "answer is required",
		}
		err := &utils.ValidationError{
			Message: "Validation failed",
			Fields:  fields,
		}

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "Validation failed", response.Message)
		assert.Equal(t, "question is required", response.Details["question"])
		assert.Equal(t, "answer is required", response.Details["answer"])
	})

	t.Run("generic error", func(t *testing.T) {
		err := errors.New("invalid request body")

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, "bad_request", response.Error)
		assert.Equal(t, "invalid request body", response.Message)
	})
}
