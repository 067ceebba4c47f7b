package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// requireOrg returns the tenant of the request or writes 401
func requireOrg(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	orgID := middleware.GetOrgIDFromContext(r.Context())
	if orgID == uuid.Nil {
		logger.Error("missing org ID in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Missing organization information")
		return uuid.Nil, false
	}
	return orgID, true
}

// pathID parses a UUID route parameter or writes 400
func pathID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid "+label+" ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter; ok is false after a 400
func queryID(w http.ResponseWriter, r *http.Request, param string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid "+param+" format", nil)
		return nil, false
	}
	return &id, true
}

// decodeValid decodes and validates a JSON body, writing 400 on failure
func decodeValid(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	return decodeValidLimit(w, r, v, utils.DefaultMaxBodyBytes, logger)
}

// decodeValidLimit is decodeValid with a custom body limit; oversized
// bodies get 413
func decodeValidLimit(w http.ResponseWriter, r *http.Request, v interface{}, limit int64, logger *zap.Logger) bool {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	if err := utils.DecodeJSONLimit(r, v, limit); err != nil {
		logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		if errors.Is(err, utils.ErrBodyTooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, err.Error(),
				map[string]interface{}{"max_bytes": limit})
			return false
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return false
	}

	if err := utils.ValidateStruct(v); err != nil {
		logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}
