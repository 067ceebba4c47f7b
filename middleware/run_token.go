package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// RunTokenValidator validates public run access tokens
type RunTokenValidator interface {
	ValidateRunToken(token string, runID uuid.UUID) error
}

// RequireRunToken authorizes unauthenticated readers of one onboarding run.
// The run id comes from the {id} route parameter and the token from the
// token query parameter or a bearer header.
func RequireRunToken(validator RunTokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			runID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				_ = utils.WriteBadRequest(w, "Invalid run ID", nil)
				return
			}

			token := r.URL.Query().Get("token")
			if token == "" {
				token = extractBearerToken(r)
			}
			if token == "" {
				_ = utils.WriteUnauthorized(w, "Missing run access token")
				return
			}

			if err := validator.ValidateRunToken(token, runID); err != nil {
				logger.Warn("run token rejected",
					zap.String("request_id", requestID),
					zap.String("run_id", runID.String()),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w, "Invalid or expired run access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRunID(ctx, runID)))
		})
	}
}
