package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/auth"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// ValidateToken validates a session token and returns claims
	ValidateToken(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// AuthMiddleware authenticates requests by session token or organization API key
type AuthMiddleware struct {
	validator TokenValidator
	apiKeys   repositories.APIKeyRepository
	members   repositories.MemberRepository
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, apiKeys repositories.APIKeyRepository, members repositories.MemberRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		apiKeys:   apiKeys,
		members:   members,
		logger:    logger,
	}
}

// authTokenCookieName is the cookie name for session tokens (Authorization header takes precedence)
const authTokenCookieName = "auth_token"

// APIKeyHeader carries organization API keys
const APIKeyHeader = "X-API-Key"

// RequireAuth is a middleware that requires a valid API key or session token
// and resolves it to a Principal
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		var (
			principal *Principal
			status    int
			message   string
		)
		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
			principal, status, message = m.authenticateAPIKey(ctx, key)
		} else if token := extractToken(r); token != "" {
			principal, status, message = m.authenticateSession(ctx, token)
		} else {
			m.logger.Warn("missing credentials",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		if principal == nil {
			_ = utils.WriteError(w, status, message, nil)
			return
		}

		ctx = WithPrincipal(ctx, principal)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("org_id", principal.OrgID.String()),
			zap.String("method", string(principal.Method)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticateAPIKey(ctx context.Context, key string) (*Principal, int, string) {
	requestID := GetRequestIDFromContext(ctx)

	if !auth.LooksLikeAPIKey(key) {
		return nil, http.StatusUnauthorized, "Invalid API key"
	}

	apiKey, err := m.apiKeys.GetByHash(ctx, auth.HashAPIKey(key))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			m.logger.Warn("unknown api key",
				zap.String("request_id", requestID))
			return nil, http.StatusUnauthorized, "Invalid API key"
		}
		m.logger.Error("api key lookup failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, http.StatusInternalServerError, "Authentication failed"
	}
	if apiKey.IsRevoked() {
		return nil, http.StatusUnauthorized, "API key revoked"
	}

	if err := m.apiKeys.TouchLastUsed(ctx, apiKey.ID); err != nil {
		m.logger.Warn("failed to record api key use",
			zap.String("request_id", requestID),
			zap.String("api_key_id", apiKey.ID.String()),
			zap.Error(err))
	}

	// API keys act on behalf of the organization with admin rights
	return &Principal{
		OrgID:    apiKey.OrganizationID,
		Role:     models.RoleAdmin,
		Method:   AuthMethodAPIKey,
		APIKeyID: apiKey.ID,
	}, 0, ""
}

func (m *AuthMiddleware) authenticateSession(ctx context.Context, token string) (*Principal, int, string) {
	requestID := GetRequestIDFromContext(ctx)

	claims, err := m.validator.ValidateToken(ctx, token)
	if err != nil {
		m.logger.Warn("token validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}

	member, err := m.members.GetByUserID(ctx, claims.OrgID, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			m.logger.Warn("user is not a member of the organization",
				zap.String("request_id", requestID),
				zap.String("org_id", claims.OrgID.String()),
				zap.String("user_id", claims.UserID))
			return nil, http.StatusForbidden, "Not a member of this organization"
		}
		m.logger.Error("member lookup failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, http.StatusInternalServerError, "Authentication failed"
	}

	return &Principal{
		OrgID:    member.OrganizationID,
		MemberID: member.ID,
		UserID:   member.UserID,
		Email:    member.Email,
		Role:     member.Role,
		Method:   AuthMethodSession,
	}, 0, ""
}

// ExtractTenant is a middleware that scopes the request to the principal's organization.
// This should be called after RequireAuth
func (m *AuthMiddleware) ExtractTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		principal := GetPrincipalFromContext(ctx)
		if principal == nil {
			m.logger.Error("principal not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		if principal.OrgID == uuid.Nil {
			_ = utils.WriteForbidden(w, "Invalid organization ID")
			return
		}

		ctx = WithOrgID(ctx, principal.OrgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that requires one of the given roles
func (m *AuthMiddleware) RequireRole(roles ...models.MemberRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !principal.HasRole(roles...) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("role", string(principal.Role)))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts a session token from the Authorization header ("Bearer TOKEN")
// or the auth_token cookie. The header takes precedence when both are present.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
