package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// PrincipalKey is the context key for the authenticated caller
	PrincipalKey contextKey = "principal"

	// OrgIDKey is the context key for organization ID
	OrgIDKey contextKey = "org_id"

	// RunIDKey is the context key for the onboarding run a public token grants
	RunIDKey contextKey = "run_id"
)

// AuthMethod records how a principal authenticated
type AuthMethod string

const (
	AuthMethodSession AuthMethod = "session"
	AuthMethodAPIKey  AuthMethod = "api_key"
)

// Principal is the authenticated caller of a request, always bound to one organization
type Principal struct {
	OrgID    uuid.UUID
	MemberID uuid.UUID // uuid.Nil for API keys
	UserID   string
	Email    string
	Role     models.MemberRole
	Method   AuthMethod
	APIKeyID uuid.UUID
}

// HasRole reports whether the principal holds one of roles
func (p *Principal) HasRole(roles ...models.MemberRole) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// GetRequestIDFromContext retrieves the request ID from context, falling back
// to the id assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// GetOrgIDFromContext retrieves the organization ID from context
func GetOrgIDFromContext(ctx context.Context) uuid.UUID {
	if val := ctx.Value(OrgIDKey); val != nil {
		if orgID, ok := val.(uuid.UUID); ok {
			return orgID
		}
	}
	return uuid.Nil
}

// WithOrgID adds an organization ID to the context
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetRunIDFromContext retrieves the run ID granted by a public run token
func GetRunIDFromContext(ctx context.Context) uuid.UUID {
	if val := ctx.Value(RunIDKey); val != nil {
		if runID, ok := val.(uuid.UUID); ok {
			return runID
		}
	}
	return uuid.Nil
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}
