package middleware

import (
	"net"
	"net/http"

	"github.com/trycompai/comp-sub012/services/audit"
)

// AuditActor records the authenticated principal and request metadata for
// the audit trail. It must run after RequireAuth.
func AuditActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := audit.Actor{
			RequestID: GetRequestIDFromContext(ctx),
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		if principal := GetPrincipalFromContext(ctx); principal != nil {
			actor.MemberID = principal.MemberID
		}
		next.ServeHTTP(w, r.WithContext(audit.WithActor(ctx, actor)))
	})
}

// clientIP strips the port from RemoteAddr; chi's RealIP has already
// applied X-Forwarded-For when configured
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
