package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
)

// newRequest builds a request scoped to orgID as a member with role. A nil
// org leaves the request unauthenticated.
func newRequest(method, target, body string, orgID uuid.UUID, role models.MemberRole) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if orgID == uuid.Nil {
		return req
	}
	ctx := middleware.WithPrincipal(req.Context(), &middleware.Principal{
		OrgID:    orgID,
		MemberID: uuid.New(),
		Role:     role,
		Method:   middleware.AuthMethodSession,
	})
	ctx = middleware.WithOrgID(ctx, orgID)
	return req.WithContext(ctx)
}

// withParams sets chi route parameters on req
func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
