package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.HubSpotConfig{AccessToken: "pat-test", BaseURL: server.URL}, zap.NewNop())
}

func TestClient_FindOrCreateContact_Existing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts/owner@acme.io", r.URL.Path)
		assert.Equal(t, "email", r.URL.Query().Get("idProperty"))
		_, _ = w.Write([]byte(`{"id":"101","properties":{"email":"owner@acme.io"}}`))
	}))

	contact, created, err := client.FindOrCreateContact(context.Background(), "owner@acme.io", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "101", contact.ID)
}

func TestClient_FindOrCreateContact_Creates(t *testing.T) {
	var createBody map[string]map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"resource not found","category":"OBJECT_NOT_FOUND"}`))
		case http.MethodPost:
			assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"202","properties":{"email":"owner@acme.io"}}`))
		}
	}))

	contact, created, err := client.FindOrCreateContact(context.Background(), "owner@acme.io", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "202", contact.ID)
	assert.Equal(t, "Ada", createBody["properties"]["firstname"])
}

func TestClient_FindOrCreateCompany(t *testing.T) {
	var searched searchRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/companies/search":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&searched))
			_, _ = w.Write([]byte(`{"total":0,"results":[]}`))
		case "/crm/v3/objects/companies":
			_, _ = w.Write([]byte(`{"id":"303","properties":{"name":"Acme","domain":"acme.io"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	company, created, err := client.FindOrCreateCompany(context.Background(), "Acme", "acme.io")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "303", company.ID)
	require.Len(t, searched.FilterGroups, 1)
	assert.Equal(t, "domain", searched.FilterGroups[0].Filters[0].PropertyName)
	assert.Equal(t, "acme.io", searched.FilterGroups[0].Filters[0].Value)
}

func TestClient_AssociateContactWithCompany(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/crm/v4/objects/contacts/101/associations/default/companies/303", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"COMPLETE"}`))
	}))

	require.NoError(t, client.AssociateContactWithCompany(context.Background(), "101", "303"))
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"Authentication credentials not found","category":"INVALID_AUTHENTICATION"}`))
	}))

	_, err := client.AccountDetails(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "INVALID_AUTHENTICATION", apiErr.Category)
}

func TestClient_WithTokenAndConfigured(t *testing.T) {
	base := New(config.HubSpotConfig{}, zap.NewNop())
	assert.False(t, base.Configured())

	_, err := base.AccountDetails(context.Background())
	assert.ErrorContains(t, err, "not configured")

	scoped := base.WithToken("pat-org")
	assert.True(t, scoped.Configured())
	assert.False(t, base.Configured())
	assert.Equal(t, defaultBaseURL, scoped.baseURL)
}
