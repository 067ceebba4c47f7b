package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/onboarding"
	"go.uber.org/zap"
)

type fakeOnboarding struct {
	runs map[uuid.UUID]*models.OnboardingRun
}

func (f *fakeOnboarding) Start(ctx context.Context, orgID uuid.UUID) (*onboarding.StartResult, error) {
	run := models.NewOnboardingRun(orgID)
	f.runs[run.ID] = run
	return &onboarding.StartResult{RunID: run.ID, PublicAccessToken: "tok-" + run.ID.String(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeOnboarding) GetRun(ctx context.Context, orgID, runID uuid.UUID) (*models.OnboardingRun, error) {
	run, ok := f.runs[runID]
	if !ok || run.OrganizationID != orgID {
		return nil, services.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeOnboarding) RunProgress(ctx context.Context, runID uuid.UUID) (*models.OnboardingRun, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, services.ErrRunNotFound
	}
	return run, nil
}

type prefixTokens struct{}

func (prefixTokens) ValidateRunToken(token string, runID uuid.UUID) error {
	if token != "tok-"+runID.String() {
		return errors.New("token not valid for run")
	}
	return nil
}

func TestOnboardingHandler_StartAndPoll(t *testing.T) {
	orgID := uuid.New()
	svc := &fakeOnboarding{runs: map[uuid.UUID]*models.OnboardingRun{}}
	handler := NewOnboardingHandler(svc, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleStart(w, newRequest(http.MethodPost, "/v1/onboarding", "", orgID, models.RoleOwner))
	require.Equal(t, http.StatusAccepted, w.Code)

	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &started))
	runID := started["runId"].(string)
	token := started["publicAccessToken"].(string)

	// the progress route is public and guarded by the run token
	r := chi.NewRouter()
	r.With(middleware.RequireRunToken(prefixTokens{}, zap.NewNop())).
		Get("/v1/onboarding/runs/{id}/progress", handler.HandleProgress)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/onboarding/runs/"+runID+"/progress?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var run models.OnboardingRun
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &run))
	assert.Equal(t, models.RunQueued, run.Status)

	// a token for one run does not open another
	other, _ := svc.Start(context.Background(), orgID)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/onboarding/runs/"+other.RunID.String()+"/progress?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/onboarding/runs/"+runID+"/progress", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOnboardingHandler_GetRunIsTenantScoped(t *testing.T) {
	orgID := uuid.New()
	svc := &fakeOnboarding{runs: map[uuid.UUID]*models.OnboardingRun{}}
	handler := NewOnboardingHandler(svc, zap.NewNop())
	started, _ := svc.Start(context.Background(), orgID)

	w := httptest.NewRecorder()
	handler.HandleGetRun(w, withParams(newRequest(http.MethodGet, "/", "", orgID, models.RoleAdmin), "id", started.RunID.String()))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.HandleGetRun(w, withParams(newRequest(http.MethodGet, "/", "", uuid.New(), models.RoleAdmin), "id", started.RunID.String()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
