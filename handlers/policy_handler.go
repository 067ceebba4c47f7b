package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services/policies"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// PolicyService defines the policy operations used by PolicyHandler
type PolicyService interface {
	// List lists all policies of an organization
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)

	// Get retrieves a policy by ID
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Policy, error)

	// Create creates a draft policy
	Create(ctx context.Context, orgID uuid.UUID, req policies.CreatePolicyRequest) (*models.Policy, error)

	// Update applies a partial update
	Update(ctx context.Context, orgID, id uuid.UUID, req policies.UpdatePolicyRequest) (*models.Policy, error)

	// Delete deletes a policy
	Delete(ctx context.Context, orgID, id uuid.UUID) (*policies.DeleteResult, error)
}

// PolicyHandler handles policy-related HTTP requests
type PolicyHandler struct {
	service PolicyService
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /v1/policies
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.service.List(ctx, orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("listed policies",
		zap.String("request_id", requestID),
		zap.Int("count", len(list)))

	_ = utils.WriteOK(w, list)
}

// HandleCreatePolicy handles POST /v1/policies
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}

	var req policies.CreatePolicyRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	policy, err := h.service.Create(ctx, orgID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy created",
		zap.String("request_id", requestID),
		zap.String("policy_id", policy.ID.String()))

	_ = utils.WriteCreated(w, policy)
}

// HandleGetPolicy handles GET /v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "id", "policy")
	if !ok {
		return
	}

	policy, err := h.service.Get(r.Context(), orgID, policyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, policy)
}

// HandleUpdatePolicy handles PATCH /v1/policies/{id}
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "id", "policy")
	if !ok {
		return
	}

	var req policies.UpdatePolicyRequest
	if !decodeValid(w, r, &req, h.logger) {
		return
	}

	policy, err := h.service.Update(ctx, orgID, policyID, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy updated",
		zap.String("request_id", requestID),
		zap.String("policy_id", policyID.String()),
		zap.String("status", string(policy.Status)))

	_ = utils.WriteOK(w, policy)
}

// HandleDeletePolicy handles DELETE /v1/policies/{id}
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID, ok := requireOrg(w, r, h.logger)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "id", "policy")
	if !ok {
		return
	}

	result, err := h.service.Delete(ctx, orgID, policyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy deleted",
		zap.String("request_id", requestID),
		zap.String("policy_id", policyID.String()))

	_ = utils.WriteOK(w, result)
}
