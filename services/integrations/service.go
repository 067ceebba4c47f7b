// Package integrations manages the provider catalog and the organization's
// connections to third party services.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"go.uber.org/zap"
)

const resourceType = "integration_connection"

// ConnectRequest is the payload for connecting a provider
type ConnectRequest struct {
	ProviderSlug string            `json:"provider_slug" validate:"required,max=64"`
	Settings     map[string]string `json:"settings" validate:"omitempty,max=50"`
	Credentials  map[string]string `json:"credentials" validate:"omitempty,max=50"`
}

// UpdateConnectionRequest changes a connection's status or settings
type UpdateConnectionRequest struct {
	Status      *string            `json:"status" validate:"omitempty,oneof=active paused disconnected"`
	Settings    *map[string]string `json:"settings" validate:"omitempty"`
	Credentials *map[string]string `json:"credentials" validate:"omitempty"`
}

// TestResult is returned by Test
type TestResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DeleteResult is returned by Disconnect
type DeleteResult struct {
	Success bool `json:"success"`
}

// Probe checks that a connection's settings and credentials work
type Probe func(ctx context.Context, conn *models.IntegrationConnection) (map[string]interface{}, error)

// Service handles integration operations
type Service struct {
	repo    repositories.IntegrationRepository
	orgs    repositories.OrganizationRepository
	members repositories.MemberRepository
	catalog *Catalog
	probes  map[string]Probe
	crm     CRMFactory
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewService creates a new integration service. crm may be nil when no
// CRM is configured.
func NewService(
	repos *repositories.Repositories,
	catalog *Catalog,
	crm CRMFactory,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:    repos.Integrations,
		orgs:    repos.Organizations,
		members: repos.Members,
		catalog: catalog,
		probes:  make(map[string]Probe),
		crm:     crm,
		audit:   recorder,
		logger:  logger,
	}
}

// RegisterProbe sets the connection test of a provider
func (s *Service) RegisterProbe(slug string, probe Probe) {
	s.probes[slug] = probe
}

// ListProviders returns the catalog
func (s *Service) ListProviders() []Provider {
	return s.catalog.List()
}

// ListConnections returns the organization's connections
func (s *Service) ListConnections(ctx context.Context, orgID uuid.UUID) ([]*models.IntegrationConnection, error) {
	conns, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return conns, nil
}

// GetConnection returns one connection of the organization
func (s *Service) GetConnection(ctx context.Context, orgID, id uuid.UUID) (*models.IntegrationConnection, error) {
	conn, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrIntegrationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return conn, nil
}

// Connect creates a connection to a catalog provider
func (s *Service) Connect(ctx context.Context, orgID uuid.UUID, req ConnectRequest) (*models.IntegrationConnection, error) {
	provider, ok := s.catalog.Get(req.ProviderSlug)
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, services.ErrProviderNotFound.Message, nil).
			WithDetail("provider_slug", req.ProviderSlug)
	}
	if err := requireFields("settings", provider.Settings, req.Settings); err != nil {
		return nil, err
	}
	if err := requireFields("credentials", provider.Credentials, req.Credentials); err != nil {
		return nil, err
	}

	settings, err := encodeMap(req.Settings)
	if err != nil {
		return nil, err
	}
	credentials, err := encodeMap(req.Credentials)
	if err != nil {
		return nil, err
	}

	conn := models.NewIntegrationConnection(orgID, provider.Slug, settings, credentials)
	if err := s.repo.Create(ctx, conn); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, services.NewDomainError(services.ErrorTypeConflict, services.ErrIntegrationExists.Message, nil).
				WithDetail("provider_slug", provider.Slug)
		}
		s.logger.Error("failed to create integration connection",
			zap.String("organization_id", orgID.String()),
			zap.String("provider", provider.Slug),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("integration connected",
		zap.String("organization_id", orgID.String()),
		zap.String("provider", provider.Slug),
		zap.String("connection_id", conn.ID.String()))
	s.audit.Record(ctx, orgID, models.AuditActionCreated, resourceType, conn.ID, map[string]string{"provider": provider.Slug})

	return conn, nil
}

// UpdateConnection changes status, settings or credentials
func (s *Service) UpdateConnection(ctx context.Context, orgID, id uuid.UUID, req UpdateConnectionRequest) (*models.IntegrationConnection, error) {
	conn, err := s.GetConnection(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	provider, _ := s.catalog.Get(conn.ProviderSlug)

	var changed []string
	if req.Settings != nil {
		if err := requireFields("settings", provider.Settings, *req.Settings); err != nil {
			return nil, err
		}
		if conn.Settings, err = encodeMap(*req.Settings); err != nil {
			return nil, err
		}
		changed = append(changed, "settings")
	}
	if req.Credentials != nil {
		if err := requireFields("credentials", provider.Credentials, *req.Credentials); err != nil {
			return nil, err
		}
		if conn.Credentials, err = encodeMap(*req.Credentials); err != nil {
			return nil, err
		}
		changed = append(changed, "credentials")
	}
	if req.Status != nil {
		conn.Status = models.ConnectionStatus(*req.Status)
		if conn.Status == models.ConnectionActive {
			conn.LastError = nil
		}
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return conn, nil
	}

	if err := s.save(ctx, conn); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, id, map[string]interface{}{"fields": changed})
	return conn, nil
}

// Disconnect deletes a connection
func (s *Service) Disconnect(ctx context.Context, orgID, id uuid.UUID) (*DeleteResult, error) {
	conn, err := s.GetConnection(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrIntegrationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.logger.Info("integration disconnected",
		zap.String("organization_id", orgID.String()),
		zap.String("provider", conn.ProviderSlug))
	s.audit.Record(ctx, orgID, models.AuditActionDeleted, resourceType, id, map[string]string{"provider": conn.ProviderSlug})
	return &DeleteResult{Success: true}, nil
}

// Test runs the provider's probe and records the outcome on the connection.
// A failing probe is reported in the result, not as an error.
func (s *Service) Test(ctx context.Context, orgID, id uuid.UUID) (*TestResult, error) {
	conn, err := s.GetConnection(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	probe, ok := s.probes[conn.ProviderSlug]
	if !ok {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrProviderNotTestable.Message, nil).
			WithDetail("provider_slug", conn.ProviderSlug)
	}

	details, probeErr := probe(ctx, conn)
	result := &TestResult{Success: probeErr == nil, Details: details}
	if probeErr != nil {
		msg := probeErr.Error()
		result.Message = msg
		conn.Status = models.ConnectionError
		conn.LastError = &msg
		s.logger.Warn("integration test failed",
			zap.String("organization_id", orgID.String()),
			zap.String("provider", conn.ProviderSlug),
			zap.Error(probeErr))
	} else {
		result.Message = "connection succeeded"
		conn.Status = models.ConnectionActive
		conn.LastError = nil
	}

	if err := s.save(ctx, conn); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, orgID, models.AuditActionIntegrationTest, resourceType, id, map[string]interface{}{
		"provider": conn.ProviderSlug,
		"success":  result.Success,
	})
	return result, nil
}

func (s *Service) save(ctx context.Context, conn *models.IntegrationConnection) error {
	conn.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, conn); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrIntegrationNotFound
		}
		return services.Wrap(services.ErrDatabaseError, err)
	}
	return nil
}

func requireFields(kind string, fields []Field, values map[string]string) error {
	var missing []string
	for _, f := range fields {
		if f.Required && values[f.Key] == "" {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.NewDomainError(services.ErrorTypeValidation, "missing required "+kind, nil).
		WithDetail("missing", missing)
}

func encodeMap(m map[string]string) (json.RawMessage, error) {
	if m == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, services.WrapInternal("failed to encode connection fields", err)
	}
	return data, nil
}

func decodeMap(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
