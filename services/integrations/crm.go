package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/internal/crm/hubspot"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"go.uber.org/zap"
)

const (
	// TaskSyncCRM pushes an organization to the CRM
	TaskSyncCRM = "sync-crm"

	// Queue runs integration jobs
	Queue = "crm"

	// ProviderHubSpot is the catalog slug of the CRM provider
	ProviderHubSpot = "hubspot"
)

// CRM is the subset of the HubSpot client used for syncing
type CRM interface {
	Configured() bool
	AccountDetails(ctx context.Context) (*hubspot.AccountDetails, error)
	FindOrCreateContact(ctx context.Context, email, firstName, lastName string) (*hubspot.Contact, bool, error)
	FindOrCreateCompany(ctx context.Context, name, domain string) (*hubspot.Company, bool, error)
	AssociateContactWithCompany(ctx context.Context, contactID, companyID string) error
}

// CRMFactory returns a CRM client for an access token; an empty token
// selects the platform account
type CRMFactory func(token string) CRM

// HubSpotFactory builds CRM clients from a configured HubSpot client
func HubSpotFactory(base *hubspot.Client) CRMFactory {
	return func(token string) CRM {
		if token == "" {
			return base
		}
		return base.WithToken(token)
	}
}

// SyncResult is returned by SyncCRM
type SyncResult struct {
	ContactID      string     `json:"contact_id"`
	CompanyID      string     `json:"company_id"`
	ContactCreated bool       `json:"contact_created"`
	CompanyCreated bool       `json:"company_created"`
	ConnectionID   *uuid.UUID `json:"connection_id,omitempty"`
	SyncedAt       time.Time  `json:"synced_at"`
}

type syncPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
}

// SyncCRM pushes the organization's owner and company to HubSpot and links
// them. The organization's own HubSpot connection is used when present,
// otherwise the platform account; the outcome is recorded on the
// connection.
func (s *Service) SyncCRM(ctx context.Context, orgID uuid.UUID) (*SyncResult, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrOrganizationNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	owner, err := s.members.GetOwner(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "organization has no owner to sync", nil)
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	conn, err := s.repo.GetByProvider(ctx, orgID, ProviderHubSpot)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	if conn != nil && conn.Status != models.ConnectionActive && conn.Status != models.ConnectionError {
		conn = nil
	}

	token := ""
	if conn != nil {
		token = decodeMap(conn.Credentials)["access_token"]
	}
	if s.crm == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "CRM is not configured", nil)
	}
	client := s.crm(token)
	if !client.Configured() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "CRM is not configured", nil)
	}

	result, syncErr := s.push(ctx, client, org, owner)
	if conn != nil {
		now := time.Now()
		if syncErr != nil {
			msg := syncErr.Error()
			conn.LastError = &msg
			conn.Status = models.ConnectionError
		} else {
			conn.LastSyncAt = &now
			conn.LastError = nil
			conn.Status = models.ConnectionActive
		}
		if err := s.save(ctx, conn); err != nil {
			s.logger.Error("failed to record CRM sync state",
				zap.String("connection_id", conn.ID.String()),
				zap.Error(err))
		}
	}
	if syncErr != nil {
		s.logger.Error("CRM sync failed",
			zap.String("organization_id", orgID.String()),
			zap.Error(syncErr))
		return nil, services.Wrap(services.ErrCRMFailed, syncErr)
	}

	if conn != nil {
		result.ConnectionID = &conn.ID
	}
	s.logger.Info("organization synced to CRM",
		zap.String("organization_id", orgID.String()),
		zap.String("contact_id", result.ContactID),
		zap.String("company_id", result.CompanyID),
		zap.Bool("contact_created", result.ContactCreated),
		zap.Bool("company_created", result.CompanyCreated))
	s.audit.Record(ctx, orgID, models.AuditActionIntegrationSync, resourceType, connectionID(conn), result)

	return result, nil
}

func (s *Service) push(ctx context.Context, client CRM, org *models.Organization, owner *models.Member) (*SyncResult, error) {
	first, last := splitName(owner.Name)
	contact, contactCreated, err := client.FindOrCreateContact(ctx, owner.Email, first, last)
	if err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}

	company, companyCreated, err := client.FindOrCreateCompany(ctx, org.Name, CompanyDomain(org.Website, owner.Email))
	if err != nil {
		return nil, fmt.Errorf("company: %w", err)
	}

	if err := client.AssociateContactWithCompany(ctx, contact.ID, company.ID); err != nil {
		return nil, fmt.Errorf("association: %w", err)
	}

	return &SyncResult{
		ContactID:      contact.ID,
		CompanyID:      company.ID,
		ContactCreated: contactCreated,
		CompanyCreated: companyCreated,
		SyncedAt:       time.Now(),
	}, nil
}

// RegisterTasks adds the CRM sync task to the registry
func (s *Service) RegisterTasks(registry *jobs.Registry, maxAttempts int) error {
	return registry.Register(jobs.TaskDefinition{
		ID:          TaskSyncCRM,
		Queue:       Queue,
		MaxAttempts: maxAttempts,
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var payload syncPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, jobs.Permanent(fmt.Errorf("invalid payload: %w", err))
			}
			result, err := s.SyncCRM(ctx, payload.OrganizationID)
			if err != nil {
				if !services.IsExternalError(err) {
					return nil, jobs.Permanent(err)
				}
				return nil, err
			}
			return json.Marshal(result)
		},
	})
}

// SyncPayload is the job payload that syncs orgID
func SyncPayload(orgID uuid.UUID) interface{} {
	return syncPayload{OrganizationID: orgID}
}

// CompanyDomain picks the company domain from the website, falling back to
// the owner's email domain
func CompanyDomain(website, email string) string {
	if website != "" {
		raw := website
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func connectionID(conn *models.IntegrationConnection) uuid.UUID {
	if conn == nil {
		return uuid.Nil
	}
	return conn.ID
}
