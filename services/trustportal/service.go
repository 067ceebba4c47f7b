// Package trustportal manages the public trust page of an organization.
package trustportal

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit"
	"go.uber.org/zap"
)

const resourceType = "trust_portal"

var friendlyURLPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// UpdateRequest is a partial update of the portal settings
type UpdateRequest struct {
	Enabled         *bool   `json:"enabled"`
	FriendlyURL     *string `json:"friendly_url" validate:"omitempty,max=63"`
	CustomDomain    *string `json:"custom_domain" validate:"omitempty,fqdn"`
	ContactEmail    *string `json:"contact_email" validate:"omitempty,email"`
	SOC2Enabled     *bool   `json:"soc2_enabled"`
	SOC2Status      *string `json:"soc2_status" validate:"omitempty,oneof=started in_progress compliant"`
	ISO27001Enabled *bool   `json:"iso27001_enabled"`
	ISO27001Status  *string `json:"iso27001_status" validate:"omitempty,oneof=started in_progress compliant"`
	GDPREnabled     *bool   `json:"gdpr_enabled"`
	GDPRStatus      *string `json:"gdpr_status" validate:"omitempty,oneof=started in_progress compliant"`
}

// Service handles trust portal settings and the public view
type Service struct {
	portals  repositories.TrustPortalRepository
	orgs     repositories.OrganizationRepository
	policies repositories.PolicyRepository
	cache    *ViewCache
	audit    audit.Recorder
	logger   *zap.Logger
}

// NewService creates a trust portal service
func NewService(repos *repositories.Repositories, cache *ViewCache, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		portals:  repos.TrustPortals,
		orgs:     repos.Organizations,
		policies: repos.Policies,
		cache:    cache,
		audit:    recorder,
		logger:   logger,
	}
}

// Get returns the portal settings; an organization that never saved any
// gets the disabled defaults
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*models.TrustPortal, error) {
	portal, err := s.portals.GetByOrgID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewTrustPortal(orgID), nil
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return portal, nil
}

// Update applies the settings and invalidates cached public views
func (s *Service) Update(ctx context.Context, orgID uuid.UUID, req UpdateRequest) (*models.TrustPortal, error) {
	portal, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		portal.Enabled = *req.Enabled
	}
	if req.FriendlyURL != nil {
		slug := strings.ToLower(strings.TrimSpace(*req.FriendlyURL))
		if slug == "" {
			portal.FriendlyURL = nil
		} else {
			if !friendlyURLPattern.MatchString(slug) {
				return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidSlug.Message, nil).
					WithDetail("friendly_url", *req.FriendlyURL)
			}
			portal.FriendlyURL = &slug
		}
	}
	if req.CustomDomain != nil {
		domain := strings.ToLower(strings.TrimSpace(*req.CustomDomain))
		if portal.CustomDomain == nil || *portal.CustomDomain != domain {
			portal.DomainVerified = false
		}
		if domain == "" {
			portal.CustomDomain = nil
		} else {
			portal.CustomDomain = &domain
		}
	}
	if req.ContactEmail != nil {
		portal.ContactEmail = *req.ContactEmail
	}
	setFramework(&portal.SOC2Enabled, &portal.SOC2Status, req.SOC2Enabled, req.SOC2Status)
	setFramework(&portal.ISO27001Enabled, &portal.ISO27001Status, req.ISO27001Enabled, req.ISO27001Status)
	setFramework(&portal.GDPREnabled, &portal.GDPRStatus, req.GDPREnabled, req.GDPRStatus)

	if portal.Enabled && portal.FriendlyURL == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "an enabled trust portal needs a friendly_url", nil)
	}

	portal.UpdatedAt = time.Now()
	if err := s.portals.Upsert(ctx, portal); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return nil, services.NewDomainError(services.ErrorTypeConflict, services.ErrFriendlyURLTaken.Message, nil).
				WithDetail("friendly_url", *portal.FriendlyURL)
		}
		s.logger.Error("failed to save trust portal",
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	s.cache.InvalidateOrg(orgID)
	s.audit.Record(ctx, orgID, models.AuditActionUpdated, resourceType, orgID, map[string]interface{}{
		"enabled":      portal.Enabled,
		"friendly_url": portal.FriendlyURL,
	})

	return portal, nil
}

// PublicView returns the read-only trust page of an enabled portal
func (s *Service) PublicView(ctx context.Context, friendlyURL string) (*models.PublicTrustView, error) {
	key := strings.ToLower(strings.TrimSpace(friendlyURL))
	if view := s.cache.Get(key); view != nil {
		return view, nil
	}

	portal, err := s.portals.GetByFriendlyURL(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTrustPortalNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	if !portal.Enabled {
		return nil, services.ErrTrustPortalNotFound
	}

	org, err := s.orgs.GetByID(ctx, portal.OrganizationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTrustPortalNotFound
		}
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	published, err := s.policies.ListByStatus(ctx, portal.OrganizationID, models.PolicyStatusPublished)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	view := &models.PublicTrustView{
		OrganizationName: org.Name,
		Website:          org.Website,
		ContactEmail:     portal.ContactEmail,
		Frameworks:       frameworks(portal),
		Policies:         make([]string, 0, len(published)),
	}
	for _, p := range published {
		view.Policies = append(view.Policies, p.Name)
	}

	s.cache.Set(key, portal.OrganizationID, view)
	return view, nil
}

func frameworks(p *models.TrustPortal) []models.PublicFramework {
	out := []models.PublicFramework{}
	if p.SOC2Enabled {
		out = append(out, models.PublicFramework{Name: "SOC 2", Status: p.SOC2Status})
	}
	if p.ISO27001Enabled {
		out = append(out, models.PublicFramework{Name: "ISO 27001", Status: p.ISO27001Status})
	}
	if p.GDPREnabled {
		out = append(out, models.PublicFramework{Name: "GDPR", Status: p.GDPRStatus})
	}
	return out
}

func setFramework(enabled *bool, status *models.FrameworkStatus, newEnabled *bool, newStatus *string) {
	if newEnabled != nil {
		*enabled = *newEnabled
	}
	if newStatus != nil {
		*status = models.FrameworkStatus(*newStatus)
	}
}
