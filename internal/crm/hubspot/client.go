// Package hubspot is a minimal HubSpot CRM v3 client covering the contact
// and company sync performed when organizations sign up.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.hubapi.com"

// ErrNotFound is returned when HubSpot answers 404
var ErrNotFound = errors.New("hubspot: object not found")

// APIError is a non-2xx response from HubSpot
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: %d %s: %s", e.StatusCode, e.Category, e.Message)
}

// Contact is a CRM contact
type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Company is a CRM company
type Company struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// AccountDetails is returned by the account info endpoint
type AccountDetails struct {
	PortalID        int64  `json:"portalId"`
	AccountType     string `json:"accountType"`
	TimeZone        string `json:"timeZone"`
	CompanyCurrency string `json:"companyCurrency"`
}

// Client talks to the HubSpot REST API with a private app token
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client from configuration
func New(cfg config.HubSpotConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithToken returns a copy of the client using another access token, for
// organizations that connect their own HubSpot account
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Configured reports whether the client has a token
func (c *Client) Configured() bool {
	return c.token != ""
}

// AccountDetails fetches the portal details; used to test a connection
func (c *Client) AccountDetails(ctx context.Context) (*AccountDetails, error) {
	var out AccountDetails
	if err := c.do(ctx, http.MethodGet, "/account-info/v3/details", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContactByEmail looks a contact up by its email property
func (c *Client) GetContactByEmail(ctx context.Context, email string) (*Contact, error) {
	path := "/crm/v3/objects/contacts/" + url.PathEscape(email) + "?idProperty=email&properties=email,firstname,lastname"
	var out Contact
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateContact creates a contact with the given properties
func (c *Client) CreateContact(ctx context.Context, properties map[string]string) (*Contact, error) {
	var out Contact
	body := map[string]interface{}{"properties": properties}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindOrCreateContact returns the contact for email, creating it when missing
func (c *Client) FindOrCreateContact(ctx context.Context, email, firstName, lastName string) (*Contact, bool, error) {
	existing, err := c.GetContactByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	created, err := c.CreateContact(ctx, map[string]string{
		"email":     email,
		"firstname": firstName,
		"lastname":  lastName,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type companySearchResponse struct {
	Total   int       `json:"total"`
	Results []Company `json:"results"`
}

// FindCompanyByDomain searches companies by their domain property
func (c *Client) FindCompanyByDomain(ctx context.Context, domain string) (*Company, error) {
	req := searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{{PropertyName: "domain", Operator: "EQ", Value: domain}}}},
		Properties:   []string{"name", "domain"},
		Limit:        1,
	}
	var out companySearchResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/companies/search", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrNotFound
	}
	return &out.Results[0], nil
}

// CreateCompany creates a company
func (c *Client) CreateCompany(ctx context.Context, name, domain string) (*Company, error) {
	var out Company
	body := map[string]interface{}{"properties": map[string]string{"name": name, "domain": domain}}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/companies", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindOrCreateCompany returns the company for domain, creating it when missing
func (c *Client) FindOrCreateCompany(ctx context.Context, name, domain string) (*Company, bool, error) {
	existing, err := c.FindCompanyByDomain(ctx, domain)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	created, err := c.CreateCompany(ctx, name, domain)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// AssociateContactWithCompany creates the default contact to company association
func (c *Client) AssociateContactWithCompany(ctx context.Context, contactID, companyID string) error {
	path := fmt.Sprintf("/crm/v4/objects/contacts/%s/associations/default/companies/%s",
		url.PathEscape(contactID), url.PathEscape(companyID))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.token == "" {
		return fmt.Errorf("hubspot: access token is not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("hubspot: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("hubspot: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("hubspot request",
		zap.String("method", method),
		zap.String("path", strings.SplitN(path, "?", 2)[0]),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("hubspot: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("hubspot: failed to decode response: %w", err)
	}
	return nil
}
