// Package fleet is a client for the Fleet device management API, limited to
// the label operations used to group an organization's devices.
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no Fleet URL or token is set
var ErrNotConfigured = errors.New("fleet: url and api token are required")

// APIError is a non-2xx response from Fleet
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Errors     []struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("fleet: %d %s: %s", e.StatusCode, e.Message, e.Errors[0].Reason)
	}
	return fmt.Sprintf("fleet: %d %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a Fleet 409
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Label is a dynamic host label
type Label struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Query       string `json:"query"`
	Platform    string `json:"platform"`
	LabelType   string `json:"label_type"`
	HostCount   int    `json:"host_count"`
}

// Host is a device enrolled in Fleet
type Host struct {
	ID             uint      `json:"id"`
	Hostname       string    `json:"hostname"`
	ComputerName   string    `json:"computer_name"`
	Platform       string    `json:"platform"`
	OSVersion      string    `json:"os_version"`
	HardwareSerial string    `json:"hardware_serial"`
	HardwareModel  string    `json:"hardware_model"`
	Status         string    `json:"status"`
	SeenTime       time.Time `json:"seen_time"`
}

// Client talks to the Fleet REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client from configuration
func New(cfg config.FleetConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Configured reports whether the client can make requests
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// ListLabels returns every label visible to the token
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var out struct {
		Labels []Label `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/fleet/labels", nil, &out); err != nil {
		return nil, err
	}
	return out.Labels, nil
}

// GetLabelByName finds a label by exact name
func (c *Client) GetLabelByName(ctx context.Context, name string) (*Label, error) {
	labels, err := c.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range labels {
		if labels[i].Name == name {
			return &labels[i], nil
		}
	}
	return nil, nil
}

// CreateLabel creates a dynamic label from an osquery query
func (c *Client) CreateLabel(ctx context.Context, name, description, query string) (*Label, error) {
	body := map[string]string{
		"name":        name,
		"description": description,
		"query":       query,
	}
	var out struct {
		Label Label `json:"label"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/fleet/labels", body, &out); err != nil {
		return nil, err
	}
	return &out.Label, nil
}

// EnsureLabel returns the named label, creating it when missing. The bool
// reports whether it was created.
func (c *Client) EnsureLabel(ctx context.Context, name, description, query string) (*Label, bool, error) {
	existing, err := c.GetLabelByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	label, err := c.CreateLabel(ctx, name, description, query)
	if IsConflict(err) {
		// created concurrently
		existing, err = c.GetLabelByName(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("fleet: label %s reported as existing but not found", name)
	}
	if err != nil {
		return nil, false, err
	}
	return label, true, nil
}

// ListLabelHosts returns the hosts in a label
func (c *Client) ListLabelHosts(ctx context.Context, labelID uint) ([]Host, error) {
	var out struct {
		Hosts []Host `json:"hosts"`
	}
	path := fmt.Sprintf("/api/v1/fleet/labels/%d/hosts", labelID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Hosts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("fleet: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("fleet: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fleet: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("fleet: failed to read response: %w", err)
	}

	c.logger.Debug("fleet request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fleet: failed to decode response: %w", err)
	}
	return nil
}
