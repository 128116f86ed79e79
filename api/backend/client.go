package backend

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
)

// ErrNotConfigured is returned when the garden runs without a backend.
var ErrNotConfigured = errors.New("deployment backend not configured")

// HTTPError is a non-2xx answer from the deployment backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func IsServerError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode >= 500
}

// Client talks to the deployment backend's REST contract.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var services []Service
	if err := c.do(ctx, http.MethodGet, "/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// CreateService registers a new service. The returned service is nil when
// the backend answers without a body.
func (c *Client) CreateService(ctx context.Context, req CreateServiceRequest) (*Service, error) {
	var svc Service
	if err := c.do(ctx, http.MethodPost, "/services", req, &svc); err != nil {
		return nil, err
	}
	if svc.ID == "" && svc.Name == "" {
		return nil, nil
	}
	return &svc, nil
}

func (c *Client) DeleteService(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/services/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListDeployments(ctx context.Context) ([]DeploymentRecord, error) {
	var records []DeploymentRecord
	if err := c.do(ctx, http.MethodGet, "/deployments", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) DeleteDeployment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/deploy/"+url.PathEscape(id), nil, nil)
}

// Deploy starts a deployment and returns the backend's record for it.
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (*DeploymentRecord, error) {
	var resp struct {
		DeploymentRecord
		DeploymentID ID `json:"deploymentId"`
	}
	if err := c.do(ctx, http.MethodPost, "/deploy", req, &resp); err != nil {
		return nil, err
	}
	rec := resp.DeploymentRecord
	if rec.ID == "" {
		rec.ID = resp.DeploymentID
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("deploy: backend returned no deployment id")
	}
	if rec.ServiceID == "" {
		rec.ServiceID = ID(req.ServiceID)
	}
	if rec.Environment == "" {
		rec.Environment = req.Environment
	}
	if rec.Strategy == "" {
		rec.Strategy = req.Strategy
	}
	return &rec, nil
}

func (c *Client) GetDeployment(ctx context.Context, id string) (*DeploymentRecord, error) {
	var rec DeploymentRecord
	if err := c.do(ctx, http.MethodGet, "/deploy/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = ID(id)
	}
	return &rec, nil
}

// Promote shifts all traffic to the canary.
func (c *Client) Promote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/deploy/"+url.PathEscape(id)+"/promote", struct{}{}, nil)
}

// Rollback reverts traffic to the stable version.
func (c *Client) Rollback(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/deploy/"+url.PathEscape(id)+"/rollback", struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
