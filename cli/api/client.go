package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a garden server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type LoginResponse struct {
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type HealthStatus struct {
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Services []struct {
		Name    string `json:"name"`
		Status  string `json:"status"`
		Details string `json:"details,omitempty"`
	} `json:"services"`
}

func (c *Client) Login(token, name string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(http.MethodPost, "/api/login", map[string]string{"token": token, "name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health() (*HealthStatus, error) {
	var h HealthStatus
	if err := c.do(http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Version() (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.do(http.MethodGet, "/api/version", nil, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *Client) ListServices() ([]Service, error) {
	var services []Service
	if err := c.do(http.MethodGet, "/api/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) CreateService(req CreateServiceRequest) (*Service, error) {
	var svc Service
	if err := c.do(http.MethodPost, "/api/services", req, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (c *Client) DeleteService(id string) error {
	return c.do(http.MethodDelete, "/api/services/"+id, nil, nil)
}

func (c *Client) StartConsole(req StartRequest) (*Snapshot, error) {
	return c.snapshot(http.MethodPost, "/api/console", req)
}

func (c *Client) GetConsole(id string) (*Snapshot, error) {
	return c.snapshot(http.MethodGet, "/api/console/"+id, nil)
}

func (c *Client) ListConsoles() ([]Snapshot, error) {
	var out []Snapshot
	if err := c.do(http.MethodGet, "/api/console", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Promote(id string) (*Snapshot, error) {
	return c.snapshot(http.MethodPost, "/api/console/"+id+"/promote", nil)
}

func (c *Client) Rollback(id string) (*Snapshot, error) {
	return c.snapshot(http.MethodPost, "/api/console/"+id+"/rollback", nil)
}

func (c *Client) StopConsole(id string) (*Snapshot, error) {
	return c.snapshot(http.MethodDelete, "/api/console/"+id, nil)
}

func (c *Client) ListHistory() ([]HistoryItem, error) {
	var items []HistoryItem
	if err := c.do(http.MethodGet, "/api/history", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) DeleteHistory(id string) error {
	return c.do(http.MethodDelete, "/api/history/"+id, nil, nil)
}

func (c *Client) ExportHistory() (*Export, error) {
	var out Export
	if err := c.do(http.MethodPost, "/api/history/export", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Journal returns the operator actions recorded for a deployment.
func (c *Client) Journal(id string) ([]JournalEntry, error) {
	var out []JournalEntry
	if err := c.do(http.MethodGet, "/api/history/"+url.PathEscape(id)+"/journal", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListExports() ([]ExportObject, error) {
	var out []ExportObject
	if err := c.do(http.MethodGet, "/api/history/exports", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetExport fetches the records of one stored snapshot by name.
func (c *Client) GetExport(name string) ([]HistoryItem, error) {
	var out []HistoryItem
	if err := c.do(http.MethodGet, "/api/history/exports/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListJobs() ([]Job, error) {
	var out []Job
	if err := c.do(http.MethodGet, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunJob runs a housekeeping job now and returns its updated state.
func (c *Client) RunJob(name string) (*Job, error) {
	var out Job
	if err := c.do(http.MethodPost, "/api/jobs/"+url.PathEscape(name)+"/run", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSettings() (*Settings, error) {
	var s Settings
	if err := c.do(http.MethodGet, "/api/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) PutSettings(s Settings) (*Settings, error) {
	var out Settings
	if err := c.do(http.MethodPut, "/api/settings", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WebSocketURL is the event stream address, optionally limited to topics
// such as "console" or "services".
func (c *Client) WebSocketURL(topics ...string) string {
	base := c.BaseURL
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	u := base + "/ws"
	if len(topics) > 0 {
		u += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	return u
}

// AuthHeader carries the session token for websocket dials.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

func (c *Client) snapshot(method, path string, in any) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(method, path, in, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
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
		b, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
