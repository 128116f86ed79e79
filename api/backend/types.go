package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ID is a resource identifier the backend may send as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Service struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	GithubRepo string `json:"githubRepo,omitempty"`
	Status     string `json:"status"`
	Version    string `json:"version"`
	Pods       int    `json:"pods"`
	LastDeploy string `json:"lastDeploy"`
}

type DeploymentRecord struct {
	ID          ID     `json:"id"`
	ServiceID   ID     `json:"serviceId"`
	ImageTag    string `json:"imageTag"`
	Status      string `json:"status"`
	Strategy    string `json:"strategy"`
	Environment string `json:"environment"`
	CreatedAt   string `json:"createdAt"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Request validation errors wrap one of these.
var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

var (
	Criticalities = []string{"low", "medium", "high"}
	Strategies    = []string{"canary", "blue-green", "rolling"}
)

type CreateServiceRequest struct {
	Name        string `json:"name"`
	GitURL      string `json:"gitUrl"`
	GitBranch   string `json:"gitBranch"`
	Namespace   string `json:"namespace"`
	Criticality string `json:"criticality"`
}

// Normalize trims fields, fills defaults and rejects incomplete requests.
// A GitHub shorthand "owner/repo" is expanded to its https URL.
func (r *CreateServiceRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.GitURL = strings.TrimSpace(r.GitURL)
	if r.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if r.GitURL == "" {
		return fmt.Errorf("%w: gitUrl", ErrMissingField)
	}
	r.GitURL = ExpandRepo(r.GitURL)
	r.GitBranch = defaultString(r.GitBranch, "main")
	r.Namespace = defaultString(r.Namespace, "default")
	r.Criticality = strings.ToLower(defaultString(r.Criticality, "medium"))
	if !contains(Criticalities, r.Criticality) {
		return fmt.Errorf("%w: criticality %q (want one of %s)", ErrInvalidField, r.Criticality, strings.Join(Criticalities, ", "))
	}
	return nil
}

type DeployRequest struct {
	ServiceID   string `json:"serviceId"`
	Environment string `json:"environment"`
	Description string `json:"description"`
	Strategy    string `json:"strategy,omitempty"`
}

func (r *DeployRequest) Normalize() error {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	if r.ServiceID == "" {
		return fmt.Errorf("%w: serviceId", ErrMissingField)
	}
	r.Environment = defaultString(r.Environment, "production")
	r.Strategy = strings.ToLower(defaultString(r.Strategy, "canary"))
	if !contains(Strategies, r.Strategy) {
		return fmt.Errorf("%w: strategy %q (want one of %s)", ErrInvalidField, r.Strategy, strings.Join(Strategies, ", "))
	}
	r.Description = strings.TrimSpace(r.Description)
	return nil
}

// ExpandRepo turns "owner/repo" into a GitHub URL and leaves full URLs alone.
func ExpandRepo(repo string) string {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		return repo
	}
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" && !strings.Contains(parts[0], ".") {
		return "https://github.com/" + parts[0] + "/" + parts[1]
	}
	if strings.HasPrefix(repo, "github.com/") {
		return "https://" + repo
	}
	return repo
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
