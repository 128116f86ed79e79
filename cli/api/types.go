package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HTTPError is a non-2xx answer from the garden server.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an HTTPError with the given code.
func IsStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}

type Service struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GithubRepo string `json:"githubRepo,omitempty"`
	Status     string `json:"status"`
	Version    string `json:"version"`
	Pods       int    `json:"pods"`
	LastDeploy string `json:"lastDeploy"`
}

type CreateServiceRequest struct {
	Name        string `json:"name"`
	GitURL      string `json:"gitUrl"`
	GitBranch   string `json:"gitBranch,omitempty"`
	Namespace   string `json:"namespace,omitempty"`
	Criticality string `json:"criticality,omitempty"`
}

type DeploymentRecord struct {
	ID          string `json:"id"`
	ServiceID   string `json:"serviceId"`
	ImageTag    string `json:"imageTag"`
	Status      string `json:"status"`
	Strategy    string `json:"strategy"`
	Environment string `json:"environment"`
	CreatedAt   string `json:"createdAt"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

type HistoryItem struct {
	DeploymentRecord
	Phase      string `json:"phase"`
	Author     string `json:"author,omitempty"`
	Note       string `json:"note,omitempty"`
	LastAction string `json:"lastAction,omitempty"`
}

// JournalEntry is one operator action on a deployment.
type JournalEntry struct {
	Action    string    `json:"action"`
	Author    string    `json:"author"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

type Export struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Records int    `json:"records"`
}

// ExportObject is a stored history snapshot.
type ExportObject struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Job is a scheduled housekeeping job on the server.
type Job struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Next      time.Time `json:"next"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"lastRun"`
	LastError string    `json:"lastError,omitempty"`
}

// SessionState is where a console session is in its lifecycle.
type SessionState string

const (
	Idle       SessionState = "idle"
	Planning   SessionState = "planning"
	Running    SessionState = "running"
	Success    SessionState = "success"
	Failed     SessionState = "failed"
	Promoted   SessionState = "promoted"
	RolledBack SessionState = "rolledback"
	Stopped    SessionState = "stopped"
)

// Active reports whether the server is still following the deployment.
func (s SessionState) Active() bool {
	return s == Planning || s == Running
}

type StepState string

const (
	StepPending StepState = "pending"
	StepRunning StepState = "running"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

type Step struct {
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

type StartRequest struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName,omitempty"`
	Environment string `json:"environment,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	Description string `json:"description,omitempty"`
}

// Snapshot is the server's view of a console session.
type Snapshot struct {
	ID           string       `json:"id"`
	ServiceID    string       `json:"serviceId"`
	ServiceName  string       `json:"serviceName"`
	Environment  string       `json:"environment"`
	Strategy     string       `json:"strategy"`
	Description  string       `json:"description,omitempty"`
	Author       string       `json:"author"`
	DeploymentID string       `json:"deploymentId,omitempty"`
	State        SessionState `json:"state"`
	Status       string       `json:"status,omitempty"`
	Error        string       `json:"error,omitempty"`
	Timeline     []Step       `json:"timeline,omitempty"`
	Logs         []string     `json:"logs"`
	StartedAt    time.Time    `json:"startedAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

var (
	Personas  = []string{"gardener", "operator", "pirate"}
	Languages = []string{"en", "ja"}
)

// Settings are the operator's dashboard preferences.
type Settings struct {
	BGM      bool   `yaml:"bgm" json:"bgm"`
	Persona  string `yaml:"persona" json:"persona"`
	Language string `yaml:"language" json:"language"`
}

func DefaultSettings() Settings {
	return Settings{BGM: true, Persona: "gardener", Language: "en"}
}

func (s Settings) Validate() error {
	if !oneOf(Personas, s.Persona) {
		return fmt.Errorf("unknown persona %q (want one of %s)", s.Persona, strings.Join(Personas, ", "))
	}
	if !oneOf(Languages, s.Language) {
		return fmt.Errorf("unknown language %q (want one of %s)", s.Language, strings.Join(Languages, ", "))
	}
	return nil
}

// Set assigns one preference from its command-line spelling.
func (s *Settings) Set(key, value string) error {
	next := *s
	value = strings.ToLower(strings.TrimSpace(value))
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "bgm":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("bgm %q is not a boolean", value)
		}
		next.BGM = b
	case "persona":
		next.Persona = value
	case "language", "lang":
		next.Language = value
	default:
		return fmt.Errorf("unknown setting %q (bgm, persona, language)", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// AgentName is how the console agent signs its lines under this persona.
func (s Settings) AgentName() string {
	switch s.Persona {
	case "operator":
		return "Operator"
	case "pirate":
		return "Captain"
	}
	return "AI Agent"
}

func oneOf(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
