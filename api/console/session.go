// Package console runs deployment console sessions: start a deployment on
// the backend, follow it to a terminal status, then promote or roll back.
package console

import (
	"context"
	"sync"
	"time"

	"kubegarden/api/status"
)

type State string

const (
	Idle       State = "idle"
	Planning   State = "planning"
	Running    State = "running"
	Success    State = "success"
	Failed     State = "failed"
	Promoted   State = "promoted"
	RolledBack State = "rolledback"
	Stopped    State = "stopped"
)

// Active reports whether a session in s still follows its deployment.
func (s State) Active() bool {
	return s == Planning || s == Running
}

func (s State) phase() status.Phase {
	switch s {
	case Running:
		return status.Running
	case Success, Promoted, RolledBack:
		return status.Succeeded
	case Failed:
		return status.Failed
	}
	return status.Pending
}

const maxLogLines = 200

type StartRequest struct {
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	Environment string `json:"environment"`
	Strategy    string `json:"strategy"`
	Description string `json:"description"`
	Author      string `json:"-"`
}

// Snapshot is a point-in-time copy of a session for rendering.
type Snapshot struct {
	ID           string        `json:"id"`
	ServiceID    string        `json:"serviceId"`
	ServiceName  string        `json:"serviceName"`
	Environment  string        `json:"environment"`
	Strategy     string        `json:"strategy"`
	Description  string        `json:"description,omitempty"`
	Author       string        `json:"author"`
	DeploymentID string        `json:"deploymentId,omitempty"`
	State        State         `json:"state"`
	Status       string        `json:"status,omitempty"`
	Error        string        `json:"error,omitempty"`
	Timeline     []status.Step `json:"timeline,omitempty"`
	Logs         []string      `json:"logs"`
	StartedAt    time.Time     `json:"startedAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type Session struct {
	id    string
	req   StartRequest
	agent string

	mu           sync.Mutex
	state        State
	deploymentID string
	status       string
	err          string
	logs         []string
	startedAt    time.Time
	updatedAt    time.Time
	acting       bool

	// ctx scopes the follow goroutine; it is cancelled once following ends.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(id string, req StartRequest, agent string, now time.Time) *Session {
	return &Session{
		id:        id,
		req:       req,
		agent:     agent,
		state:     Idle,
		startedAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }


func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// logLocked appends a line attributed to speaker. Caller holds mu.
func (s *Session) logLocked(speaker, line string) string {
	entry := speaker + ": " + line
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogLines {
		s.logs = s.logs[len(s.logs)-maxLogLines:]
	}
	s.updatedAt = time.Now()
	return entry
}

func (s *Session) userLocked(line string) string  { return s.logLocked("User", line) }
func (s *Session) agentLocked(line string) string { return s.logLocked(s.agent, line) }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		ServiceID:    s.req.ServiceID,
		ServiceName:  s.req.ServiceName,
		Environment:  s.req.Environment,
		Strategy:     s.req.Strategy,
		Description:  s.req.Description,
		Author:       s.req.Author,
		DeploymentID: s.deploymentID,
		State:        s.state,
		Status:       s.status,
		Error:        s.err,
		Logs:         append([]string(nil), s.logs...),
		StartedAt:    s.startedAt,
		UpdatedAt:    s.updatedAt,
	}
	if s.state != Idle {
		snap.Timeline = status.Timeline(s.state.phase())
	}
	return snap
}
