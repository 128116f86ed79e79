package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kubegarden/api/backend"
	"kubegarden/api/hub"
	"kubegarden/api/logger"
	"kubegarden/api/poller"
	"kubegarden/api/status"
	"kubegarden/api/store"
)

var (
	ErrNotFound     = errors.New("console session not found")
	ErrBusy         = errors.New("a deployment is already in progress for this service")
	ErrInvalidState = errors.New("action not allowed in current state")
)

type Backend interface {
	Deploy(ctx context.Context, req backend.DeployRequest) (*backend.DeploymentRecord, error)
	GetDeployment(ctx context.Context, id string) (*backend.DeploymentRecord, error)
	Promote(ctx context.Context, id string) error
	Rollback(ctx context.Context, id string) error
}

type Broadcaster interface {
	Broadcast(evt hub.Event)
}

type Journal interface {
	Append(ctx context.Context, e store.JournalEntry) error
}

type Options struct {
	PollInterval    time.Duration
	CompletionDelay time.Duration
	// MaxAttempts bounds polls per deployment; 0 polls until stopped.
	MaxAttempts int
	// Agent names the console agent in log lines; defaults to "AI Agent".
	Agent func() string
}

// Manager owns every console session of the server.
type Manager struct {
	backend Backend
	ws      Broadcaster
	journal Journal
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager. ws and journal may be nil.
func NewManager(b Backend, ws Broadcaster, journal Journal, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		backend:  b,
		ws:       ws,
		journal:  journal,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) agent() string {
	if m.opts.Agent != nil {
		if a := m.opts.Agent(); a != "" {
			return a
		}
	}
	return "AI Agent"
}

// Start opens a session, asks the backend to deploy and follows the
// deployment in the background.
func (m *Manager) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	dreq := backend.DeployRequest{
		ServiceID:   req.ServiceID,
		Environment: req.Environment,
		Description: req.Description,
		Strategy:    req.Strategy,
	}
	if err := dreq.Normalize(); err != nil {
		return Snapshot{}, err
	}
	req.ServiceID, req.Environment, req.Strategy, req.Description = dreq.ServiceID, dreq.Environment, dreq.Strategy, dreq.Description
	if req.ServiceName == "" {
		req.ServiceName = req.ServiceID
	}

	s := newSession(uuid.NewString(), req, m.agent(), time.Now())
	pctx, cancel := context.WithCancel(m.ctx)
	s.ctx, s.cancel = pctx, cancel

	m.mu.Lock()
	for _, other := range m.sessions {
		if other.req.ServiceID == req.ServiceID && other.State().Active() {
			m.mu.Unlock()
			cancel()
			return Snapshot{}, ErrBusy
		}
	}
	m.sessions[s.id] = s
	s.mu.Lock()
	s.state = Planning
	m.mu.Unlock()

	m.publishLog(s, s.agentLocked("Ready to deploy. Describe your changes."))
	m.publishLog(s, s.userLocked(fmt.Sprintf("Deploying %s with %s strategy.", req.ServiceName, req.Strategy)))
	m.publishLog(s, s.agentLocked("Analyzing... Generating deployment plan."))
	s.mu.Unlock()

	rec, err := m.backend.Deploy(ctx, dreq)
	if err != nil {
		s.mu.Lock()
		cancel()
		s.state = Failed
		s.err = err.Error()
		m.publishLog(s, s.agentLocked("Could not start the deployment: "+err.Error()))
		close(s.done)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		m.publishState(snap)
		return snap, fmt.Errorf("start deployment: %w", err)
	}

	s.mu.Lock()
	s.deploymentID = string(rec.ID)
	s.status = rec.Status
	m.publishLog(s, s.agentLocked("Plan approved. Starting pipeline..."))
	snap := s.snapshotLocked()
	s.mu.Unlock()
	m.publishState(snap)

	m.record(s, store.ActionStarted, req.Description)

	m.wg.Add(1)
	go m.follow(pctx, s)
	return snap, nil
}

func (m *Manager) follow(ctx context.Context, s *Session) {
	defer m.wg.Done()
	defer close(s.done)
	defer s.cancel()
	log := logger.GetLogger().With(zap.String("session", s.id), zap.String("deployment", s.deploymentID))

	p := &poller.Poller{
		Backend:         m.backend,
		Interval:        m.opts.PollInterval,
		CompletionDelay: m.opts.CompletionDelay,
		MaxAttempts:     m.opts.MaxAttempts,
		OnUpdate:        func(u poller.Update) { m.observe(s, u) },
	}
	res, err := p.Wait(ctx, s.deploymentID)

	s.mu.Lock()
	switch {
	case err != nil && ctx.Err() != nil:
		s.state = Stopped
		m.publishLog(s, s.agentLocked("Stopped following the deployment."))
	case err != nil:
		s.state = Failed
		s.err = err.Error()
		m.publishLog(s, s.agentLocked("Lost track of the deployment: "+err.Error()))
		log.Warn("console: poll failed", zap.Error(err))
	case res.Phase == status.Failed:
		s.state = Failed
		s.err = res.Record.Error
		if s.err == "" {
			s.err = res.Record.Status
		}
		m.publishLog(s, s.agentLocked("Deployment failed. You can roll back to the stable version."))
	default:
		s.state = Success
		m.publishLog(s, s.agentLocked("Canary deployment live. Traffic split 10% (new) / 90% (stable). Promotion recommended."))
	}
	state := s.state
	snap := s.snapshotLocked()
	s.mu.Unlock()
	m.publishState(snap)

	switch state {
	case Success:
		m.record(s, store.ActionSucceeded, "")
	case Failed:
		m.record(s, store.ActionFailed, snap.Error)
	}
	log.Info("console: session settled", zap.String("state", string(state)))
}

func (m *Manager) observe(s *Session, u poller.Update) {
	s.mu.Lock()
	s.status = u.Record.Status
	if s.state == Planning && u.Phase == status.Running {
		s.state = Running
	}
	m.publishLog(s, s.agentLocked(u.Message))
	snap := s.snapshotLocked()
	s.mu.Unlock()
	m.publishState(snap)
}

// Promote shifts all traffic to a successful canary.
func (m *Manager) Promote(ctx context.Context, id string) (Snapshot, error) {
	return m.finish(ctx, id, transition{
		from:   []State{Success},
		to:     Promoted,
		user:   "Confirmed. Promoting to 100%.",
		done:   "Traffic split updated (100% new). Deployment finalized.",
		call:   m.backend.Promote,
		action: store.ActionPromoted,
	})
}

// Rollback reverts traffic to the stable version.
func (m *Manager) Rollback(ctx context.Context, id string) (Snapshot, error) {
	return m.finish(ctx, id, transition{
		from:   []State{Success, Failed},
		to:     RolledBack,
		user:   "Rollback requested.",
		done:   "Reverting traffic to stable version... Done.",
		call:   m.backend.Rollback,
		action: store.ActionRolledBack,
	})
}

type transition struct {
	from       []State
	to         State
	user, done string
	call       func(context.Context, string) error
	action     string
}

func (m *Manager) finish(ctx context.Context, id string, t transition) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	allowed := false
	for _, st := range t.from {
		if s.state == st {
			allowed = true
		}
	}
	if !allowed || s.deploymentID == "" || s.acting {
		state := s.state
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s from %s", ErrInvalidState, t.to, state)
	}
	s.acting = true
	m.publishLog(s, s.userLocked(t.user))
	depID := s.deploymentID
	s.mu.Unlock()

	if err := t.call(ctx, depID); err != nil {
		s.mu.Lock()
		s.acting = false
		m.publishLog(s, s.agentLocked("Request failed: "+err.Error()))
		snap := s.snapshotLocked()
		s.mu.Unlock()
		m.publishState(snap)
		return snap, err
	}

	s.mu.Lock()
	s.acting = false
	s.state = t.to
	m.publishLog(s, s.agentLocked(t.done))
	snap := s.snapshotLocked()
	s.mu.Unlock()
	m.publishState(snap)

	m.record(s, t.action, "")
	return snap, nil
}

// Stop cancels the session's polling. The deployment itself keeps going
// on the backend.
func (m *Manager) Stop(id string) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.cancel()
	<-s.done
	return s.Snapshot(), nil
}

func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// List returns all sessions, most recent first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Evict forgets sessions that are no longer active and were last updated
// before the cutoff.
func (m *Manager) Evict(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := !s.state.Active() && s.updatedAt.Before(olderThan)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Shutdown stops every session and waits for their pollers to exit.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) record(s *Session, action, note string) {
	if m.journal == nil {
		return
	}
	s.mu.Lock()
	e := store.JournalEntry{
		DeploymentID: s.deploymentID,
		ServiceID:    s.req.ServiceID,
		Action:       action,
		Author:       s.req.Author,
		Note:         note,
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.journal.Append(ctx, e); err != nil {
		logger.GetLogger().Warn("console: journal append", zap.String("action", action), zap.Error(err))
	}
}

func (m *Manager) publishLog(s *Session, line string) {
	if m.ws == nil {
		return
	}
	m.ws.Broadcast(hub.Event{Type: "console.log", Session: s.id, Payload: map[string]string{"line": line}})
}

func (m *Manager) publishState(snap Snapshot) {
	if m.ws == nil {
		return
	}
	m.ws.Broadcast(hub.Event{Type: "console.state", Session: snap.ID, Payload: snap})
}
