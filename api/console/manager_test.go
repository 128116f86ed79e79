package console

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"kubegarden/api/backend"
	"kubegarden/api/backend/backendtest"
	"kubegarden/api/hub"
	"kubegarden/api/store"
)

type recorder struct {
	mu     sync.Mutex
	events []hub.Event
}

func (r *recorder) Broadcast(evt hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type memJournal struct {
	mu      sync.Mutex
	entries []store.JournalEntry
}

func (j *memJournal) Append(ctx context.Context, e store.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) actions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestManager(t *testing.T, steps ...backendtest.Step) (*Manager, *backendtest.Server, *recorder, *memJournal) {
	t.Helper()
	srv := backendtest.New(t)
	srv.Script(steps...)
	ws := &recorder{}
	j := &memJournal{}
	m := NewManager(backend.New(srv.URL), ws, j, Options{
		PollInterval:    time.Millisecond,
		CompletionDelay: 10 * time.Millisecond,
	})
	t.Cleanup(m.Shutdown)
	return m, srv, ws, j
}

func waitDone(t *testing.T, m *Manager, id string) Snapshot {
	t.Helper()
	s, err := m.session(id)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not settle")
	}
	snap, err := m.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestStart_RejectsMissingService(t *testing.T) {
	m, srv, _, _ := newTestManager(t, backendtest.Step{Status: "SUCCESS"})
	_, err := m.Start(context.Background(), StartRequest{ServiceID: " "})
	if !errors.Is(err, backend.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if srv.Calls("POST", "/deploy") != 0 {
		t.Error("backend should not be called for an invalid request")
	}
}

func TestSession_BuildCompletedThenPromote(t *testing.T) {
	m, srv, ws, j := newTestManager(t,
		backendtest.Step{Status: "BUILD_TRIGGERED"},
		backendtest.Step{Status: "BUILD_COMPLETED"},
	)

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1", ServiceName: "demo-api", Author: "kim"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.State != Planning || snap.DeploymentID == "" {
		t.Fatalf("initial snapshot = %+v", snap)
	}
	if snap.Strategy != "canary" || snap.Environment != "production" {
		t.Errorf("defaults not applied: %+v", snap)
	}

	snap = waitDone(t, m, snap.ID)
	if snap.State != Success {
		t.Fatalf("state = %s, want success (logs: %v)", snap.State, snap.Logs)
	}
	for _, step := range snap.Timeline {
		if step.State != "done" {
			t.Errorf("timeline step %s = %s", step.Name, step.State)
		}
	}
	if !strings.Contains(snap.Logs[len(snap.Logs)-1], "Canary deployment live") {
		t.Errorf("last log = %q", snap.Logs[len(snap.Logs)-1])
	}
	if !strings.HasPrefix(snap.Logs[1], "User: Deploying demo-api with canary strategy.") {
		t.Errorf("user line = %q", snap.Logs[1])
	}

	snap, err = m.Promote(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if snap.State != Promoted {
		t.Errorf("state = %s, want promoted", snap.State)
	}
	if got := srv.Promoted(); len(got) != 1 || got[0] != snap.DeploymentID {
		t.Errorf("backend promoted = %v", got)
	}

	if _, err := m.Rollback(context.Background(), snap.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("rollback after promote err = %v, want ErrInvalidState", err)
	}

	want := []string{store.ActionStarted, store.ActionSucceeded, store.ActionPromoted}
	if got := j.actions(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("journal = %v, want %v", got, want)
	}
	if ws.count("console.state") == 0 || ws.count("console.log") == 0 {
		t.Error("expected console events to be broadcast")
	}
}

func TestSession_FailureThenRollback(t *testing.T) {
	m, srv, _, _ := newTestManager(t,
		backendtest.Step{Status: "BUILD_TRIGGERED"},
		backendtest.Step{Status: "BUILD_FAILED", Error: "unit tests failed"},
	)

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	snap = waitDone(t, m, snap.ID)
	if snap.State != Failed || snap.Error != "unit tests failed" {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, err := m.Promote(context.Background(), snap.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("promote after failure err = %v", err)
	}
	snap, err = m.Rollback(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if snap.State != RolledBack || len(srv.RolledBack()) != 1 {
		t.Errorf("state = %s, rolled back = %v", snap.State, srv.RolledBack())
	}
}

func TestSession_FollowReleasesContext(t *testing.T) {
	m, _, _, _ := newTestManager(t, backendtest.Step{Status: "BUILD_FAILED"})

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, m, snap.ID)
	s, err := m.session(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(s.ctx.Err(), context.Canceled) {
		t.Errorf("poll context after settle = %v, want canceled", s.ctx.Err())
	}
}

func TestSession_ServerErrorFailsVisibly(t *testing.T) {
	m, _, _, _ := newTestManager(t,
		backendtest.Step{Status: "BUILD_TRIGGERED"},
		backendtest.Step{Code: http.StatusBadGateway},
	)

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	snap = waitDone(t, m, snap.ID)
	if snap.State != Failed || !strings.Contains(snap.Error, "502") {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSession_BusyAndStop(t *testing.T) {
	m, _, _, _ := newTestManager(t, backendtest.Step{Status: "BUILD_IN_PROGRESS"})

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(context.Background(), StartRequest{ServiceID: "1"}); !errors.Is(err, ErrBusy) {
		t.Errorf("second start err = %v, want ErrBusy", err)
	}
	if _, err := m.Start(context.Background(), StartRequest{ServiceID: "2"}); err != nil {
		t.Errorf("other service start err = %v", err)
	}

	stopped, err := m.Stop(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.State != Stopped {
		t.Errorf("state = %s, want stopped", stopped.State)
	}
	if _, err := m.Start(context.Background(), StartRequest{ServiceID: "1"}); err != nil {
		t.Errorf("start after stop err = %v", err)
	}
}

func TestStart_BackendRejects(t *testing.T) {
	m, srv, _, _ := newTestManager(t)
	srv.Close()

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err == nil {
		t.Fatal("expected error when backend is unreachable")
	}
	if snap.State != Failed {
		t.Errorf("state = %s, want failed", snap.State)
	}
}

func TestEvict(t *testing.T) {
	m, _, _, _ := newTestManager(t, backendtest.Step{Status: "SUCCESS"})
	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, m, snap.ID)

	if n := m.Evict(time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("evicted %d fresh sessions", n)
	}
	if n := m.Evict(time.Now().Add(time.Second)); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if _, err := m.Get(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after evict err = %v", err)
	}
}

func TestAgentPersona(t *testing.T) {
	srv := backendtest.New(t)
	srv.Script(backendtest.Step{Status: "SUCCESS"})
	m := NewManager(backend.New(srv.URL), nil, nil, Options{
		PollInterval: time.Millisecond,
		Agent:        func() string { return "Captain" },
	})
	defer m.Shutdown()

	snap, err := m.Start(context.Background(), StartRequest{ServiceID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(snap.Logs[0], "Captain: ") {
		t.Errorf("first log = %q", snap.Logs[0])
	}
}
