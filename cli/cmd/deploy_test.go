package cmd

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"kubegarden/cli/api"
)

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snapshot(state api.SessionState) *api.Snapshot {
	steps := []api.StepState{api.StepDone, api.StepRunning, api.StepPending}
	switch state {
	case api.Success, api.Promoted:
		steps = []api.StepState{api.StepDone, api.StepDone, api.StepDone}
	case api.Failed:
		steps = []api.StepState{api.StepDone, api.StepFailed, api.StepPending}
	}
	timeline := make([]api.Step, len(steps))
	for i, name := range []string{"Test & Lint", "Sec Scan", "Canary 10%"} {
		timeline[i] = api.Step{Name: name, State: steps[i]}
	}
	return &api.Snapshot{
		ID:          "sess-1",
		ServiceName: "demo-api",
		State:       state,
		Timeline:    timeline,
		Logs:        []string{"AI Agent: Ready to deploy.", "User: Deploying demo-api with canary strategy."},
	}
}

func TestConsoleModel_Keys(t *testing.T) {
	tests := []struct {
		name      string
		state     api.SessionState
		key       string
		wantActed bool
	}{
		{"promote after success", api.Success, "p", true},
		{"rollback after success", api.Success, "r", true},
		{"rollback after failure", api.Failed, "r", true},
		{"no promote after failure", api.Failed, "p", false},
		{"no promote while running", api.Running, "p", false},
		{"unknown key", api.Success, "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newConsoleModel(api.StartRequest{ServiceID: "1", Strategy: "canary"}, false)
			m.snap = snapshot(tt.state)
			next, cmd := m.Update(key(tt.key))
			got := next.(consoleModel)
			if got.acting != tt.wantActed {
				t.Errorf("acting = %v, want %v", got.acting, tt.wantActed)
			}
			if (cmd != nil) != tt.wantActed {
				t.Errorf("cmd = %v, want one: %v", cmd != nil, tt.wantActed)
			}
		})
	}
}

func TestConsoleModel_SecondPromoteIgnored(t *testing.T) {
	m := newConsoleModel(api.StartRequest{ServiceID: "1"}, false)
	m.snap = snapshot(api.Success)
	next, _ := m.Update(key("p"))
	if _, cmd := next.Update(key("p")); cmd != nil {
		t.Error("promote while acting should be ignored")
	}
}

func TestConsoleModel_QuitsOnFinalStates(t *testing.T) {
	for _, state := range []api.SessionState{api.Promoted, api.RolledBack, api.Stopped} {
		m := newConsoleModel(api.StartRequest{ServiceID: "1"}, false)
		m.polling = true
		next, cmd := m.Update(consoleActed{snap: snapshot(state)})
		if cmd == nil {
			t.Fatalf("%s: expected quit", state)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.QuitMsg", state)
		}
		if next.(consoleModel).snap.State != state {
			t.Errorf("snapshot not stored for %s", state)
		}
	}
}

func TestConsoleModel_AutoPromote(t *testing.T) {
	m := newConsoleModel(api.StartRequest{ServiceID: "1"}, true)
	m.polling = true
	next, cmd := m.Update(consoleUpdate{snap: snapshot(api.Success)})
	if !next.(consoleModel).acting || cmd == nil {
		t.Error("expected an automatic promote once the canary is live")
	}
}

func TestConsoleModel_View(t *testing.T) {
	m := newConsoleModel(api.StartRequest{ServiceID: "1", Strategy: "canary", Environment: "production"}, false)
	if !strings.Contains(m.View(), "Contacting the garden") {
		t.Error("expected connecting line before the session starts")
	}

	m.snap = snapshot(api.Success)
	view := m.View()
	for _, want := range []string{"demo-api", "Canary 10%", "User: Deploying demo-api", "[p] promote"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.snap = snapshot(api.Failed)
	m.snap.Error = "unit tests failed"
	if view := m.View(); !strings.Contains(view, "unit tests failed") || strings.Contains(view, "[p] promote") {
		t.Errorf("failed view = %s", view)
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		flag, saved, want string
	}{
		{"", "", defaultURL},
		{"", "http://saved:8900/", "http://saved:8900"},
		{"http://flag:1", "http://saved:8900", "http://flag:1"},
		{"  ", "http://saved:8900", "http://saved:8900"},
	}
	for _, tt := range tests {
		if got := resolveURL(tt.flag, tt.saved); got != tt.want {
			t.Errorf("resolveURL(%q, %q) = %q, want %q", tt.flag, tt.saved, got, tt.want)
		}
	}
}
