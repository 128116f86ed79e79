package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSettingsSet(t *testing.T) {
	tests := []struct {
		key, value string
		want       Settings
		wantErr    bool
	}{
		{"bgm", "false", Settings{BGM: false, Persona: "gardener", Language: "en"}, false},
		{"Persona", " Pirate ", Settings{BGM: true, Persona: "pirate", Language: "en"}, false},
		{"lang", "ja", Settings{BGM: true, Persona: "gardener", Language: "ja"}, false},
		{"persona", "wizard", DefaultSettings(), true},
		{"bgm", "loud", DefaultSettings(), true},
		{"volume", "3", DefaultSettings(), true},
	}
	for _, tt := range tests {
		s := DefaultSettings()
		err := s.Set(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q, %q) err = %v", tt.key, tt.value, err)
		}
		if s != tt.want {
			t.Errorf("Set(%q, %q) = %+v, want %+v", tt.key, tt.value, s, tt.want)
		}
	}
}

func TestSnapshotDecodesServerJSON(t *testing.T) {
	raw := `{"id":"s1","serviceId":"7","deploymentId":"42","state":"running","status":"BUILD_IN_PROGRESS",
		"timeline":[{"name":"Building","state":"done"},{"name":"Testing","state":"running"}],"logs":["AI Agent: go"]}`
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatal(err)
	}
	if !snap.State.Active() || snap.DeploymentID != "42" || len(snap.Timeline) != 2 || snap.Timeline[1].State != StepRunning {
		t.Errorf("snapshot = %+v", snap)
	}
	if Success.Active() || RolledBack.Active() {
		t.Error("final states must not be active")
	}
}

func TestIsStatus(t *testing.T) {
	err := error(&HTTPError{StatusCode: http.StatusServiceUnavailable, Body: "detached"})
	if !IsStatus(err, http.StatusServiceUnavailable) || IsStatus(err, http.StatusNotFound) {
		t.Errorf("IsStatus mismatch for %v", err)
	}
	if IsStatus(nil, http.StatusNotFound) {
		t.Error("nil error has no status")
	}
}
