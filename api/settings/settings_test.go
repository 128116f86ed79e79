package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := st.Get(); got != Defaults() {
		t.Errorf("Get() = %+v, want defaults", got)
	}
}

func replace(s Settings) func(*Settings) error {
	return func(cur *Settings) error {
		*cur = s
		return nil
	}
}

func TestStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	st, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	want := Settings{BGM: false, Persona: "pirate", Language: "ja"}
	if got, err := st.Update(replace(want)); err != nil || got != want {
		t.Fatalf("Update = %+v, %v", got, err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Get(); got != want {
		t.Errorf("reopened = %+v, want %+v", got, want)
	}
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, _ := Open(path)

	_, err := st.Update(replace(Settings{Persona: "robot", Language: "en"}))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("invalid settings should not be written")
	}
	if st.Get() != Defaults() {
		t.Error("invalid settings should not replace current")
	}
}

func TestStore_ConcurrentPartialUpdates(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Update(func(s *Settings) error { s.Persona = "pirate"; return nil })
		}()
		go func() {
			defer wg.Done()
			st.Update(func(s *Settings) error { s.Language = "ja"; return nil })
		}()
	}
	wg.Wait()

	if got := st.Get(); got.Persona != "pirate" || got.Language != "ja" {
		t.Errorf("lost an update: %+v", got)
	}
}

func TestStore_UpdateCallbackError(t *testing.T) {
	st, _ := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	boom := errors.New("boom")
	got, err := st.Update(func(s *Settings) error {
		s.Persona = "pirate"
		return boom
	})
	if !errors.Is(err, boom) || got != Defaults() || st.Get() != Defaults() {
		t.Errorf("Update = %+v, %v; current %+v", got, err, st.Get())
	}
}

func TestOpen_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	os.WriteFile(path, []byte("persona: [nope"), 0o644)
	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSet(t *testing.T) {
	s := Defaults()
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"bgm", "false", false},
		{"persona", "Operator", false},
		{"lang", "ja", false},
		{"bgm", "loud", true},
		{"volume", "11", true},
		{"persona", "wizard", true},
	}
	for _, tt := range tests {
		err := s.Set(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%s, %s) err = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
		}
	}
	if s.BGM || s.Language != "ja" || s.Persona != "operator" {
		t.Errorf("settings = %+v", s)
	}
}

func TestAgentName(t *testing.T) {
	tests := map[string]string{"gardener": "AI Agent", "operator": "Operator", "pirate": "Captain"}
	for persona, want := range tests {
		if got := (Settings{Persona: persona}).AgentName(); got != want {
			t.Errorf("AgentName(%s) = %q, want %q", persona, got, want)
		}
	}
}
