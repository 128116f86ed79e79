// Package settings holds operator preferences for the dashboard.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid setting")

var (
	Personas  = []string{"gardener", "operator", "pirate"}
	Languages = []string{"en", "ja"}
)

type Settings struct {
	BGM      bool   `yaml:"bgm" json:"bgm"`
	Persona  string `yaml:"persona" json:"persona"`
	Language string `yaml:"language" json:"language"`
}

func Defaults() Settings {
	return Settings{BGM: true, Persona: "gardener", Language: "en"}
}

func (s Settings) Validate() error {
	if !oneOf(Personas, s.Persona) {
		return fmt.Errorf("%w: persona %q (want one of %s)", ErrInvalid, s.Persona, strings.Join(Personas, ", "))
	}
	if !oneOf(Languages, s.Language) {
		return fmt.Errorf("%w: language %q (want one of %s)", ErrInvalid, s.Language, strings.Join(Languages, ", "))
	}
	return nil
}

// Set assigns one preference by key, as typed on a command line.
func (s *Settings) Set(key, value string) error {
	next := *s
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "bgm":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: bgm %q is not a boolean", ErrInvalid, value)
		}
		next.BGM = b
	case "persona":
		next.Persona = strings.ToLower(value)
	case "language", "lang":
		next.Language = strings.ToLower(value)
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// AgentName is how the console agent signs its log lines.
func (s Settings) AgentName() string {
	switch s.Persona {
	case "operator":
		return "Operator"
	case "pirate":
		return "Captain"
	}
	return "AI Agent"
}

// Store persists settings as YAML.
type Store struct {
	path string
	mu   sync.RWMutex
	cur  Settings
}

// Open loads path, starting from defaults when the file does not exist.
func Open(path string) (*Store, error) {
	st := &Store{path: path, cur: Defaults()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &st.cur); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := st.cur.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return st, nil
}

func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Update applies fn to a copy of the current settings, then validates and
// saves the result. Concurrent updates are serialized.
func (st *Store) Update(fn func(*Settings) error) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.cur
	if err := fn(&next); err != nil {
		return st.cur, err
	}
	if err := next.Validate(); err != nil {
		return st.cur, err
	}
	if err := write(st.path, next); err != nil {
		return st.cur, err
	}
	st.cur = next
	return next, nil
}

func write(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, path)
}

func oneOf(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
