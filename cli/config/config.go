// Package config stores the CLI's server address, session token and
// preferences in a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kubegarden/cli/api"
)

type Config struct {
	APIURL   string       `yaml:"api_url,omitempty"`
	Token    string       `yaml:"token,omitempty"`
	Name     string       `yaml:"name,omitempty"`
	Settings api.Settings `yaml:"settings"`
}

// Path is $GARDEN_CONFIG or ~/.config/kube-garden/config.yaml.
func Path() string {
	if p := os.Getenv("GARDEN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "kube-garden", "config.yaml")
}

// Load reads path. A missing file yields an empty config with default
// settings.
func Load(path string) (*Config, error) {
	cfg := &Config{Settings: api.DefaultSettings()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config readable only by the current user, since it
// holds a session token.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}
