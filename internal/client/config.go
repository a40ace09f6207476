package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credentials is a stored API token.
type Credentials struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        UserInfo  `json:"user"`
}

// Expired reports whether the token is past its expiry at now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Config is the CLI configuration file.
type Config struct {
	// Auths maps a server address to its credentials.
	Auths map[string]Credentials `json:"auths"`
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{Auths: make(map[string]Credentials)}
}

// ConfigStore reads and writes the configuration file under Dir.
type ConfigStore struct {
	Dir string
}

// DefaultConfigStore keeps the configuration in $HOME/.vitaeforge.
func DefaultConfigStore() ConfigStore {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return ConfigStore{Dir: filepath.Join(home, ".vitaeforge")}
}

func (s ConfigStore) path() (string, error) {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return filepath.Join(s.Dir, "config.json"), nil
}

// Load returns the stored configuration, or an empty one when none exists.
func (s ConfigStore) Load() (*Config, error) {
	p, err := s.path()
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Clean(p))
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	cfg := NewConfig()
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	if cfg.Auths == nil {
		cfg.Auths = make(map[string]Credentials)
	}
	return cfg, nil
}

// Save writes cfg with owner-only permissions.
func (s ConfigStore) Save(cfg *Config) error {
	p, err := s.path()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(filepath.Clean(p), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}
	return nil
}
