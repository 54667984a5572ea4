package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/waddle-social/app/internal/chat"
)

// Config represents the global ~/.waddle/config.toml.
type Config struct {
	DefaultSession string        `toml:"default_session"`
	JID            string        `toml:"jid"`
	UI             chat.UiConfig `toml:"ui"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		UI: chat.UiConfig{
			Notifications: true,
			Theme:         "system",
			Locale:        "en",
			ThemeName:     "dark",
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default on any error.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
