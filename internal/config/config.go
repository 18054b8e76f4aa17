// Package config loads settings from ~/.stride.yaml with environment
// overrides. A missing file is not an error; every field has a usable
// default.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileName = ".stride.yaml"

// Config holds the settings the CLI needs.
type Config struct {
	// DBPath is the SQLite database file. Defaults to ~/.stride/tasks.db.
	DBPath string `yaml:"db_path"`

	// Model overrides the default Anthropic model.
	Model string `yaml:"model"`

	// APIKey is the Anthropic API key. ANTHROPIC_API_KEY takes precedence.
	APIKey string `yaml:"api_key"`

	// NoAI disables the translator entirely; only the local parser runs.
	NoAI bool `yaml:"no_ai"`
}

// Load reads the config file from the user's home directory and applies
// environment overrides (STRIDE_DB, STRIDE_MODEL, ANTHROPIC_API_KEY,
// STRIDE_NO_AI).
func Load() (Config, error) {
	var cfg Config

	path, err := defaultPath()
	if err == nil {
		data, readErr := os.ReadFile(path)
		switch {
		case readErr == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(readErr):
			return Config{}, fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// Save writes the config back to ~/.stride.yaml.
func Save(cfg Config) error {
	path, err := defaultPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STRIDE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STRIDE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("STRIDE_NO_AI"); v != "" && v != "0" && v != "false" {
		cfg.NoAI = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			cfg.DBPath = "tasks.db"
			return
		}
		cfg.DBPath = filepath.Join(home, ".stride", "tasks.db")
	}
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, fileName), nil
}
