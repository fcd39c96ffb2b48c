package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the per-vault configuration stored under the system
// directory.
type Config struct {
	Review ReviewConfig `yaml:"review"`
	Sync   SyncConfig   `yaml:"sync"`
}

type ReviewConfig struct {
	MaxCards    int `yaml:"max_cards"`
	MaxNewCards int `yaml:"max_new_cards"`
}

type SyncConfig struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Review: ReviewConfig{
			MaxCards:    10,
			MaxNewCards: 2,
		},
	}
}

func configPath(vaultDir string) string {
	return filepath.Join(vaultDir, ".tensai", "config.yaml")
}

func loadConfig(vaultDir string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath(vaultDir))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Review.MaxCards <= 0 {
		cfg.Review.MaxCards = defaultConfig().Review.MaxCards
	}
	if cfg.Review.MaxNewCards < 0 {
		cfg.Review.MaxNewCards = defaultConfig().Review.MaxNewCards
	}
	return cfg, nil
}

func saveConfig(vaultDir string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	path := configPath(vaultDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
