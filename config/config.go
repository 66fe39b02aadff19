package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the node-side knobs of the execution core. Chain-governed
// economics live in genesis and governance state, not here.
type Config struct {
	DataDir        string `toml:"DataDir"`
	GenesisFile    string `toml:"GenesisFile"`
	NetworkName    string `toml:"NetworkName"`
	MetricsAddress string `toml:"MetricsAddress"`

	// ClearProfitsOnSettle resets the profit ledger after each settlement
	// pass. Off by default; see the governance service for the accounting
	// implications before enabling.
	ClearProfitsOnSettle bool `toml:"ClearProfitsOnSettle"`
}

// Load loads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./quoradata"
	}
	if strings.TrimSpace(cfg.GenesisFile) == "" {
		cfg.GenesisFile = "./genesis.json"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "quora-local"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9464"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory for %s: %w", path, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create default %s: %w", path, err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write default %s: %w", path, err)
	}
	return cfg, nil
}
