package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./quoradata" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.MetricsAddress != "127.0.0.1:9464" {
		t.Fatalf("expected default metrics address, got %q", cfg.MetricsAddress)
	}
	if cfg.ClearProfitsOnSettle {
		t.Fatalf("expected profit clearing off by default")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}

	// A second load reads the file written by the first.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("expected identical config on reload: %+v vs %+v", again, cfg)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "DataDir = \"/var/lib/quora\"\nClearProfitsOnSettle = true\n"
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/quora" {
		t.Fatalf("expected explicit data dir to survive, got %q", cfg.DataDir)
	}
	if !cfg.ClearProfitsOnSettle {
		t.Fatalf("expected profit clearing enabled")
	}
	if cfg.GenesisFile != "./genesis.json" {
		t.Fatalf("expected defaulted genesis file, got %q", cfg.GenesisFile)
	}
	if cfg.NetworkName != "quora-local" {
		t.Fatalf("expected defaulted network name, got %q", cfg.NetworkName)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("DataDir = [broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected malformed file to be rejected")
	}
}
