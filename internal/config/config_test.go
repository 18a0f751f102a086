package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	originalGetConfigPath := GetConfigPath
	GetConfigPath = func() string { return configPath }
	defer func() { GetConfigPath = originalGetConfigPath }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ComputerID == "" {
		t.Error("expected a generated computer ID")
	}
	if cfg.StreamPort != 5902 {
		t.Errorf("expected default stream port 5902, got %d", cfg.StreamPort)
	}
	if cfg.HeartbeatInterval != 30 {
		t.Errorf("expected default heartbeat interval 30, got %d", cfg.HeartbeatInterval)
	}

	// Default should have been persisted
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected config file to exist after first Load: %v", err)
	}
}

func TestLoadPreservesIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	originalGetConfigPath := GetConfigPath
	GetConfigPath = func() string { return configPath }
	defer func() { GetConfigPath = originalGetConfigPath }()

	first, err := Load()
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}

	second, err := Load()
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	if first.ComputerID != second.ComputerID {
		t.Errorf("computer ID changed across loads: %q vs %q", first.ComputerID, second.ComputerID)
	}
}

func TestLoadFillsMissingDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	// A config written by an older version without the streaming fields
	old := `{"computer_id": "shop-pc-01", "server_url": "https://example.com/api"}`
	if err := os.WriteFile(configPath, []byte(old), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalGetConfigPath := GetConfigPath
	GetConfigPath = func() string { return configPath }
	defer func() { GetConfigPath = originalGetConfigPath }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ComputerID != "shop-pc-01" {
		t.Errorf("computer ID overwritten: %q", cfg.ComputerID)
	}
	if cfg.StreamPassword == "" || cfg.StreamFPS == 0 || cfg.ScreenshotInterval == 0 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	originalGetConfigPath := GetConfigPath
	GetConfigPath = func() string { return configPath }
	defer func() { GetConfigPath = originalGetConfigPath }()

	cfg := DefaultConfig()
	cfg.ServerURL = "https://a1tools.example.com/api/monitoring.php"
	cfg.ExcludedProcesses = []string{"a1tools", "notepad"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ServerURL != cfg.ServerURL {
		t.Errorf("server URL mismatch: %q", loaded.ServerURL)
	}
	if len(loaded.ExcludedProcesses) != 2 {
		t.Errorf("excluded processes not round-tripped: %v", loaded.ExcludedProcesses)
	}
}
