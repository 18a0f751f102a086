package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// Config holds the monitoring agent configuration
type Config struct {
	ComputerID         string   `json:"computer_id"`
	Username           string   `json:"username"`
	ServerURL          string   `json:"server_url"`
	ScreenshotInterval int      `json:"screenshot_interval"` // minutes
	HeartbeatInterval  int      `json:"heartbeat_interval"`  // seconds
	StreamPort         int      `json:"stream_port"`
	StreamPassword     string   `json:"stream_password"`
	StreamFPS          int      `json:"stream_fps"`
	StreamQuality      int      `json:"stream_quality"` // JPEG quality 1-100
	ExcludedProcesses  []string `json:"excluded_processes"`
}

// GetConfigPath returns the platform-specific config path. Declared as a
// variable so tests can point it at a temporary directory.
var GetConfigPath = func() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "A1Tools", "config.json")
	case "darwin":
		return "/Library/Application Support/A1Tools/config.json"
	default: // linux
		return "/etc/a1tools/config.json"
	}
}

// GetLogPath returns the platform-specific log directory
func GetLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "A1Tools", "logs")
	case "darwin":
		return "/Library/Logs/A1Tools"
	default:
		return "/var/log/a1tools"
	}
}

// DefaultConfig returns a config with default values. The computer ID is
// generated once and persisted so the server sees a stable identity.
func DefaultConfig() *Config {
	return &Config{
		ComputerID:         uuid.New().String(),
		ScreenshotInterval: 5,
		HeartbeatInterval:  30,
		StreamPort:         5902,
		StreamPassword:     "a1stream",
		StreamFPS:          2,
		StreamQuality:      60,
	}
}

// Load reads the configuration from disk, creating a default one on first run
func Load() (*Config, error) {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills zero-valued fields on configs written by older versions
func (c *Config) applyDefaults() {
	if c.ComputerID == "" {
		c.ComputerID = uuid.New().String()
	}
	if c.ScreenshotInterval <= 0 {
		c.ScreenshotInterval = 5
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30
	}
	if c.StreamPort <= 0 {
		c.StreamPort = 5902
	}
	if c.StreamPassword == "" {
		c.StreamPassword = "a1stream"
	}
	if c.StreamFPS <= 0 {
		c.StreamFPS = 2
	}
	if c.StreamQuality <= 0 || c.StreamQuality > 100 {
		c.StreamQuality = 60
	}
}

// Save writes the configuration to disk
func (c *Config) Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
