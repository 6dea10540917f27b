// Package config handles reading and writing ~/.ccbox/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/diskd-ai/ccbox/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml. Engine roots resolved
// from the environment take precedence over anything written here.
type Config struct {
	Version int         `yaml:"version"`
	Roots   RootsConfig `yaml:"roots"`
	Watch   WatchConfig `yaml:"watch"`
	Spawn   SpawnConfig `yaml:"spawn"`
}

// RootsConfig optionally pins engine source locations.
type RootsConfig struct {
	CodexSessions  string `yaml:"codex_sessions"`
	ClaudeProjects string `yaml:"claude_projects"`
	GeminiRoot     string `yaml:"gemini_root"`
	OpenCodeDB     string `yaml:"opencode_db"`
}

// WatchConfig holds refresh settings. They are stored and loaded but not
// read: the watcher debounce, the OpenCode poll interval and the online
// window use fixed values (250 ms, 2 s, 10 min).
type WatchConfig struct {
	DebounceMS         int `yaml:"debounce_ms"`
	OpenCodePollMS     int `yaml:"opencode_poll_ms"`
	OnlineWindowMinute int `yaml:"online_window_minutes"`
}

// SpawnConfig holds the defaults for the spawn form.
type SpawnConfig struct {
	Engine string `yaml:"engine"`  // codex | claude
	IOMode string `yaml:"io_mode"` // pipes | tty
}

const configFile = "config.yaml"

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			DebounceMS:         250,
			OpenCodePollMS:     2000,
			OnlineWindowMinute: 10,
		},
		Spawn: SpawnConfig{
			Engine: string(domain.EngineCodex),
			IOMode: string(domain.IOModePipes),
		},
	}
}

// Read loads config.yaml from the state dir. A missing file yields the
// defaults, not an error.
func Read(stateDir string) (*Config, error) {
	path := filepath.Join(stateDir, configFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Write stores cfg as config.yaml, creating the state dir if needed.
func Write(stateDir string, cfg *Config) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, configFile), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultSpawnEngine parses the configured spawn engine, falling back to
// Codex for anything unrecognized.
func (c *Config) DefaultSpawnEngine() domain.Engine {
	engine, err := domain.ParseEngine(c.Spawn.Engine)
	if err != nil || engine == "" {
		return domain.EngineCodex
	}
	return engine
}

// DefaultSpawnIOMode parses the configured spawn mode.
func (c *Config) DefaultSpawnIOMode() domain.SpawnIOMode {
	if c.Spawn.IOMode == string(domain.IOModeTty) {
		return domain.IOModeTty
	}
	return domain.IOModePipes
}
