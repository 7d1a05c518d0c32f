package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvRemoteURL    = "READERKIT_REMOTE_URL"
	EnvRemoteAPIKey = "READERKIT_REMOTE_API_KEY"
	EnvLocalPath    = "READERKIT_LOCAL_PATH"
	EnvLogMode      = "READERKIT_LOG_MODE"
)

// RemoteConfig locates the remote backend. Empty URL means local mode.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"` // per remote call
}

// LocalConfig locates the on-device key-space.
type LocalConfig struct {
	Path     string `yaml:"path"`     // SQLite file
	IndexDir string `yaml:"indexDir"` // persisted HNSW indexes
}

// SyncConfig bounds replay retries.
type SyncConfig struct {
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
	MaxAttempts    int           `yaml:"maxAttempts"`
}

type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	ANNThreshold int `yaml:"annThreshold"`
}

type LogConfig struct {
	Mode string `yaml:"mode"` // dev | prod
}

// Config is the root of config.yaml.
type Config struct {
	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
	Sync   SyncConfig   `yaml:"sync"`
	Search SearchConfig `yaml:"search"`
	Log    LogConfig    `yaml:"log"`
}

// Dir returns ~/.readerkit, or .readerkit when no home directory is known.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".readerkit"
	}
	return filepath.Join(home, ".readerkit")
}

// DefaultPath is the config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		Remote: RemoteConfig{Timeout: 10 * time.Second},
		Local: LocalConfig{
			Path:     filepath.Join(dir, "readerkit.db"),
			IndexDir: filepath.Join(dir, "indexes"),
		},
		Sync: SyncConfig{
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     5 * time.Minute,
			MaxAttempts:    5,
		},
		Search: SearchConfig{DefaultLimit: 5, ANNThreshold: 512},
		Log:    LogConfig{Mode: "dev"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvRemoteURL)); v != "" {
		c.Remote.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvRemoteAPIKey)); v != "" {
		c.Remote.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvLocalPath)); v != "" {
		c.Local.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvLogMode)); v != "" {
		c.Log.Mode = v
	}
}

// Validate rejects values the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Remote.Timeout < 0:
		return fmt.Errorf("remote.timeout must not be negative")
	case c.Sync.InitialBackoff <= 0:
		return fmt.Errorf("sync.initialBackoff must be positive")
	case c.Sync.MaxBackoff < c.Sync.InitialBackoff:
		return fmt.Errorf("sync.maxBackoff must be at least sync.initialBackoff")
	case c.Sync.MaxAttempts < 1:
		return fmt.Errorf("sync.maxAttempts must be at least 1")
	case c.Search.DefaultLimit < 1:
		return fmt.Errorf("search.defaultLimit must be at least 1")
	}
	return nil
}

// Save writes c to path, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
