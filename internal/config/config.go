package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bazaar configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`

	// Local state files. Relative paths resolve against Home.
	SessionFile string `yaml:"session_file"`
	OutboxFile  string `yaml:"outbox_file"`

	// Home is the state directory. Not persisted.
	Home string `yaml:"-"`
}

// BackendConfig points the client at the hosted backend project.
type BackendConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
	Timeout string `yaml:"timeout"`
}

// NotifyConfig bounds the seller-notification retry before an order is
// flagged degraded and the notice is queued in the outbox.
type NotifyConfig struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

var (
	ErrMissingURL     = errors.New("backend url not configured (set BAZAAR_URL or backend.url)")
	ErrMissingAnonKey = errors.New("backend anon key not configured (set BAZAAR_ANON_KEY or backend.anon_key)")
)

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// DefaultHome returns the state directory: $BAZAAR_HOME, else ~/.bazaar.
func DefaultHome() string {
	if h := os.Getenv("BAZAAR_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bazaar"
	}
	return filepath.Join(home, ".bazaar")
}

// DefaultPath returns the config file location inside the state directory.
func DefaultPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout: "30s",
		},
		Notify: NotifyConfig{
			Attempts: 3,
			Backoff:  "500ms",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "bazaar.log",
		},
		SessionFile: "session.json",
		OutboxFile:  "outbox.db",
		Home:        DefaultHome(),
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BAZAAR_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("BAZAAR_ANON_KEY"); v != "" {
		c.Backend.AnonKey = v
	}
	if v := os.Getenv("BAZAAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BAZAAR_HOME"); v != "" {
		c.Home = v
	}
}

// Validate checks that the backend can be reached and the log level is known.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return ErrMissingURL
	}
	if c.Backend.AnonKey == "" {
		return ErrMissingAnonKey
	}
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
}

// GetTimeout returns the backend request timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetNotifyBackoff returns the delay between notification attempts.
func (c *Config) GetNotifyBackoff() time.Duration {
	d, err := time.ParseDuration(c.Notify.Backoff)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetNotifyAttempts returns the number of notification attempts, at least one.
func (c *Config) GetNotifyAttempts() int {
	if c.Notify.Attempts < 1 {
		return 1
	}
	return c.Notify.Attempts
}

// SessionPath returns the absolute session file path.
func (c *Config) SessionPath() string { return c.resolve(c.SessionFile) }

// OutboxPath returns the absolute outbox database path.
func (c *Config) OutboxPath() string { return c.resolve(c.OutboxFile) }

// LogPath returns the absolute log file path.
func (c *Config) LogPath() string { return c.resolve(c.Logging.File) }

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}
