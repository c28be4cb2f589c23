package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	// Target site layout
	Target TargetConfig `yaml:"target" json:"target"`

	// Operator and gate credentials
	Credentials Credentials `yaml:"credentials" json:"-"`

	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Session cache backend
	Session SessionConfig `yaml:"session" json:"session"`

	// Submission defaults
	Submission SubmissionConfig `yaml:"submission" json:"submission"`

	// Front door settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TargetConfig describes the third-party application.
type TargetConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	FormPath   string `yaml:"form_path" json:"form_path"`
	SubmitPath string `yaml:"submit_path" json:"submit_path"`

	// LoginPattern is a glob matched against the URL path after navigation;
	// a match means the session is stale.
	LoginPattern string `yaml:"login_pattern" json:"login_pattern"`

	// OpenFormSelector is clicked, when present, to render the entry form.
	OpenFormSelector string `yaml:"open_form_selector" json:"open_form_selector"`
}

// BrowserConfig configures the automation engine.
type BrowserConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Install  bool          `yaml:"install" json:"install"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Args     []string      `yaml:"args" json:"args"`
}

// SessionBackend selects where the session bundle is persisted.
type SessionBackend string

const (
	// SessionBackendFile stores the bundle in a local JSON file
	SessionBackendFile SessionBackend = "file"
	// SessionBackendRedis stores the bundle in redis
	SessionBackendRedis SessionBackend = "redis"
)

// SessionConfig configures the session cache.
type SessionConfig struct {
	Backend SessionBackend `yaml:"backend" json:"backend"`
	Path    string         `yaml:"path" json:"path"`
	Key     string         `yaml:"key" json:"key"`
	Redis   RedisConfig    `yaml:"redis" json:"redis"`
}

// RedisConfig holds the redis connection for the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"-"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// SubmissionConfig configures the transport.
type SubmissionConfig struct {
	DefaultHours float64       `yaml:"default_hours" json:"default_hours"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns the configuration for the time log site.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:          "https://wepro.rcvn.work",
			FormPath:         "/account/timelogs",
			SubmitPath:       "/account/timelogs/multi_store_simple",
			LoginPattern:     "/login*",
			OpenFormSelector: "a.btn.btn-primary.openRightModal",
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  30 * time.Second,
			Args:     []string{"--no-sandbox", "--disable-setuid-sandbox"},
		},
		Session: SessionConfig{
			Backend: SessionBackendFile,
			Key:     "default",
		},
		Submission: SubmissionConfig{
			DefaultHours: 0.1,
			Timeout:      30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":3000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of DefaultConfig. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// URL resolves a path against the target base URL.
func (t TargetConfig) URL(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid target base_url: %q", c.Target.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported target scheme: %s", u.Scheme)
	}
	if c.Target.FormPath == "" {
		return fmt.Errorf("target form_path is required")
	}
	if c.Target.SubmitPath == "" {
		return fmt.Errorf("target submit_path is required")
	}
	if c.Target.LoginPattern == "" {
		return fmt.Errorf("target login_pattern is required")
	}

	if err := c.Credentials.Validate(); err != nil {
		return err
	}

	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser timeout cannot be negative")
	}
	if c.Submission.Timeout < 0 {
		return fmt.Errorf("submission timeout cannot be negative")
	}
	if c.Submission.DefaultHours <= 0 {
		return fmt.Errorf("submission default_hours must be positive")
	}

	switch c.Session.Backend {
	case SessionBackendFile:
	case SessionBackendRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session redis addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be 'file' or 'redis')", c.Session.Backend)
	}
	if c.Session.Key == "" {
		return fmt.Errorf("session key is required")
	}

	return nil
}
