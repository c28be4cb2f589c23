package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv.
const (
	EnvHost         = "WEPRO_HOST"
	EnvOperatorUser = "WEPRO_USER"
	EnvOperatorPass = "WEPRO_PW"
	EnvGateUser     = "BASIC_AUTH_USER"
	EnvGatePass     = "BASIC_AUTH_PW"
	EnvHeadless     = "HEADLESS"
	EnvPort         = "PORT"
	EnvConfigPath   = "TIMELOG_CONFIG"
	EnvRedisAddr    = "TIMELOG_REDIS_ADDR"
)

// BasicCredential is a username/password pair.
type BasicCredential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Empty reports whether neither field is set.
func (c BasicCredential) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// Header returns the value of an Authorization header for basic auth.
func (c BasicCredential) Header() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// Credentials holds the operator login and the access gate in front of
// the whole site.
type Credentials struct {
	Operator BasicCredential `yaml:"operator"`
	Gate     BasicCredential `yaml:"gate"`
}

// Validate requires an operator login. The gate is optional.
func (c Credentials) Validate() error {
	if c.Operator.Username == "" || c.Operator.Password == "" {
		return fmt.Errorf("operator credentials are required (%s, %s)", EnvOperatorUser, EnvOperatorPass)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values with environment variables.
// A nil lookup uses os.LookupEnv.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(EnvHost, &c.Target.BaseURL)
	if c.Target.BaseURL != "" && !strings.Contains(c.Target.BaseURL, "://") {
		c.Target.BaseURL = "https://" + c.Target.BaseURL
	}

	set(EnvOperatorUser, &c.Credentials.Operator.Username)
	set(EnvOperatorPass, &c.Credentials.Operator.Password)
	set(EnvGateUser, &c.Credentials.Gate.Username)
	set(EnvGatePass, &c.Credentials.Gate.Password)
	set(EnvRedisAddr, &c.Session.Redis.Addr)

	if v, ok := lookup(EnvHeadless); ok && v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvHeadless, v, err)
		}
		c.Browser.Headless = headless
	}

	if v, ok := lookup(EnvPort); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvPort, v, err)
		}
		c.Server.Addr = ":" + v
	}

	return nil
}

// Resolve loads the configuration the binaries run with: the YAML file at
// path, or at $TIMELOG_CONFIG when path is empty, with the environment
// applied on top.
func Resolve(path string, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if path == "" {
		path, _ = lookup(EnvConfigPath)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}
