// Package config handles resolving configuration: file defaults overlaid
// with the settings rows persisted in the store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Routes are the paths the auth endpoints are served under. The reset path is
// recognized for configuration completeness; no reset flow is implemented.
type Routes struct {
	Login    string `yaml:"login"`
	Logout   string `yaml:"logout"`
	Register string `yaml:"register"`
	Reset    string `yaml:"reset"`
	User     string `yaml:"user"`
}

// Config is the process configuration.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	DevMode    bool   `yaml:"dev_mode"`
	WebAddress string `yaml:"web_address"`
	DBFilepath string `yaml:"db_filepath"`

	CookieKey         string   `yaml:"cookie_key"`
	CookieSecret      string   `yaml:"cookie_secret"`
	AllowRegistration bool     `yaml:"registration"`
	SessionWindow     Duration `yaml:"session_window"`

	Routes Routes `yaml:"routes"`
}

// Default returns a version of the config with all default values populated.
// Note that this configuration is _not_ valid, as the user must set
// cookie_secret.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		WebAddress: "localhost:9999",
		DBFilepath: filepath.Join(xdg.DataHome, "yaap", "db.sqlite"),

		CookieKey:     "yaap",
		CookieSecret:  "", // must be set by the user
		SessionWindow: Duration(3 * time.Hour),

		Routes: Routes{
			Login:    "/login/",
			Logout:   "/logout/",
			Register: "/register/",
			Reset:    "/reset/",
			User:     "/user/",
		},
	}
}

// Load loads a YAML configuration file from a path, merges it with defaults,
// and validates it for completeness.
func Load(path string) (*Config, error) {
	bytes, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for completeness.
func (c *Config) Validate() error {
	if c.CookieSecret == "" {
		return fmt.Errorf("cookie_secret must be set")
	}
	if c.DBFilepath == "" {
		return fmt.Errorf("db_filepath must be set")
	}
	if c.SessionWindow <= 0 {
		return fmt.Errorf("session_window must be positive")
	}
	return nil
}

// ApplySettings overlays persisted settings rows onto the config. Unknown
// keys are ignored here; the store enforces its allow-list on write.
func (c *Config) ApplySettings(settings map[string]string) {
	for key, value := range settings {
		switch key {
		case "registration":
			allowed, err := strconv.ParseBool(value)
			c.AllowRegistration = err == nil && allowed
		case "session_window":
			if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
				c.SessionWindow = Duration(parsed)
			}
		case "cookie_key":
			c.CookieKey = value
		case "cookie_secret":
			c.CookieSecret = value
		case "login_path":
			c.Routes.Login = value
		case "logout_path":
			c.Routes.Logout = value
		case "register_path":
			c.Routes.Register = value
		case "reset_path":
			c.Routes.Reset = value
		case "user_path":
			c.Routes.User = value
		}
	}
}

// Duration is a [time.Duration] that unmarshals from YAML duration strings
// such as "3h" or "90m".
type Duration time.Duration

// Std returns the duration as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML satisfies [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML satisfies [yaml.Marshaler].
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
