// Package config loads gateway settings from an optional YAML file with
// ORION_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Khaledaun/orion-console/internal/auth"
)

// Duration accepts Go duration strings ("30s", "1m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// RateLimit configures the fixed-window limiter.
type RateLimit struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Config is the full gateway configuration.
type Config struct {
	ListenAddr         string    `yaml:"listen_addr"`
	SessionSecret      string    `yaml:"session_secret"`
	AuditHashKey       string    `yaml:"audit_hash_key"`
	PostgresDSN        string    `yaml:"postgres_dsn"`
	RedisURL           string    `yaml:"redis_url"`
	RateLimit          RateLimit `yaml:"rate_limit"`
	DegradedRolePolicy string    `yaml:"degraded_role_policy"`
}

// Default returns the safe baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		RateLimit:          RateLimit{Requests: 60, Window: Duration(time.Minute)},
		DegradedRolePolicy: "viewer",
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ORION_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ORION_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("ORION_AUDIT_HASH_KEY"); v != "" {
		cfg.AuditHashKey = v
	}
	if v := os.Getenv("ORION_PG_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("ORION_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("ORION_RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("ORION_RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.Window = Duration(d)
		}
	}
	if v := os.Getenv("ORION_DEGRADED_ROLE_POLICY"); v != "" {
		cfg.DegradedRolePolicy = v
	}
}

func (c Config) validate() error {
	if c.RateLimit.Requests <= 0 {
		return errors.New("config: rate_limit.requests must be greater than zero")
	}
	if time.Duration(c.RateLimit.Window) <= 0 {
		return errors.New("config: rate_limit.window must be greater than zero")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy maps the configured degraded-role policy name onto the resolver's
// enum.
func (c Config) Policy() (auth.DegradedRolePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(c.DegradedRolePolicy)) {
	case "", "viewer":
		return auth.DegradeToViewer, nil
	case "fail_closed":
		return auth.FailClosed, nil
	default:
		return 0, fmt.Errorf("config: unsupported degraded_role_policy %q", c.DegradedRolePolicy)
	}
}
