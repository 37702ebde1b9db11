// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the server's runtime settings.
type Config struct {
	Addr                 string        `mapstructure:"ADDR"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	WebDir               string        `mapstructure:"WEB_DIR"`
	Timezone             string        `mapstructure:"TIMEZONE"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	ReportWindowDays     int           `mapstructure:"REPORT_WINDOW_DAYS"`
	SessionTTL           time.Duration `mapstructure:"SESSION_TTL"`
	SessionSweepSchedule string        `mapstructure:"SESSION_SWEEP_SCHEDULE"`
	LoginRateLimit       float64       `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateBurst       int           `mapstructure:"LOGIN_RATE_BURST"`
	TrustedProxy         bool          `mapstructure:"TRUSTED_PROXY"`
	OIDCIssuer           string        `mapstructure:"OIDC_ISSUER"`
	OIDCClientID         string        `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret     string        `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL      string        `mapstructure:"OIDC_REDIRECT_URL"`
}

var keys = []string{
	"ADDR", "ENV", "DATABASE_URL", "WEB_DIR", "TIMEZONE", "LOG_LEVEL",
	"REPORT_WINDOW_DAYS", "SESSION_TTL", "SESSION_SWEEP_SCHEDULE",
	"LOGIN_RATE_LIMIT", "LOGIN_RATE_BURST", "TRUSTED_PROXY",
	"OIDC_ISSUER", "OIDC_CLIENT_ID", "OIDC_CLIENT_SECRET", "OIDC_REDIRECT_URL",
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("WEB_DIR", "web")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REPORT_WINDOW_DAYS", 7)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("LOGIN_RATE_LIMIT", 1)
	v.SetDefault("LOGIN_RATE_BURST", 5)
	v.SetDefault("TRUSTED_PROXY", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDev reports whether ENV is development.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UseMemoryStore reports whether no database is configured.
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURL == ""
}

// Location resolves TIMEZONE. "Local" is the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

// SSOEnabled reports whether an OIDC issuer is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDCIssuer != ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR must not be empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.ReportWindowDays < 1 || c.ReportWindowDays > 366 {
		errs = append(errs, fmt.Errorf("REPORT_WINDOW_DAYS must be between 1 and 366, got %d", c.ReportWindowDays))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if _, err := cron.ParseStandard(c.SessionSweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("SESSION_SWEEP_SCHEDULE: %w", err))
	}
	if c.LoginRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %g", c.LoginRateLimit))
	}
	if c.LoginRateBurst < 1 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_BURST must be at least 1, got %d", c.LoginRateBurst))
	}
	if c.SSOEnabled() && (c.OIDCClientID == "" || c.OIDCRedirectURL == "") {
		errs = append(errs, errors.New("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER is set"))
	}
	return errors.Join(errs...)
}
