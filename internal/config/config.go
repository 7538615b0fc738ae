// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // FITPANEL_TIMEZONE must resolve in scratch containers

	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

const envPrefix = "FITPANEL_"

// ProviderConfig is one provider's OAuth application registration and API
// location. A provider is only wired when Configured reports true.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	LookbackDays int
}

// Configured reports whether enough is set to talk to the provider.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.BaseURL != "" && p.TokenURL != ""
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath            string
	ListenAddr        string
	SecretKey         []byte
	RefreshSchedule   string
	Location          *time.Location
	LogLevel          slog.Level
	LogFormat         string
	DerivedWebhookURL string
	ProviderRateLimit float64
	Providers         map[model.ProviderID]ProviderConfig
}

// HasSecretKey reports whether credential encryption is available. Without
// it the app starts, but provider tokens can neither be stored nor read.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == 32
}

// Load reads configuration from environment variables and returns a validated Config.
// Optional variables with defaults: FITPANEL_DB_PATH (fitpanel.db),
// FITPANEL_LISTEN_ADDR (127.0.0.1:8080), FITPANEL_REFRESH_SCHEDULE (@hourly),
// FITPANEL_TIMEZONE (Local), FITPANEL_LOG_LEVEL (info), FITPANEL_LOG_FORMAT (text),
// FITPANEL_PROVIDER_RATE_LIMIT (5 requests/second).
// FITPANEL_SECRET_KEY, when set, must be 64 hex characters (32 bytes).
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:            envOr("DB_PATH", "fitpanel.db"),
		ListenAddr:        envOr("LISTEN_ADDR", "127.0.0.1:8080"),
		RefreshSchedule:   envOr("REFRESH_SCHEDULE", "@hourly"),
		LogFormat:         strings.ToLower(envOr("LOG_FORMAT", "text")),
		DerivedWebhookURL: os.Getenv(envPrefix + "DERIVED_WEBHOOK_URL"),
		ProviderRateLimit: 5,
		Providers:         make(map[model.ProviderID]ProviderConfig, len(model.AllProviders)),
	}

	var errs []error

	if v, ok := lookup("SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("FITPANEL_SECRET_KEY is not valid hex: %w", err))
		case len(key) != 32:
			errs = append(errs, fmt.Errorf("FITPANEL_SECRET_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key)))
		default:
			cfg.SecretKey = key
		}
	}

	if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
		errs = append(errs, fmt.Errorf("FITPANEL_REFRESH_SCHEDULE has invalid cron spec %q: %w", cfg.RefreshSchedule, err))
	}

	cfg.Location = time.Local
	if v, ok := lookup("TIMEZONE"); ok && v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FITPANEL_TIMEZONE has unknown zone %q: %w", v, err))
		} else {
			cfg.Location = loc
		}
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("FITPANEL_LOG_LEVEL: %w", err))
		}
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("FITPANEL_LOG_FORMAT must be text or json, got %q", cfg.LogFormat))
	}

	if v, ok := lookup("PROVIDER_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			errs = append(errs, fmt.Errorf("FITPANEL_PROVIDER_RATE_LIMIT must be a non-negative number, got %q", v))
		} else {
			cfg.ProviderRateLimit = rps
		}
	}

	for _, id := range model.AllProviders {
		pc, err := loadProvider(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cfg.Providers[id] = pc
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadProvider(id model.ProviderID) (ProviderConfig, error) {
	prefix := strings.ToUpper(string(id)) + "_"

	pc := ProviderConfig{
		ClientID:     os.Getenv(envPrefix + prefix + "CLIENT_ID"),
		ClientSecret: os.Getenv(envPrefix + prefix + "CLIENT_SECRET"),
		RedirectURL:  os.Getenv(envPrefix + prefix + "REDIRECT_URL"),
		BaseURL:      os.Getenv(envPrefix + prefix + "BASE_URL"),
		AuthURL:      os.Getenv(envPrefix + prefix + "AUTH_URL"),
		TokenURL:     os.Getenv(envPrefix + prefix + "TOKEN_URL"),
		Scopes:       splitList(os.Getenv(envPrefix + prefix + "SCOPES")),
		LookbackDays: 7,
	}

	key := envPrefix + prefix + "LOOKBACK_DAYS"
	if v, ok := os.LookupEnv(key); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ProviderConfig{}, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
		}
		pc.LookbackDays = n
	}
	return pc, nil
}

func lookup(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}

func envOr(name, fallback string) string {
	if v, ok := lookup(name); ok && v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma or space separated list, dropping empty items.
func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	if fields == nil {
		return []string{}
	}
	return fields
}
