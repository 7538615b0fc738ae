package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

const testSecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// isolateConfigEnv saves and unsets every FITPANEL_ env var so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, orig, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		t.Cleanup(func() { os.Setenv(key, orig) })
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FITPANEL_DB_PATH", "/data/fitpanel.db")
	t.Setenv("FITPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("FITPANEL_SECRET_KEY", testSecretKey)
	t.Setenv("FITPANEL_REFRESH_SCHEDULE", "*/30 * * * *")
	t.Setenv("FITPANEL_TIMEZONE", "Europe/Berlin")
	t.Setenv("FITPANEL_LOG_LEVEL", "debug")
	t.Setenv("FITPANEL_LOG_FORMAT", "JSON")
	t.Setenv("FITPANEL_DERIVED_WEBHOOK_URL", "http://derived:8000/hooks/refresh")
	t.Setenv("FITPANEL_PROVIDER_RATE_LIMIT", "2.5")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/data/fitpanel.db", cfg.DBPath)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.True(t, cfg.HasSecretKey())
	assert.Equal(t, byte(0x1f), cfg.SecretKey[31])
	assert.Equal(t, "*/30 * * * *", cfg.RefreshSchedule)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "http://derived:8000/hooks/refresh", cfg.DerivedWebhookURL)
	assert.InDelta(t, 2.5, cfg.ProviderRateLimit, 0)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "fitpanel.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "@hourly", cfg.RefreshSchedule)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.DerivedWebhookURL)
	assert.InDelta(t, 5, cfg.ProviderRateLimit, 0)
	assert.False(t, cfg.HasSecretKey())

	require.Len(t, cfg.Providers, len(model.AllProviders))
	for id, pc := range cfg.Providers {
		assert.False(t, pc.Configured(), id)
		assert.Equal(t, 7, pc.LookbackDays, id)
		assert.Empty(t, pc.Scopes, id)
	}
}

func TestLoad_Provider(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FITPANEL_READINESS_CLIENT_ID", "ring-client")
	t.Setenv("FITPANEL_READINESS_CLIENT_SECRET", "ring-secret")
	t.Setenv("FITPANEL_READINESS_BASE_URL", "https://api.ring.example")
	t.Setenv("FITPANEL_READINESS_AUTH_URL", "https://cloud.ring.example/oauth/authorize")
	t.Setenv("FITPANEL_READINESS_TOKEN_URL", "https://api.ring.example/oauth/token")
	t.Setenv("FITPANEL_READINESS_REDIRECT_URL", "http://localhost:8080/api/v1/providers/readiness/callback")
	t.Setenv("FITPANEL_READINESS_SCOPES", "daily, heartrate personal")
	t.Setenv("FITPANEL_READINESS_LOOKBACK_DAYS", "3")
	t.Setenv("FITPANEL_BODYCOMP_CLIENT_ID", "scale-client")

	cfg, err := Load()

	require.NoError(t, err)
	r := cfg.Providers[model.ProviderReadiness]
	assert.True(t, r.Configured())
	assert.Equal(t, "ring-client", r.ClientID)
	assert.Equal(t, "ring-secret", r.ClientSecret)
	assert.Equal(t, []string{"daily", "heartrate", "personal"}, r.Scopes)
	assert.Equal(t, 3, r.LookbackDays)

	assert.False(t, cfg.Providers[model.ProviderBodyComposition].Configured(), "client id alone is not enough")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "secret key not hex", key: "FITPANEL_SECRET_KEY", value: "not-hex", wantErr: "FITPANEL_SECRET_KEY is not valid hex"},
		{name: "secret key too short", key: "FITPANEL_SECRET_KEY", value: "abcd", wantErr: "got 2 bytes"},
		{name: "bad schedule", key: "FITPANEL_REFRESH_SCHEDULE", value: "every hour", wantErr: "FITPANEL_REFRESH_SCHEDULE"},
		{name: "bad timezone", key: "FITPANEL_TIMEZONE", value: "Mars/Olympus", wantErr: "FITPANEL_TIMEZONE"},
		{name: "bad log level", key: "FITPANEL_LOG_LEVEL", value: "verbose", wantErr: "FITPANEL_LOG_LEVEL"},
		{name: "bad log format", key: "FITPANEL_LOG_FORMAT", value: "xml", wantErr: "FITPANEL_LOG_FORMAT"},
		{name: "negative rate limit", key: "FITPANEL_PROVIDER_RATE_LIMIT", value: "-1", wantErr: "FITPANEL_PROVIDER_RATE_LIMIT"},
		{name: "bad lookback", key: "FITPANEL_STRENGTH_LOOKBACK_DAYS", value: "a week", wantErr: "FITPANEL_STRENGTH_LOOKBACK_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FITPANEL_LOG_FORMAT", "xml")
	t.Setenv("FITPANEL_TIMEZONE", "Nowhere/Land")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "FITPANEL_LOG_FORMAT")
	assert.Contains(t, err.Error(), "FITPANEL_TIMEZONE")
}
