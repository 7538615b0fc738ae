package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/adapter/driven/metrics"
	"github.com/ericfisherdev/fitpanel/internal/adapter/driven/oauth"
	"github.com/ericfisherdev/fitpanel/internal/adapter/driven/provider"
	sqliteadapter "github.com/ericfisherdev/fitpanel/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/fitpanel/internal/adapter/driven/workflow"
	httphandler "github.com/ericfisherdev/fitpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/config"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

const (
	providerTimeout = 60 * time.Second
	tokenTimeout    = 30 * time.Second
	webhookTimeout  = 15 * time.Second
)

// app is the wired object graph shared by the subcommands.
type app struct {
	db          *sqliteadapter.DB
	athletes    driven.AthleteStore
	datasets    driven.DatasetStore
	credentials driven.CredentialStore
	registry    *application.ProviderRegistry
	refresh     *application.RefreshService
	health      *application.HealthService
	recorder    *metrics.Recorder
}

// openApp opens the database, applies migrations and wires every adapter.
// Providers missing configuration are left out of the registry.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("migrations complete", "version", version)

	if !cfg.HasSecretKey() {
		slog.Warn("FITPANEL_SECRET_KEY not set, provider credentials cannot be stored or read")
	}

	athletes := sqliteadapter.NewAthleteRepo(db)
	ledger := sqliteadapter.NewLedgerRepo(db)
	datasets := sqliteadapter.NewDatasetRepo(db)
	credentials := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	providerHTTP := provider.NewHTTPClient(cfg.ProviderRateLimit, providerTimeout)
	tokenHTTP := &http.Client{Timeout: tokenTimeout}

	var clients []*application.ProviderClient
	for _, id := range model.AllProviders {
		pc := cfg.Providers[id]
		if !pc.Configured() {
			slog.Debug("provider not configured", "provider", id)
			continue
		}

		session := oauth.NewSession(id, oauth.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			AuthURL:      pc.AuthURL,
			TokenURL:     pc.TokenURL,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
		}, credentials, tokenHTTP)

		api, err := newProviderAPI(id, providerHTTP, pc.BaseURL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		clients = append(clients, application.NewProviderClient(api, session, datasets, pc.LookbackDays))
		slog.Debug("provider wired", "provider", id, "lookback_days", pc.LookbackDays)
	}

	registry := application.NewProviderRegistry(clients...)
	recorder := metrics.NewRecorder()
	webhook := workflow.NewWebhook(cfg.DerivedWebhookURL, &http.Client{Timeout: webhookTimeout})

	return &app{
		db:          db,
		athletes:    athletes,
		datasets:    datasets,
		credentials: credentials,
		registry:    registry,
		refresh: application.NewRefreshService(
			ledger, athletes, datasets, webhook, recorder, cfg.Location, registry.Pullers()...,
		),
		health:   application.NewHealthService(registry, datasets),
		recorder: recorder,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// connector adapts the registry to the HTTP adapter's lookup.
func (a *app) connector(id model.ProviderID) (httphandler.Connector, bool) {
	c, ok := a.registry.Get(id)
	if !ok {
		return nil, false
	}
	return c, true
}

func newProviderAPI(id model.ProviderID, httpClient *http.Client, baseURL string) (driven.ProviderAPI, error) {
	switch id {
	case model.ProviderActivity:
		return provider.NewActivity(httpClient, baseURL), nil
	case model.ProviderReadiness:
		return provider.NewReadiness(httpClient, baseURL), nil
	case model.ProviderBodyComposition:
		return provider.NewBodyComposition(httpClient, baseURL), nil
	case model.ProviderStrength:
		return provider.NewStrength(httpClient, baseURL), nil
	default:
		return nil, fmt.Errorf("no adapter for provider %q", id)
	}
}
