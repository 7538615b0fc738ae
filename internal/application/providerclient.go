// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// PullOptions carries the athlete context a pull needs for annotating samples.
type PullOptions struct {
	RestingHeartRate int
	MaxHeartRate     int
}

// PullResult describes what one provider pull stored. Empty is set when the
// provider returned nothing for the window and storage was left untouched.
type PullResult struct {
	Provider    model.ProviderID
	Empty       bool
	Rows        int
	WindowStart time.Time
}

// Puller is the part of a provider client the refresh run drives.
type Puller interface {
	ID() model.ProviderID
	HasCredentials(ctx context.Context) (bool, error)
	Pull(ctx context.Context, opts PullOptions) (PullResult, error)
}

var _ Puller = (*ProviderClient)(nil)

// ProviderClient binds one provider's remote API, OAuth session and local
// tables into a single incremental pull.
type ProviderClient struct {
	id           model.ProviderID
	api          driven.ProviderAPI
	auth         driven.Authenticator
	store        driven.DatasetStore
	lookbackDays int
	now          func() time.Time
}

// NewProviderClient creates a ProviderClient. lookbackDays is how far before
// the newest stored record each pull starts re-fetching.
func NewProviderClient(
	api driven.ProviderAPI,
	auth driven.Authenticator,
	store driven.DatasetStore,
	lookbackDays int,
) *ProviderClient {
	return &ProviderClient{
		id:           api.Provider(),
		api:          api,
		auth:         auth,
		store:        store,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// ID returns the provider this client serves.
func (c *ProviderClient) ID() model.ProviderID { return c.id }

// HasCredentials reports whether a readable token is stored.
func (c *ProviderClient) HasCredentials(ctx context.Context) (bool, error) {
	ts, err := c.auth.LoadToken(ctx)
	if err != nil {
		return false, err
	}
	return ts != nil, nil
}

// IsConnected probes the provider with the stored token. Any failure,
// including a panic in the adapter, reports false.
func (c *ProviderClient) IsConnected(ctx context.Context) (connected bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("provider probe panicked", "provider", c.id, "panic", r)
			connected = false
		}
	}()

	ok, err := c.HasCredentials(ctx)
	if err != nil || !ok {
		return false
	}

	if err := c.call(ctx, func(tok model.AccessToken) error {
		return c.api.Probe(ctx, tok)
	}); err != nil {
		slog.Info("provider not connected", "provider", c.id, "error", err)
		return false
	}
	return true
}

// Pull fetches the provider's window and replaces the stored rows from the
// window start onward in one transaction.
func (c *ProviderClient) Pull(ctx context.Context, opts PullOptions) (PullResult, error) {
	hwm, hasData, err := c.store.HighWaterMark(ctx, c.id)
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", c.id, err)
	}

	start := model.WindowStart(hwm, hasData, c.lookbackDays)
	window := model.Window{Start: start, End: c.now().UTC()}
	result := PullResult{Provider: c.id, WindowStart: start}

	var ds model.Dataset
	err = c.call(ctx, func(tok model.AccessToken) error {
		var fetchErr error
		ds, fetchErr = c.api.Fetch(ctx, tok, window)
		return fetchErr
	})
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", c.id, err)
	}

	if ds.IsEmpty() {
		slog.Info("provider returned no new data", "provider", c.id, "window_start", start)
		result.Empty = true
		return result, nil
	}

	ds.Provider = c.id
	annotateZones(ds.ActivitySamples, opts)

	if err := c.store.ReplaceWindow(ctx, c.id, start, ds); err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", c.id, err)
	}

	result.Rows = ds.Len()
	slog.Info("provider pulled",
		"provider", c.id,
		"window_start", start,
		"rows", result.Rows,
	)
	return result, nil
}

// ConnectLink returns the consent URL that starts the OAuth flow.
func (c *ProviderClient) ConnectLink(state string) string {
	return c.auth.AuthCodeURL(state)
}

// Exchange completes the OAuth flow with the code from the redirect.
func (c *ProviderClient) Exchange(ctx context.Context, code string) error {
	return c.auth.Exchange(ctx, code)
}

// SaveToken stores a token set obtained out of band.
func (c *ProviderClient) SaveToken(ctx context.Context, ts model.TokenSet) error {
	return c.auth.SaveToken(ctx, ts)
}

// LoadToken returns the stored token set, or nil when none is readable.
func (c *ProviderClient) LoadToken(ctx context.Context) (*model.TokenSet, error) {
	return c.auth.LoadToken(ctx)
}

// call runs fn with a valid access token. When the provider reports an
// expired session the token is refreshed and fn is retried exactly once.
func (c *ProviderClient) call(ctx context.Context, fn func(model.AccessToken) error) error {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}

	err = fn(tok)
	if !errors.Is(err, driven.ErrSessionExpired) {
		return err
	}

	slog.Info("provider session expired, refreshing token", "provider", c.id)
	tok, err = c.auth.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refreshing expired session: %w", err)
	}
	return fn(tok)
}

func annotateZones(samples []model.ActivitySample, opts PullOptions) {
	for i := range samples {
		samples[i].HRZone = model.HeartRateZone(samples[i].HeartRate, opts.RestingHeartRate, opts.MaxHeartRate)
	}
}
