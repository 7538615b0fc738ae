// Package oauth implements the Authenticator port on top of golang.org/x/oauth2,
// persisting each provider's token set through the CredentialStore port.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Authenticator = (*Session)(nil)

// expirySkew refreshes tokens slightly before the provider would reject them.
const expirySkew = 30 * time.Second

// Config describes one provider's OAuth2 application registration.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// Session owns the OAuth2 lifecycle of a single provider.
type Session struct {
	provider   model.ProviderID
	oauth      *oauth2.Config
	store      driven.CredentialStore
	httpClient *http.Client
	now        func() time.Time

	// mu serializes refreshes so a rotated refresh token is never used twice.
	mu sync.Mutex
}

// NewSession creates a Session for provider. httpClient is used for token
// endpoint calls; nil means http.DefaultClient.
func NewSession(provider model.ProviderID, cfg Config, store driven.CredentialStore, httpClient *http.Client) *Session {
	return &Session{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:      store,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// LoadToken returns the stored token set. A blob written by another schema
// version is logged and reported as absent.
func (s *Session) LoadToken(ctx context.Context) (*model.TokenSet, error) {
	rec, err := s.store.Get(ctx, s.provider)
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", s.provider, err)
	}
	if rec == nil {
		return nil, nil
	}

	ts, err := decodeBlob(s.provider, rec.Blob)
	if errors.Is(err, errBlobMismatch) {
		slog.Warn("ignoring unreadable stored token", "provider", s.provider, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// SaveToken replaces the stored token set.
func (s *Session) SaveToken(ctx context.Context, ts model.TokenSet) error {
	blob, err := encodeBlob(s.provider, ts)
	if err != nil {
		return err
	}
	return s.store.Replace(ctx, model.CredentialRecord{
		Provider: s.provider,
		IssuedAt: s.now().UTC(),
		Blob:     blob,
	})
}

// Token returns the stored access token, refreshing it first when expired.
func (s *Session) Token(ctx context.Context) (model.AccessToken, error) {
	ts, err := s.LoadToken(ctx)
	if err != nil {
		return model.AccessToken{}, err
	}
	if ts == nil {
		return model.AccessToken{}, driven.ErrNoCredentials
	}

	if s.expired(*ts) {
		slog.Info("access token expired, refreshing", "provider", s.provider, "expiry", ts.Expiry)
		return s.Refresh(ctx)
	}
	return model.AccessToken{Value: ts.AccessToken, UserID: ts.UserID}, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the result.
func (s *Session) Refresh(ctx context.Context) (model.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.LoadToken(ctx)
	if err != nil {
		return model.AccessToken{}, err
	}
	if ts == nil {
		return model.AccessToken{}, driven.ErrNoCredentials
	}
	if ts.RefreshToken == "" {
		return model.AccessToken{}, fmt.Errorf("refresh %s token: no refresh token stored", s.provider)
	}

	// An expiry in the past forces the token source to hit the token endpoint.
	stale := &oauth2.Token{
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		TokenType:    ts.TokenType,
		Expiry:       time.Unix(1, 0),
	}
	tok, err := s.oauth.TokenSource(s.clientContext(ctx), stale).Token()
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("refresh %s token: %w", s.provider, err)
	}

	next := fromOAuth(tok)
	if next.UserID == "" {
		next.UserID = ts.UserID
	}
	if err := s.SaveToken(ctx, next); err != nil {
		return model.AccessToken{}, err
	}

	slog.Info("access token refreshed", "provider", s.provider, "expiry", next.Expiry)
	return model.AccessToken{Value: next.AccessToken, UserID: next.UserID}, nil
}

// AuthCodeURL returns the provider consent URL requesting offline access.
func (s *Session) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token set and stores it.
func (s *Session) Exchange(ctx context.Context, code string) error {
	tok, err := s.oauth.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return fmt.Errorf("exchange %s authorization code: %w", s.provider, err)
	}
	if err := s.SaveToken(ctx, fromOAuth(tok)); err != nil {
		return err
	}
	slog.Info("provider connected", "provider", s.provider)
	return nil
}

func (s *Session) expired(ts model.TokenSet) bool {
	if ts.Expiry.IsZero() {
		return false
	}
	return !s.now().Add(expirySkew).Before(ts.Expiry)
}

func (s *Session) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// fromOAuth converts an oauth2.Token, picking up the user id that several
// providers return alongside the token.
func fromOAuth(tok *oauth2.Token) model.TokenSet {
	return model.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		UserID:       extraUserID(tok),
	}
}

func extraUserID(tok *oauth2.Token) string {
	for _, key := range []string{"user_id", "userid"} {
		switch v := tok.Extra(key).(type) {
		case string:
			return v
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	if athlete, ok := tok.Extra("athlete").(map[string]any); ok {
		if id, ok := athlete["id"].(float64); ok {
			return strconv.FormatInt(int64(id), 10)
		}
	}
	return ""
}
