// Package provider implements the ProviderAPI port for each remote telemetry
// service. All of them speak JSON over HTTPS with a bearer access token.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// statusError is returned for any non-2xx response other than 401.
type statusError struct {
	provider   model.ProviderID
	endpoint   string
	statusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.provider, e.endpoint, e.statusCode)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.statusCode == http.StatusNotFound
}

// client holds what every provider adapter needs to issue authenticated calls.
type client struct {
	id      model.ProviderID
	http    *http.Client
	baseURL string
}

func newClient(id model.ProviderID, httpClient *http.Client, baseURL string) client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return client{
		id:      id,
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c client) getJSON(ctx context.Context, token model.AccessToken, path string, query url.Values, out any) error {
	req, err := c.newGet(ctx, path, query)
	if err != nil {
		return err
	}
	return c.do(req, token, path, out)
}

// fetchJSON is getJSON for window data. Upstream revises recent records in
// place, so these requests never read from or write to the HTTP cache.
func (c client) fetchJSON(ctx context.Context, token model.AccessToken, path string, query url.Values, out any) error {
	req, err := c.newGet(ctx, path, query)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	return c.do(req, token, path, out)
}

func (c client) newGet(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", c.id, path, err)
	}
	return req, nil
}

func (c client) postForm(ctx context.Context, token model.AccessToken, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating %s %s request: %w", c.id, path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, token, path, out)
}

// do sends req and decodes a JSON body into out. A 401 is reported as
// driven.ErrSessionExpired so the caller can refresh and retry.
func (c client) do(req *http.Request, token model.AccessToken, endpoint string, out any) error {
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.id, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("provider api call",
		"provider", c.id,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"cached", resp.Header.Get(httpcache.XFromCache) == "1",
	)

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", c.id, endpoint, driven.ErrSessionExpired)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{provider: c.id, endpoint: endpoint, statusCode: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", c.id, endpoint, err)
	}
	return nil
}
