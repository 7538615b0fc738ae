package httphandler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

const (
	stateCookieName   = "fitpanel_oauth_state"
	stateCookieMaxAge = 10 * 60

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// RefreshRunner is the refresh use case the API drives.
type RefreshRunner interface {
	Refresh(ctx context.Context, req application.RefreshRequest) (*application.RunResult, error)
	LatestRefresh(ctx context.Context) (time.Time, bool, error)
	History(ctx context.Context, limit int) ([]model.LedgerEntry, error)
	InProgress(ctx context.Context) (bool, error)
}

// HealthReporter builds the per-provider connectivity report.
type HealthReporter interface {
	Report(ctx context.Context, probe bool) []application.ProviderHealth
}

// Connector runs the OAuth consent flow for one provider.
type Connector interface {
	ConnectLink(state string) string
	Exchange(ctx context.Context, code string) error
}

// Compile-time interface satisfaction checks.
var (
	_ RefreshRunner  = (*application.RefreshService)(nil)
	_ HealthReporter = (*application.HealthService)(nil)
	_ Connector      = (*application.ProviderClient)(nil)
)

// ConnectorLookup returns the Connector for a configured provider.
type ConnectorLookup func(id model.ProviderID) (Connector, bool)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	refresh    RefreshRunner
	health     HealthReporter
	connectors ConnectorLookup
	logger     *slog.Logger

	// background bounds manual runs started from a request; they outlive it.
	background context.Context
}

// NewHandler creates a Handler. Manual refreshes started through the API run
// under background, so canceling it stops them on shutdown.
func NewHandler(
	background context.Context,
	refresh RefreshRunner,
	health HealthReporter,
	connectors ConnectorLookup,
	logger *slog.Logger,
) *Handler {
	if connectors == nil {
		connectors = func(model.ProviderID) (Connector, bool) { return nil, false }
	}
	return &Handler{
		refresh:    refresh,
		health:     health,
		connectors: connectors,
		logger:     logger,
		background: background,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics, when non-nil, is served on
// /metrics; obs may be nil.
func NewServeMux(h *Handler, logger *slog.Logger, obs HTTPObserver, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)
	mux.HandleFunc("GET /api/v1/providers/{provider}/connect", h.Connect)
	mux.HandleFunc("GET /api/v1/providers/{provider}/callback", h.Callback)
	mux.HandleFunc("POST /api/v1/refresh", h.TriggerRefresh)
	mux.HandleFunc("GET /api/v1/refresh/latest", h.LatestRefresh)
	mux.HandleFunc("GET /api/v1/refresh/history", h.RefreshHistory)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, obs, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListProviders returns the connectivity report. With ?probe=true every
// provider holding credentials is called once.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	writeJSON(w, http.StatusOK, toProviderHealthResponse(h.health.Report(r.Context(), probe)))
}

// Connect starts the OAuth consent flow by redirecting to the provider.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	id, conn, ok := h.lookupConnector(w, r)
	if !ok {
		return
	}

	state, err := newState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", "provider", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/v1/providers/" + string(id),
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, conn.ConnectLink(state), http.StatusFound)
}

// Callback completes the OAuth flow: it checks the state cookie, exchanges
// the code and stores the resulting token set.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	id, conn, ok := h.lookupConnector(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+e)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || q.Get("state") == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	if err := conn.Exchange(r.Context(), code); err != nil {
		h.logger.Error("oauth code exchange failed", "provider", id, "error", err)
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/api/v1/providers/" + string(id),
		MaxAge: -1,
	})
	h.logger.Info("provider connected", "provider", id)
	writeJSON(w, http.StatusOK, ConnectedResponse{Provider: string(id), Connected: true})
}

// TriggerRefresh starts a manual refresh in the background and returns 202.
// It answers 409 when another run already holds the lock.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	var body RefreshRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := application.RefreshRequest{Method: model.RefreshMethodManual, Truncate: body.Truncate}
	if body.TruncateAfter != "" {
		after, err := time.ParseInLocation(time.DateOnly, body.TruncateAfter, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid truncate_after: expected YYYY-MM-DD")
			return
		}
		req.TruncateAfter = &after
	}

	busy, err := h.refresh.InProgress(r.Context())
	if err != nil {
		h.logger.Error("failed to read refresh lock", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if busy {
		writeError(w, http.StatusConflict, "a refresh is already in progress")
		return
	}

	// The request context ends with the response; the run must not.
	go func() {
		if _, err := h.refresh.Refresh(h.background, req); err != nil {
			switch {
			case errors.Is(err, application.ErrRefreshInProgress):
				h.logger.Info("manual refresh lost the lock race")
			case errors.Is(err, application.ErrProfileIncomplete):
				h.logger.Warn("manual refresh skipped: athlete profile incomplete")
			default:
				h.logger.Error("manual refresh failed", "error", err)
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, RefreshAcceptedResponse{
		Status:        "accepted",
		Method:        string(req.Method),
		Truncate:      body.Truncate,
		TruncateAfter: body.TruncateAfter,
	})
}

// LatestRefresh returns the run id of the newest completed run.
func (h *Handler) LatestRefresh(w http.ResponseWriter, r *http.Request) {
	runID, ok, err := h.refresh.LatestRefresh(r.Context())
	if err != nil {
		h.logger.Error("failed to read latest refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	busy, err := h.refresh.InProgress(r.Context())
	if err != nil {
		h.logger.Error("failed to read refresh lock", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := LatestRefreshResponse{InProgress: busy}
	if ok {
		s := formatRunID(runID)
		resp.RunID = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefreshHistory returns ledger entries, newest first. ?limit= caps the count.
func (h *Handler) RefreshHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "invalid limit: expected 1-500")
			return
		}
		limit = n
	}

	entries, err := h.refresh.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list refresh history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toLedgerEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookupConnector resolves the {provider} path segment. It writes a 404 and
// returns false for unknown or unconfigured providers.
func (h *Handler) lookupConnector(w http.ResponseWriter, r *http.Request) (model.ProviderID, Connector, bool) {
	id, err := model.ParseProviderID(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown provider")
		return "", nil, false
	}

	conn, ok := h.connectors(id)
	if !ok {
		writeError(w, http.StatusNotFound, "provider not configured")
		return "", nil, false
	}
	return id, conn, true
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
