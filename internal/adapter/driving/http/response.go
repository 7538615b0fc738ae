package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// RefreshRequestBody is the optional JSON body of POST /api/v1/refresh.
// TruncateAfter is a calendar date, YYYY-MM-DD.
type RefreshRequestBody struct {
	Truncate      bool   `json:"truncate"`
	TruncateAfter string `json:"truncate_after,omitempty"`
}

// RefreshAcceptedResponse acknowledges a manual refresh that will run in
// the background.
type RefreshAcceptedResponse struct {
	Status        string `json:"status"`
	Method        string `json:"method"`
	Truncate      bool   `json:"truncate"`
	TruncateAfter string `json:"truncate_after,omitempty"`
}

// LatestRefreshResponse reports the newest completed run and whether a run
// currently holds the lock.
type LatestRefreshResponse struct {
	RunID      *string `json:"run_id"`
	InProgress bool    `json:"in_progress"`
}

// LedgerEntryResponse is one row of the refresh history.
type LedgerEntryResponse struct {
	RunID     string            `json:"run_id"`
	Method    string            `json:"method"`
	Truncate  bool              `json:"truncate"`
	Complete  bool              `json:"complete"`
	Statuses  map[string]string `json:"statuses"`
	CreatedAt string            `json:"created_at"`
}

// ConnectedResponse is returned once an OAuth callback stored a token.
type ConnectedResponse struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
}

// formatRunID renders a run id with microsecond precision, the resolution
// the ledger keys on.
func formatRunID(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

func toLedgerEntryResponse(e model.LedgerEntry) LedgerEntryResponse {
	statuses := make(map[string]string, len(model.AllProviders))
	for _, p := range model.AllProviders {
		if s := e.Status(p); s != "" {
			statuses[string(p)] = s
		}
	}

	return LedgerEntryResponse{
		RunID:     formatRunID(e.RunID),
		Method:    string(e.Method),
		Truncate:  e.Truncate,
		Complete:  e.Method != model.RefreshMethodProcessing,
		Statuses:  statuses,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toProviderHealthResponse guarantees a non-nil slice so the endpoint always
// returns a JSON array.
func toProviderHealthResponse(report []application.ProviderHealth) []application.ProviderHealth {
	if report == nil {
		return []application.ProviderHealth{}
	}
	return report
}
