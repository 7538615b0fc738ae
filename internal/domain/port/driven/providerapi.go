package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// ErrSessionExpired is returned (wrapped) by ProviderAPI calls when the
// provider signals that the access token is no longer accepted.
var ErrSessionExpired = errors.New("provider session expired")

// ProviderAPI defines the driven port for one remote telemetry provider.
type ProviderAPI interface {
	Provider() model.ProviderID

	// Fetch pulls every record in window. An empty Dataset means the provider
	// had nothing for the window.
	Fetch(ctx context.Context, token model.AccessToken, window model.Window) (model.Dataset, error)

	// Probe performs one cheap authenticated call.
	Probe(ctx context.Context, token model.AccessToken) error
}
