package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// ErrNoCredentials is returned when a provider has no usable stored token.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator defines the driven port for a provider's OAuth2 session.
type Authenticator interface {
	// LoadToken returns the stored token set, or (nil, nil) when none is stored
	// or the stored blob cannot be read by this version.
	LoadToken(ctx context.Context) (*model.TokenSet, error)

	// SaveToken replaces the stored token set.
	SaveToken(ctx context.Context, token model.TokenSet) error

	// Token returns a usable access token, refreshing first when the stored
	// one has expired. Returns ErrNoCredentials when nothing is stored.
	Token(ctx context.Context) (model.AccessToken, error)

	// Refresh exchanges the refresh token for a new access token regardless
	// of the stored expiry.
	Refresh(ctx context.Context) (model.AccessToken, error)

	// AuthCodeURL returns the consent redirect target for the given state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token set and stores it.
	Exchange(ctx context.Context, code string) error
}
