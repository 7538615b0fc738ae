package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// FITPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FITPANEL_SECRET_KEY")

// CredentialStore defines the driven port for provider token persistence.
// The adapter is responsible for encryption at rest; blobs cross this
// boundary in plaintext.
type CredentialStore interface {
	// Replace atomically swaps the stored record for rec.Provider. Readers
	// never observe a partially written record.
	Replace(ctx context.Context, rec model.CredentialRecord) error

	// Get returns the stored record, or (nil, nil) if the provider has none.
	Get(ctx context.Context, provider model.ProviderID) (*model.CredentialRecord, error)

	// Delete removes the provider's record. Deleting a missing record is not an error.
	Delete(ctx context.Context, provider model.ProviderID) error
}
