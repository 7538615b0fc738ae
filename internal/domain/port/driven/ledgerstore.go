package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// ErrLockHeld is returned by LedgerStore.Acquire when another run already
// holds the processing row.
var ErrLockHeld = errors.New("refresh lock already held")

// LedgerStore defines the driven port for the refresh ledger. The ledger is
// both the run history and the cross-process mutual exclusion lock.
type LedgerStore interface {
	// Acquire inserts a processing row for runID. It must be atomic: when a
	// processing row already exists it returns ErrLockHeld and writes nothing.
	Acquire(ctx context.Context, runID time.Time, truncate bool) error

	// IsLocked reports whether a processing row exists.
	IsLocked(ctx context.Context) (bool, error)

	// SetStatus records provider's terminal status on the in-flight run.
	SetStatus(ctx context.Context, runID time.Time, provider model.ProviderID, status string) error

	// Finalize converts the processing row into a permanent audit row.
	Finalize(ctx context.Context, runID time.Time, method model.RefreshMethod) error

	// Release deletes the processing row for runID.
	Release(ctx context.Context, runID time.Time) error

	// Latest returns the most recent completed run, or (nil, nil) if none.
	Latest(ctx context.Context) (*model.LedgerEntry, error)

	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]model.LedgerEntry, error)
}
