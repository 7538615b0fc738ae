package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// DatasetStore defines the driven port for provider-owned telemetry tables.
type DatasetStore interface {
	// HighWaterMark returns the newest timestamp stored in the provider's
	// summary table. ok is false when the provider has no rows.
	HighWaterMark(ctx context.Context, provider model.ProviderID) (hwm time.Time, ok bool, err error)

	// ReplaceWindow deletes every row at or after start from each table the
	// provider owns and inserts ds, all in one transaction. An empty ds is a
	// no-op so a transient empty response never wipes stored data.
	ReplaceWindow(ctx context.Context, provider model.ProviderID, start time.Time, ds model.Dataset) error

	// Truncate deletes rows from every provider table in one transaction.
	// A nil after deletes everything; otherwise only rows at or after *after.
	Truncate(ctx context.Context, after *time.Time) error

	// LatestReadinessDay returns the newest readiness report day.
	LatestReadinessDay(ctx context.Context) (day time.Time, ok bool, err error)

	// LatestRestingHeartRate returns the lowest heart rate of the newest sleep.
	LatestRestingHeartRate(ctx context.Context) (bpm int, ok bool, err error)

	// RowCounts returns the number of rows per provider table.
	RowCounts(ctx context.Context) (map[string]int64, error)
}
