package driven

import (
	"context"
	"time"
)

// DerivedWorkflow defines the driven port for downstream recomputation that
// consumes freshly synced activity and readiness data.
type DerivedWorkflow interface {
	Trigger(ctx context.Context, runID time.Time) error
}
