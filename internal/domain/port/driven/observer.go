package driven

import (
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// Run outcomes reported to a RefreshObserver.
const (
	OutcomeComplete = "complete"
	OutcomeAborted  = "aborted"
	OutcomeSkipped  = "skipped"
	OutcomeSuccess  = "success"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
	OutcomeNoCreds  = "no_credentials"
	OutcomeAwaiting = "awaiting_upstream"
)

// RefreshObserver receives refresh run telemetry.
type RefreshObserver interface {
	ObserveRun(outcome string, duration time.Duration)
	ObservePull(provider model.ProviderID, outcome string)
}
