package application

import (
	"context"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// ProviderHealth is the connectivity and data freshness view of one provider.
type ProviderHealth struct {
	Provider       model.ProviderID `json:"provider"`
	Name           string           `json:"name"`
	Configured     bool             `json:"configured"`
	HasCredentials bool             `json:"has_credentials"`
	Connected      bool             `json:"connected"`
	LatestRecord   *time.Time       `json:"latest_record,omitempty"`
	Freshness      Freshness        `json:"freshness"`
	Error          string           `json:"error,omitempty"`
}

// HealthService reports per-provider connectivity for the settings surfaces.
// It never fails as a whole: per-provider problems land in ProviderHealth.Error.
type HealthService struct {
	registry *ProviderRegistry
	datasets driven.DatasetStore
	now      func() time.Time
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(registry *ProviderRegistry, datasets driven.DatasetStore) *HealthService {
	return &HealthService{
		registry: registry,
		datasets: datasets,
		now:      time.Now,
	}
}

// Report builds the view for every known provider. When probe is set each
// provider with credentials is called once to confirm the token works.
func (s *HealthService) Report(ctx context.Context, probe bool) []ProviderHealth {
	out := make([]ProviderHealth, 0, len(model.AllProviders))
	for _, id := range model.AllProviders {
		out = append(out, s.providerHealth(ctx, id, probe))
	}
	return out
}

func (s *HealthService) providerHealth(ctx context.Context, id model.ProviderID, probe bool) ProviderHealth {
	h := ProviderHealth{Provider: id, Name: id.DisplayName()}

	if hwm, ok, err := s.datasets.HighWaterMark(ctx, id); err != nil {
		h.Error = err.Error()
	} else if ok {
		h.LatestRecord = &hwm
		h.Freshness = classifyFreshness(hwm, s.now())
	}

	client, ok := s.registry.Get(id)
	if !ok {
		return h
	}
	h.Configured = true

	has, err := client.HasCredentials(ctx)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.HasCredentials = has

	if has && probe {
		h.Connected = client.IsConnected(ctx)
	}
	return h
}
