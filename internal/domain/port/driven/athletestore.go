package driven

import (
	"context"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// AthleteStore defines the driven port for the singleton athlete profile.
type AthleteStore interface {
	// Get returns the profile, or (nil, nil) if it has never been saved.
	Get(ctx context.Context) (*model.Athlete, error)
	Save(ctx context.Context, athlete model.Athlete) error
}
