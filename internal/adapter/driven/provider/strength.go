package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var _ driven.ProviderAPI = (*Strength)(nil)

// Strength talks to the lifting log service.
type Strength struct {
	client
}

// NewStrength creates the strength log adapter rooted at baseURL.
func NewStrength(httpClient *http.Client, baseURL string) *Strength {
	return &Strength{client: newClient(model.ProviderStrength, httpClient, baseURL)}
}

func (s *Strength) Provider() model.ProviderID { return model.ProviderStrength }

type workoutPageJSON struct {
	Workouts []struct {
		ID          string    `json:"id"`
		PerformedAt time.Time `json:"performed_at"`
		Sets        []struct {
			Exercise string  `json:"exercise"`
			Index    int     `json:"index"`
			Reps     int     `json:"reps"`
			WeightKg float64 `json:"weight_kg"`
		} `json:"sets"`
	} `json:"workouts"`
	NextPage int `json:"next_page"`
}

// Fetch pulls every set of every workout performed inside window.
func (s *Strength) Fetch(ctx context.Context, token model.AccessToken, window model.Window) (model.Dataset, error) {
	ds := model.Dataset{Provider: model.ProviderStrength}

	q := url.Values{"since": {window.Start.UTC().Format(time.RFC3339)}}
	for page := 1; ; {
		q.Set("page", strconv.Itoa(page))

		var resp workoutPageJSON
		if err := s.fetchJSON(ctx, token, "/v1/workouts", q, &resp); err != nil {
			return model.Dataset{}, err
		}

		for _, w := range resp.Workouts {
			performed := w.PerformedAt.UTC()
			if performed.Before(window.Start) || (!window.End.IsZero() && performed.After(window.End)) {
				continue
			}
			for _, set := range w.Sets {
				ds.StrengthSets = append(ds.StrengthSets, model.StrengthSet{
					PerformedAt: performed,
					WorkoutID:   w.ID,
					Exercise:    set.Exercise,
					SetIndex:    set.Index,
					Reps:        set.Reps,
					WeightKg:    set.WeightKg,
				})
			}
		}

		if resp.NextPage <= page {
			break
		}
		page = resp.NextPage
	}

	return ds, nil
}

// Probe fetches the authenticated user.
func (s *Strength) Probe(ctx context.Context, token model.AccessToken) error {
	return s.getJSON(ctx, token, "/v1/me", nil, nil)
}
