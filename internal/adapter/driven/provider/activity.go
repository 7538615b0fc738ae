package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var _ driven.ProviderAPI = (*Activity)(nil)

const activityPageSize = 100

// Activity talks to the workout tracking service: activity summaries plus
// their per-second heart rate and power streams.
type Activity struct {
	client
}

// NewActivity creates the activity adapter rooted at baseURL.
func NewActivity(httpClient *http.Client, baseURL string) *Activity {
	return &Activity{client: newClient(model.ProviderActivity, httpClient, baseURL)}
}

func (a *Activity) Provider() model.ProviderID { return model.ProviderActivity }

type activityJSON struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SportType        string    `json:"sport_type"`
	StartDate        time.Time `json:"start_date"`
	ElapsedTime      int       `json:"elapsed_time"`
	Distance         float64   `json:"distance"`
	AverageHeartrate float64   `json:"average_heartrate"`
	MaxHeartrate     float64   `json:"max_heartrate"`
	AverageWatts     float64   `json:"average_watts"`
	Calories         float64   `json:"calories"`
}

type streamJSON struct {
	Data []int `json:"data"`
}

type streamSetJSON struct {
	Time      streamJSON `json:"time"`
	Heartrate streamJSON `json:"heartrate"`
	Watts     streamJSON `json:"watts"`
}

// Fetch lists every activity starting inside window and pulls its streams.
func (a *Activity) Fetch(ctx context.Context, token model.AccessToken, window model.Window) (model.Dataset, error) {
	ds := model.Dataset{Provider: model.ProviderActivity}

	// after is exclusive upstream; step back one second so an activity that
	// started exactly on the window boundary is fetched again.
	after := strconv.FormatInt(window.Start.Add(-time.Second).Unix(), 10)

	for page := 1; ; page++ {
		q := url.Values{
			"after":    {after},
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(activityPageSize)},
		}

		var batch []activityJSON
		if err := a.fetchJSON(ctx, token, "/athlete/activities", q, &batch); err != nil {
			return model.Dataset{}, err
		}

		for _, act := range batch {
			start := act.StartDate.UTC()
			if start.Before(window.Start) || (!window.End.IsZero() && start.After(window.End)) {
				continue
			}

			ds.Activities = append(ds.Activities, act.summary())

			samples, err := a.fetchSamples(ctx, token, act.ID, start)
			if err != nil {
				return model.Dataset{}, err
			}
			ds.ActivitySamples = append(ds.ActivitySamples, samples...)
		}

		if len(batch) < activityPageSize {
			break
		}
	}

	return ds, nil
}

// fetchSamples returns the stream points of one activity. Manually entered
// activities have no streams and yield nil.
func (a *Activity) fetchSamples(ctx context.Context, token model.AccessToken, id int64, start time.Time) ([]model.ActivitySample, error) {
	q := url.Values{
		"keys":        {"time,heartrate,watts"},
		"key_by_type": {"true"},
	}

	var streams streamSetJSON
	err := a.fetchJSON(ctx, token, fmt.Sprintf("/activities/%d/streams", id), q, &streams)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	samples := make([]model.ActivitySample, 0, len(streams.Time.Data))
	for i, offset := range streams.Time.Data {
		samples = append(samples, model.ActivitySample{
			ActivityID:    id,
			ActivityStart: start,
			Timestamp:     start.Add(time.Duration(offset) * time.Second),
			HeartRate:     at(streams.Heartrate.Data, i),
			Watts:         at(streams.Watts.Data, i),
		})
	}
	return samples, nil
}

// Probe fetches the authenticated athlete.
func (a *Activity) Probe(ctx context.Context, token model.AccessToken) error {
	return a.getJSON(ctx, token, "/athlete", nil, nil)
}

func (j activityJSON) summary() model.ActivitySummary {
	kind := j.SportType
	if kind == "" {
		kind = j.Type
	}
	return model.ActivitySummary{
		ActivityID:     j.ID,
		StartTime:      j.StartDate.UTC(),
		Type:           kind,
		Name:           j.Name,
		ElapsedSeconds: j.ElapsedTime,
		DistanceMeters: j.Distance,
		AverageHR:      j.AverageHeartrate,
		MaxHR:          j.MaxHeartrate,
		AverageWatts:   j.AverageWatts,
		Calories:       j.Calories,
	}
}

func at(data []int, i int) int {
	if i < len(data) {
		return data[i]
	}
	return 0
}
