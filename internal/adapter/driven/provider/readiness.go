package provider

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var _ driven.ProviderAPI = (*Readiness)(nil)

const (
	dayLayout      = "2006-01-02"
	hypnogramSlice = 5 * time.Minute
)

// Readiness talks to the ring/wearable service: daily readiness reports and
// nightly sleep with a five-minute hypnogram.
type Readiness struct {
	client
}

// NewReadiness creates the readiness adapter rooted at baseURL.
func NewReadiness(httpClient *http.Client, baseURL string) *Readiness {
	return &Readiness{client: newClient(model.ProviderReadiness, httpClient, baseURL)}
}

func (r *Readiness) Provider() model.ProviderID { return model.ProviderReadiness }

// collection is one page of a usercollection endpoint.
type collection[T any] struct {
	Data      []T     `json:"data"`
	NextToken *string `json:"next_token"`
}

type readinessJSON struct {
	Day                  string  `json:"day"`
	Score                int     `json:"score"`
	TemperatureDeviation float64 `json:"temperature_deviation"`
	Contributors         struct {
		HRVBalance       int `json:"hrv_balance"`
		RestingHeartRate int `json:"resting_heart_rate"`
	} `json:"contributors"`
}

type sleepJSON struct {
	Day                string    `json:"day"`
	BedtimeStart       time.Time `json:"bedtime_start"`
	BedtimeEnd         time.Time `json:"bedtime_end"`
	TotalSleepDuration int       `json:"total_sleep_duration"`
	Efficiency         int       `json:"efficiency"`
	LowestHeartRate    int       `json:"lowest_heart_rate"`
	AverageHRV         float64   `json:"average_hrv"`
	SleepPhase5Min     string    `json:"sleep_phase_5_min"`
}

// Fetch pulls readiness and sleep for every day in window.
func (r *Readiness) Fetch(ctx context.Context, token model.AccessToken, window model.Window) (model.Dataset, error) {
	end := window.End
	if end.IsZero() {
		end = time.Now()
	}
	q := url.Values{
		"start_date": {window.Start.UTC().Format(dayLayout)},
		// end_date is exclusive upstream.
		"end_date": {end.UTC().AddDate(0, 0, 1).Format(dayLayout)},
	}

	readiness, err := fetchCollection[readinessJSON](ctx, r.client, token, "/v2/usercollection/daily_readiness", q)
	if err != nil {
		return model.Dataset{}, err
	}
	sleeps, err := fetchCollection[sleepJSON](ctx, r.client, token, "/v2/usercollection/sleep", q)
	if err != nil {
		return model.Dataset{}, err
	}

	ds := model.Dataset{Provider: model.ProviderReadiness}

	for _, rd := range readiness {
		day, err := time.Parse(dayLayout, rd.Day)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("parsing readiness day %q: %w", rd.Day, err)
		}
		if day.Before(window.Start) {
			continue
		}
		ds.Readiness = append(ds.Readiness, model.ReadinessSummary{
			Day:                  day,
			Score:                rd.Score,
			HRVBalance:           rd.Contributors.HRVBalance,
			RestingHRScore:       rd.Contributors.RestingHeartRate,
			TemperatureDeviation: rd.TemperatureDeviation,
		})
	}

	for _, sl := range sleeps {
		day, err := time.Parse(dayLayout, sl.Day)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("parsing sleep day %q: %w", sl.Day, err)
		}
		if day.Before(window.Start) {
			continue
		}
		ds.Sleep = append(ds.Sleep, model.SleepSummary{
			Day:               day,
			BedtimeStart:      sl.BedtimeStart.UTC(),
			BedtimeEnd:        sl.BedtimeEnd.UTC(),
			TotalSleepSeconds: sl.TotalSleepDuration,
			Efficiency:        sl.Efficiency,
			LowestHeartRate:   sl.LowestHeartRate,
			AverageHRV:        sl.AverageHRV,
		})
		ds.SleepSamples = append(ds.SleepSamples, hypnogram(day, sl.BedtimeStart.UTC(), sl.SleepPhase5Min)...)
	}

	return ds, nil
}

// Probe fetches the account's personal info.
func (r *Readiness) Probe(ctx context.Context, token model.AccessToken) error {
	return r.getJSON(ctx, token, "/v2/usercollection/personal_info", nil, nil)
}

// fetchCollection follows next_token until the collection is exhausted.
func fetchCollection[T any](ctx context.Context, c client, token model.AccessToken, path string, query url.Values) ([]T, error) {
	q := maps.Clone(query)
	if q == nil {
		q = url.Values{}
	}

	var all []T
	for {
		var page collection[T]
		if err := c.fetchJSON(ctx, token, path, q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		if page.NextToken == nil || *page.NextToken == "" {
			return all, nil
		}
		q.Set("next_token", *page.NextToken)
	}
}

// hypnogram expands a phase string, one digit per five minutes from bedtime,
// into samples. Unknown digits are skipped.
func hypnogram(day, bedtime time.Time, phases string) []model.SleepSample {
	samples := make([]model.SleepSample, 0, len(phases))
	for i, ch := range phases {
		var stage model.SleepStage
		switch ch {
		case '1':
			stage = model.SleepStageDeep
		case '2':
			stage = model.SleepStageLight
		case '3':
			stage = model.SleepStageREM
		case '4':
			stage = model.SleepStageAwake
		default:
			continue
		}
		samples = append(samples, model.SleepSample{
			Day:       day,
			Timestamp: bedtime.Add(time.Duration(i) * hypnogramSlice),
			Stage:     stage,
		})
	}
	return samples
}
