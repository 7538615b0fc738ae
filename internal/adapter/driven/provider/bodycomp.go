package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var _ driven.ProviderAPI = (*BodyComposition)(nil)

// Measure type codes used by the scale service.
const (
	measureWeight     = 1
	measureFatRatio   = 6
	measureMuscleMass = 76
	measureHydration  = 77
	measureBoneMass   = 88
)

// Body status codes. The service answers HTTP 200 and reports failures here.
const (
	bodyStatusOK           = 0
	bodyStatusInvalidToken = 401
)

// BodyComposition talks to the smart scale service.
type BodyComposition struct {
	client
}

// NewBodyComposition creates the body composition adapter rooted at baseURL.
func NewBodyComposition(httpClient *http.Client, baseURL string) *BodyComposition {
	return &BodyComposition{client: newClient(model.ProviderBodyComposition, httpClient, baseURL)}
}

func (b *BodyComposition) Provider() model.ProviderID { return model.ProviderBodyComposition }

type measureEnvelope struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Body   struct {
		MeasureGroups []measureGroupJSON `json:"measuregrps"`
		More          int                `json:"more"`
		Offset        int                `json:"offset"`
	} `json:"body"`
}

type measureGroupJSON struct {
	GroupID  int64 `json:"grpid"`
	Date     int64 `json:"date"`
	Measures []struct {
		Value int64 `json:"value"`
		Type  int   `json:"type"`
		Unit  int   `json:"unit"`
	} `json:"measures"`
}

// Fetch pulls every scale measurement taken inside window. Groups sharing a
// timestamp are merged into one row.
func (b *BodyComposition) Fetch(ctx context.Context, token model.AccessToken, window model.Window) (model.Dataset, error) {
	end := window.End
	if end.IsZero() {
		end = time.Now()
	}

	form := url.Values{
		"action":    {"getmeas"},
		"meastypes": {fmt.Sprintf("%d,%d,%d,%d,%d", measureWeight, measureFatRatio, measureMuscleMass, measureHydration, measureBoneMass)},
		"category":  {"1"},
		"startdate": {strconv.FormatInt(window.Start.Unix(), 10)},
		"enddate":   {strconv.FormatInt(end.Unix(), 10)},
	}

	byTime := make(map[int64]*model.BodyComposition)
	var order []int64

	for {
		var env measureEnvelope
		if err := b.postForm(ctx, token, "/measure", form, &env); err != nil {
			return model.Dataset{}, err
		}
		if err := b.checkStatus(env.Status, env.Error); err != nil {
			return model.Dataset{}, err
		}

		for _, grp := range env.Body.MeasureGroups {
			row, ok := byTime[grp.Date]
			if !ok {
				row = &model.BodyComposition{MeasuredAt: time.Unix(grp.Date, 0).UTC()}
				byTime[grp.Date] = row
				order = append(order, grp.Date)
			}
			for _, m := range grp.Measures {
				v := float64(m.Value) * math.Pow10(m.Unit)
				switch m.Type {
				case measureWeight:
					row.WeightKg = v
				case measureFatRatio:
					row.FatRatio = v
				case measureMuscleMass:
					row.MuscleMassKg = v
				case measureHydration:
					row.HydrationKg = v
				case measureBoneMass:
					row.BoneMassKg = v
				}
			}
		}

		if env.Body.More == 0 {
			break
		}
		form.Set("offset", strconv.Itoa(env.Body.Offset))
	}

	ds := model.Dataset{Provider: model.ProviderBodyComposition}
	for _, ts := range order {
		row := byTime[ts]
		if row.MeasuredAt.Before(window.Start) {
			continue
		}
		ds.BodyCompositions = append(ds.BodyCompositions, *row)
	}
	return ds, nil
}

// Probe lists the user's devices.
func (b *BodyComposition) Probe(ctx context.Context, token model.AccessToken) error {
	var env measureEnvelope
	if err := b.postForm(ctx, token, "/v2/user", url.Values{"action": {"getdevice"}}, &env); err != nil {
		return err
	}
	return b.checkStatus(env.Status, env.Error)
}

func (b *BodyComposition) checkStatus(status int, msg string) error {
	switch status {
	case bodyStatusOK:
		return nil
	case bodyStatusInvalidToken:
		return fmt.Errorf("%s: %w", b.id, driven.ErrSessionExpired)
	default:
		return fmt.Errorf("%s: status %d: %s", b.id, status, msg)
	}
}
