package application

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

// --- Mock implementations ---

type fakeAPI struct {
	id    model.ProviderID
	fetch func(tok model.AccessToken, w model.Window) (model.Dataset, error)
	probe func(tok model.AccessToken) error

	mu      sync.Mutex
	windows []model.Window
	tokens  []string
}

func (f *fakeAPI) Provider() model.ProviderID { return f.id }

func (f *fakeAPI) Fetch(_ context.Context, tok model.AccessToken, w model.Window) (model.Dataset, error) {
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.tokens = append(f.tokens, tok.Value)
	f.mu.Unlock()
	if f.fetch == nil {
		return model.Dataset{}, nil
	}
	return f.fetch(tok, w)
}

func (f *fakeAPI) Probe(_ context.Context, tok model.AccessToken) error {
	if f.probe == nil {
		return nil
	}
	return f.probe(tok)
}

type fakeAuth struct {
	mu         sync.Mutex
	token      *model.TokenSet
	refreshErr error
	refreshes  int
}

func newFakeAuth(access string) *fakeAuth {
	if access == "" {
		return &fakeAuth{}
	}
	return &fakeAuth{token: &model.TokenSet{AccessToken: access, RefreshToken: "refresh"}}
}

func (a *fakeAuth) LoadToken(context.Context) (*model.TokenSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return nil, nil
	}
	ts := *a.token
	return &ts, nil
}

func (a *fakeAuth) SaveToken(_ context.Context, ts model.TokenSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = &ts
	return nil
}

func (a *fakeAuth) Token(context.Context) (model.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return model.AccessToken{}, driven.ErrNoCredentials
	}
	return model.AccessToken{Value: a.token.AccessToken}, nil
}

func (a *fakeAuth) Refresh(context.Context) (model.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	if a.refreshErr != nil {
		return model.AccessToken{}, a.refreshErr
	}
	if a.token == nil {
		return model.AccessToken{}, driven.ErrNoCredentials
	}
	a.token.AccessToken = "refreshed"
	return model.AccessToken{Value: a.token.AccessToken}, nil
}

func (a *fakeAuth) AuthCodeURL(state string) string {
	return "https://auth.example.test/authorize?state=" + state
}

func (a *fakeAuth) Exchange(_ context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = &model.TokenSet{AccessToken: "code-" + code}
	return nil
}

type replaceCall struct {
	provider model.ProviderID
	start    time.Time
	ds       model.Dataset
}

type memDatasets struct {
	mu           sync.Mutex
	hwm          map[model.ProviderID]time.Time
	replaced     []replaceCall
	truncated    []*time.Time
	truncateErr  error
	readinessDay time.Time
	restingHR    int
}

func newMemDatasets() *memDatasets {
	return &memDatasets{hwm: make(map[model.ProviderID]time.Time)}
}

func (m *memDatasets) HighWaterMark(_ context.Context, p model.ProviderID) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.hwm[p]
	return t, ok, nil
}

func (m *memDatasets) ReplaceWindow(_ context.Context, p model.ProviderID, start time.Time, ds model.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = append(m.replaced, replaceCall{provider: p, start: start, ds: ds})
	return nil
}

func (m *memDatasets) Truncate(_ context.Context, after *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.truncateErr != nil {
		return m.truncateErr
	}
	m.truncated = append(m.truncated, after)
	return nil
}

func (m *memDatasets) LatestReadinessDay(context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readinessDay, !m.readinessDay.IsZero(), nil
}

func (m *memDatasets) LatestRestingHeartRate(context.Context) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restingHR, m.restingHR > 0, nil
}

func (m *memDatasets) RowCounts(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

type memLedger struct {
	mu          sync.Mutex
	processing  *model.LedgerEntry
	entries     []model.LedgerEntry
	released    []time.Time
	statusErr   error
	finalizeErr error
}

func (l *memLedger) Acquire(_ context.Context, runID time.Time, truncate bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.processing != nil {
		return driven.ErrLockHeld
	}
	l.processing = &model.LedgerEntry{
		RunID:    runID,
		Method:   model.RefreshMethodProcessing,
		Truncate: truncate,
		Statuses: map[model.ProviderID]string{},
	}
	return nil
}

func (l *memLedger) IsLocked(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processing != nil, nil
}

func (l *memLedger) SetStatus(_ context.Context, runID time.Time, p model.ProviderID, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.statusErr != nil {
		return l.statusErr
	}
	if l.processing == nil || !l.processing.RunID.Equal(runID) {
		return errors.New("no in-flight run")
	}
	l.processing.Statuses[p] = status
	return nil
}

func (l *memLedger) Finalize(_ context.Context, runID time.Time, method model.RefreshMethod) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalizeErr != nil {
		return l.finalizeErr
	}
	if l.processing == nil || !l.processing.RunID.Equal(runID) {
		return errors.New("no in-flight run")
	}
	entry := *l.processing
	entry.Method = method
	l.entries = append(l.entries, entry)
	l.processing = nil
	return nil
}

func (l *memLedger) Release(_ context.Context, runID time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, runID)
	if l.processing != nil && l.processing.RunID.Equal(runID) {
		l.processing = nil
	}
	return nil
}

func (l *memLedger) Latest(context.Context) (*model.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil, nil
	}
	e := l.entries[len(l.entries)-1]
	return &e, nil
}

func (l *memLedger) List(_ context.Context, limit int) ([]model.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.entries)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAthletes struct {
	athlete *model.Athlete
}

func (m *memAthletes) Get(context.Context) (*model.Athlete, error) {
	if m.athlete == nil {
		return nil, nil
	}
	a := *m.athlete
	return &a, nil
}

func (m *memAthletes) Save(_ context.Context, a model.Athlete) error {
	m.athlete = &a
	return nil
}

// pullLog records the order providers were pulled in across fakePullers.
type pullLog struct {
	mu    sync.Mutex
	order []model.ProviderID
}

func (l *pullLog) add(id model.ProviderID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, id)
}

func (l *pullLog) get() []model.ProviderID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.order)
}

type fakePuller struct {
	id     model.ProviderID
	has    bool
	hasErr error
	result PullResult
	err    error
	panics string
	log    *pullLog
	opts   []PullOptions
}

func (p *fakePuller) ID() model.ProviderID { return p.id }

func (p *fakePuller) HasCredentials(context.Context) (bool, error) {
	return p.has, p.hasErr
}

func (p *fakePuller) Pull(_ context.Context, opts PullOptions) (PullResult, error) {
	if p.log != nil {
		p.log.add(p.id)
	}
	p.opts = append(p.opts, opts)
	if p.panics != "" {
		panic(p.panics)
	}
	if p.err != nil {
		return PullResult{}, p.err
	}
	res := p.result
	res.Provider = p.id
	return res, nil
}

type recordingObserver struct {
	mu    sync.Mutex
	runs  []string
	pulls map[model.ProviderID][]string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{pulls: make(map[model.ProviderID][]string)}
}

func (o *recordingObserver) ObserveRun(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, outcome)
}

func (o *recordingObserver) ObservePull(p model.ProviderID, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pulls[p] = append(o.pulls[p], outcome)
}

type recordingWorkflow struct {
	mu        sync.Mutex
	triggered []time.Time
	err       error
}

func (w *recordingWorkflow) Trigger(_ context.Context, runID time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.triggered = append(w.triggered, runID)
	return nil
}

func completeAthlete() model.Athlete {
	return model.Athlete{
		Name:      "Sam Rivera",
		Birthdate: time.Date(1990, time.May, 1, 0, 0, 0, 0, time.UTC),
		Sex:       "F",
		WeightKg:  61.5,
		RestingHR: 50,
		RunFTP:    250,
		RideFTP:   220,
	}
}
