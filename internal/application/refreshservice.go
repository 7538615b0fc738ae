package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var (
	// ErrProfileIncomplete means the athlete profile is missing fields a run needs.
	ErrProfileIncomplete = errors.New("athlete profile incomplete")
	// ErrRefreshInProgress means another run holds the ledger lock.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrRunAborted means the run started but did not complete; nothing was finalized.
	ErrRunAborted = errors.New("refresh did not complete")
)

// RunState is the lifecycle position of a refresh run.
type RunState int

const (
	// StateIdle is a run that has not yet tried for the lock.
	StateIdle RunState = iota
	// StateLockAcquired means the ledger lock is held; truncation runs here.
	StateLockAcquired
	// StateRunning covers the provider pulls.
	StateRunning
	// StateFinalizing is writing the per-provider outcomes to the ledger row.
	StateFinalizing
	// StateComplete is a finalized run; its ledger row carries the run method.
	StateComplete
	// StateAborted is a run whose placeholder ledger row was deleted.
	StateAborted
)

// String returns a human-readable name for the run state.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLockAcquired:
		return "lock_acquired"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RefreshRequest parameterizes a run. Truncate takes precedence over
// TruncateAfter when both are set.
type RefreshRequest struct {
	Method        model.RefreshMethod
	Truncate      bool
	TruncateAfter *time.Time
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID            time.Time
	Method           model.RefreshMethod
	State            RunState
	Statuses         map[model.ProviderID]string
	DerivedTriggered bool
	Duration         time.Duration
}

// RefreshService runs the provider pulls behind the ledger lock.
type RefreshService struct {
	ledger   driven.LedgerStore
	athletes driven.AthleteStore
	datasets driven.DatasetStore
	workflow driven.DerivedWorkflow
	observer driven.RefreshObserver
	pullers  map[model.ProviderID]Puller
	loc      *time.Location
	now      func() time.Time
}

// NewRefreshService creates a RefreshService. workflow and observer may be
// nil. loc decides which calendar day counts as today for the readiness gate.
func NewRefreshService(
	ledger driven.LedgerStore,
	athletes driven.AthleteStore,
	datasets driven.DatasetStore,
	workflow driven.DerivedWorkflow,
	observer driven.RefreshObserver,
	loc *time.Location,
	pullers ...Puller,
) *RefreshService {
	if workflow == nil {
		workflow = noopWorkflow{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if loc == nil {
		loc = time.UTC
	}

	byID := make(map[model.ProviderID]Puller, len(pullers))
	for _, p := range pullers {
		byID[p.ID()] = p
	}

	return &RefreshService{
		ledger:   ledger,
		athletes: athletes,
		datasets: datasets,
		workflow: workflow,
		observer: observer,
		pullers:  byID,
		loc:      loc,
		now:      time.Now,
	}
}

// Refresh performs one run. It returns ErrProfileIncomplete or
// ErrRefreshInProgress without side effects when the run may not start, and
// an error wrapping ErrRunAborted when the run started but was rolled back.
func (s *RefreshService) Refresh(ctx context.Context, req RefreshRequest) (*RunResult, error) {
	if req.Method != model.RefreshMethodSystem && req.Method != model.RefreshMethodManual {
		return nil, fmt.Errorf("invalid refresh method %q", req.Method)
	}

	athlete, err := s.athletes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading athlete profile: %w", err)
	}
	if athlete == nil || !athlete.Complete() {
		slog.Info("refresh skipped: athlete profile incomplete", "method", req.Method)
		s.observer.ObserveRun(driven.OutcomeSkipped, 0)
		return nil, ErrProfileIncomplete
	}

	started := s.now()
	runID := started.UTC().Truncate(time.Microsecond)
	truncate := req.Truncate || req.TruncateAfter != nil

	if err := s.ledger.Acquire(ctx, runID, truncate); err != nil {
		if !errors.Is(err, driven.ErrLockHeld) {
			return nil, fmt.Errorf("acquiring refresh lock: %w", err)
		}
		if req.Method == model.RefreshMethodManual {
			slog.Info("refresh already in progress", "method", req.Method)
		} else {
			slog.Debug("refresh already in progress", "method", req.Method)
		}
		s.observer.ObserveRun(driven.OutcomeSkipped, 0)
		return nil, ErrRefreshInProgress
	}
	slog.Info("refresh started", "run_id", runID, "method", req.Method, "truncate", truncate)

	result, err := s.run(ctx, runID, req, *athlete)
	if err != nil {
		// The caller's context may already be canceled; the lock must still go.
		if relErr := s.ledger.Release(context.WithoutCancel(ctx), runID); relErr != nil {
			slog.Error("failed to release refresh lock", "run_id", runID, "error", relErr)
		}
		slog.Error("refresh did not complete", "run_id", runID, "method", req.Method, "state", StateAborted, "error", err)
		s.observer.ObserveRun(driven.OutcomeAborted, s.now().Sub(started))
		return nil, fmt.Errorf("%w: %w", ErrRunAborted, err)
	}

	result.Duration = s.now().Sub(started)
	s.observer.ObserveRun(driven.OutcomeComplete, result.Duration)
	slog.Info("refresh complete",
		"run_id", runID,
		"method", req.Method,
		"statuses", result.Statuses,
		"derived_triggered", result.DerivedTriggered,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// LatestRefresh returns the run id of the newest completed run.
func (s *RefreshService) LatestRefresh(ctx context.Context) (time.Time, bool, error) {
	entry, err := s.ledger.Latest(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if entry == nil {
		return time.Time{}, false, nil
	}
	return entry.RunID, true, nil
}

// History returns up to limit ledger entries, newest first.
func (s *RefreshService) History(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	return s.ledger.List(ctx, limit)
}

// InProgress reports whether any process currently holds the ledger lock.
func (s *RefreshService) InProgress(ctx context.Context) (bool, error) {
	return s.ledger.IsLocked(ctx)
}

// run is the body executed while the lock is held. Any error or panic it
// produces aborts the run.
func (s *RefreshService) run(ctx context.Context, runID time.Time, req RefreshRequest, athlete model.Athlete) (result *RunResult, err error) {
	state := StateLockAcquired
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in state %s: %v", state, r)
		}
	}()

	if err := s.truncate(ctx, req); err != nil {
		return nil, err
	}

	state = StateRunning
	result = &RunResult{
		RunID:    runID,
		Method:   req.Method,
		Statuses: make(map[model.ProviderID]string, len(model.AllProviders)),
	}
	record := func(id model.ProviderID, status string) error {
		result.Statuses[id] = status
		if err := s.ledger.SetStatus(ctx, runID, id, status); err != nil {
			return fmt.Errorf("recording %s status: %w", id, err)
		}
		return nil
	}

	opts := PullOptions{
		RestingHeartRate: athlete.RestingHR,
		MaxHeartRate:     athlete.MaxHeartRate(s.now().In(s.loc)),
	}

	// Independent providers first; their relative order does not matter.
	for _, id := range []model.ProviderID{model.ProviderBodyComposition, model.ProviderStrength} {
		_, status := s.pull(ctx, id, opts)
		if err := record(id, status); err != nil {
			return nil, err
		}
	}

	// Readiness gates activity: zones need a current resting heart rate.
	gated, readinessStatus := s.pullReadiness(ctx, opts)
	if err := record(model.ProviderReadiness, readinessStatus); err != nil {
		return nil, err
	}

	activityRan, activityNewData := false, false
	switch gated {
	case gateAwaiting:
		slog.Info("activity pull deferred until readiness updates today", "run_id", runID)
		s.observer.ObservePull(model.ProviderActivity, driven.OutcomeAwaiting)
		if err := record(model.ProviderActivity, model.StatusAwaitingUpstream); err != nil {
			return nil, err
		}
	default:
		if gated == gateReady {
			if bpm, ok, err := s.datasets.LatestRestingHeartRate(ctx); err != nil {
				slog.Warn("using profile resting heart rate", "error", err)
			} else if ok {
				opts.RestingHeartRate = bpm
			}
		}
		res, status := s.pull(ctx, model.ProviderActivity, opts)
		if err := record(model.ProviderActivity, status); err != nil {
			return nil, err
		}
		activityRan = status == model.StatusSuccessful
		activityNewData = activityRan && !res.Empty
	}

	state = StateFinalizing
	if err := s.ledger.Finalize(ctx, runID, req.Method); err != nil {
		return nil, fmt.Errorf("finalizing run: %w", err)
	}
	state = StateComplete
	result.State = state

	if activityRan && activityNewData && gated == gateReady {
		if err := s.workflow.Trigger(ctx, runID); err != nil {
			slog.Error("derived workflow trigger failed", "run_id", runID, "error", err)
		} else {
			result.DerivedTriggered = true
		}
	}

	return result, nil
}

func (s *RefreshService) truncate(ctx context.Context, req RefreshRequest) error {
	switch {
	case req.Truncate:
		slog.Info("truncating all provider tables")
		if err := s.datasets.Truncate(ctx, nil); err != nil {
			return fmt.Errorf("truncating provider tables: %w", err)
		}
	case req.TruncateAfter != nil:
		after := req.TruncateAfter.UTC()
		slog.Info("truncating provider tables", "after", after)
		if err := s.datasets.Truncate(ctx, &after); err != nil {
			return fmt.Errorf("truncating provider tables after %s: %w", after.Format(time.DateOnly), err)
		}
	}
	return nil
}

// readinessGate decides whether and how the activity pull may run.
type readinessGate int

const (
	// gateFallback: no readiness credentials; activity uses the profile resting HR.
	gateFallback readinessGate = iota
	// gateReady: readiness has today's report.
	gateReady
	// gateAwaiting: readiness is connected but has not reported today yet.
	gateAwaiting
)

func (s *RefreshService) pullReadiness(ctx context.Context, opts PullOptions) (readinessGate, string) {
	p, ok := s.pullers[model.ProviderReadiness]
	if !ok {
		s.observer.ObservePull(model.ProviderReadiness, driven.OutcomeNoCreds)
		return gateFallback, model.StatusNoCredentials
	}

	has, err := p.HasCredentials(ctx)
	if err != nil {
		slog.Error("checking readiness credentials", "error", err)
		s.observer.ObservePull(model.ProviderReadiness, driven.OutcomeFailed)
		return gateAwaiting, err.Error()
	}
	if !has {
		s.observer.ObservePull(model.ProviderReadiness, driven.OutcomeNoCreds)
		return gateFallback, model.StatusNoCredentials
	}

	_, status := s.pull(ctx, model.ProviderReadiness, opts)

	day, ok, err := s.datasets.LatestReadinessDay(ctx)
	if err != nil {
		slog.Error("reading latest readiness day", "error", err)
		return gateAwaiting, status
	}
	today := model.Day(s.now(), s.loc)
	if !ok || !day.Equal(today) {
		slog.Info("readiness not yet updated today", "latest", day, "today", today)
		return gateAwaiting, status
	}
	return gateReady, status
}

// pull runs one provider in isolation. Its error or panic becomes the
// returned status text and never escapes.
func (s *RefreshService) pull(ctx context.Context, id model.ProviderID, opts PullOptions) (result PullResult, status string) {
	p, ok := s.pullers[id]
	if !ok {
		s.observer.ObservePull(id, driven.OutcomeNoCreds)
		return PullResult{}, model.StatusNoCredentials
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider pull panicked", "provider", id, "panic", r)
			s.observer.ObservePull(id, driven.OutcomeFailed)
			result, status = PullResult{}, fmt.Sprintf("panic: %v", r)
		}
	}()

	has, err := p.HasCredentials(ctx)
	if err != nil {
		slog.Error("checking provider credentials", "provider", id, "error", err)
		s.observer.ObservePull(id, driven.OutcomeFailed)
		return PullResult{}, err.Error()
	}
	if !has {
		slog.Info("provider has no credentials", "provider", id)
		s.observer.ObservePull(id, driven.OutcomeNoCreds)
		return PullResult{}, model.StatusNoCredentials
	}

	result, err = p.Pull(ctx, opts)
	if err != nil {
		slog.Error("provider pull failed", "provider", id, "error", err)
		s.observer.ObservePull(id, driven.OutcomeFailed)
		return PullResult{}, err.Error()
	}

	if result.Empty {
		s.observer.ObservePull(id, driven.OutcomeEmpty)
	} else {
		s.observer.ObservePull(id, driven.OutcomeSuccess)
	}
	return result, model.StatusSuccessful
}

type noopWorkflow struct{}

func (noopWorkflow) Trigger(context.Context, time.Time) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveRun(string, time.Duration)     {}
func (noopObserver) ObservePull(model.ProviderID, string) {}
