package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
	"github.com/ericfisherdev/fitpanel/internal/domain/port/driven"
)

var (
	runNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	today  = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
)

type refreshFixture struct {
	svc      *RefreshService
	ledger   *memLedger
	athletes *memAthletes
	datasets *memDatasets
	workflow *recordingWorkflow
	observer *recordingObserver
	log      *pullLog
	pullers  map[model.ProviderID]*fakePuller
}

// newRefreshFixture wires a RefreshService with every provider connected and
// readiness already reported today.
func newRefreshFixture(t *testing.T, customize ...func(f *refreshFixture)) *refreshFixture {
	t.Helper()

	athlete := completeAthlete()
	f := &refreshFixture{
		ledger:   &memLedger{},
		athletes: &memAthletes{athlete: &athlete},
		datasets: newMemDatasets(),
		workflow: &recordingWorkflow{},
		observer: newRecordingObserver(),
		log:      &pullLog{},
		pullers:  make(map[model.ProviderID]*fakePuller),
	}
	f.datasets.readinessDay = today
	f.datasets.restingHR = 46

	for _, id := range model.AllProviders {
		f.pullers[id] = &fakePuller{id: id, has: true, result: PullResult{Rows: 10}, log: f.log}
	}
	for _, fn := range customize {
		fn(f)
	}

	var pullers []Puller
	for _, id := range model.AllProviders {
		if p, ok := f.pullers[id]; ok {
			pullers = append(pullers, p)
		}
	}

	f.svc = NewRefreshService(f.ledger, f.athletes, f.datasets, f.workflow, f.observer, time.UTC, pullers...)
	f.svc.now = func() time.Time { return runNow }
	return f
}

func manual() RefreshRequest { return RefreshRequest{Method: model.RefreshMethodManual} }

func TestRefresh_ProfileIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		athlete *model.Athlete
	}{
		{name: "no profile", athlete: nil},
		{name: "missing ride FTP", athlete: func() *model.Athlete {
			a := completeAthlete()
			a.RideFTP = 0
			return &a
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefreshFixture(t, func(f *refreshFixture) { f.athletes.athlete = tt.athlete })

			res, err := f.svc.Refresh(context.Background(), manual())
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrProfileIncomplete)

			locked, _ := f.ledger.IsLocked(context.Background())
			assert.False(t, locked)
			assert.Empty(t, f.ledger.entries)
			assert.Empty(t, f.log.get())
			assert.Equal(t, []string{driven.OutcomeSkipped}, f.observer.runs)
		})
	}
}

func TestRefresh_LockHeld(t *testing.T) {
	for _, method := range []model.RefreshMethod{model.RefreshMethodManual, model.RefreshMethodSystem} {
		t.Run(string(method), func(t *testing.T) {
			f := newRefreshFixture(t)
			require.NoError(t, f.ledger.Acquire(context.Background(), runNow.Add(-time.Minute), false))

			res, err := f.svc.Refresh(context.Background(), RefreshRequest{Method: method})
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrRefreshInProgress)

			assert.Empty(t, f.log.get())
			assert.Empty(t, f.ledger.released, "a contended run must not release the holder's lock")
			locked, _ := f.ledger.IsLocked(context.Background())
			assert.True(t, locked)
		})
	}
}

func TestRefresh_InvalidMethod(t *testing.T) {
	f := newRefreshFixture(t)

	_, err := f.svc.Refresh(context.Background(), RefreshRequest{Method: model.RefreshMethodProcessing})
	require.Error(t, err)

	locked, _ := f.ledger.IsLocked(context.Background())
	assert.False(t, locked)
}

func TestRefresh_DependencyOrder(t *testing.T) {
	f := newRefreshFixture(t)

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	order := f.log.get()
	require.Len(t, order, 4)
	assert.ElementsMatch(t,
		[]model.ProviderID{model.ProviderBodyComposition, model.ProviderStrength},
		order[:2],
	)
	assert.Equal(t, []model.ProviderID{model.ProviderReadiness, model.ProviderActivity}, order[2:])

	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, model.RefreshMethodManual, res.Method)
	assert.Equal(t, runNow, res.RunID)
	for _, id := range model.AllProviders {
		assert.Equal(t, model.StatusSuccessful, res.Statuses[id], id)
	}

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, model.RefreshMethodManual, entry.Method)
	assert.Equal(t, res.Statuses, entry.Statuses)

	locked, _ := f.ledger.IsLocked(context.Background())
	assert.False(t, locked)
	assert.Equal(t, []string{driven.OutcomeComplete}, f.observer.runs)
}

func TestRefresh_ActivityUsesReadinessRestingHeartRate(t *testing.T) {
	f := newRefreshFixture(t)

	_, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	activity := f.pullers[model.ProviderActivity]
	require.Len(t, activity.opts, 1)
	assert.Equal(t, 46, activity.opts[0].RestingHeartRate)
	assert.Equal(t, 184, activity.opts[0].MaxHeartRate)

	bodycomp := f.pullers[model.ProviderBodyComposition]
	assert.Equal(t, 50, bodycomp.opts[0].RestingHeartRate, "earlier pulls see the profile value")
}

func TestRefresh_DerivedWorkflowTriggered(t *testing.T) {
	f := newRefreshFixture(t)

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.True(t, res.DerivedTriggered)
	assert.Equal(t, []time.Time{runNow}, f.workflow.triggered)
}

func TestRefresh_ReadinessNotUpdatedDefersActivity(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.datasets.readinessDay = today.AddDate(0, 0, -1)
	})

	res, err := f.svc.Refresh(context.Background(), RefreshRequest{Method: model.RefreshMethodSystem})
	require.NoError(t, err)

	assert.NotContains(t, f.log.get(), model.ProviderActivity)
	assert.Equal(t, model.StatusAwaitingUpstream, res.Statuses[model.ProviderActivity])
	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderReadiness])
	assert.False(t, res.DerivedTriggered)
	assert.Empty(t, f.workflow.triggered)
	assert.Equal(t, []string{driven.OutcomeAwaiting}, f.observer.pulls[model.ProviderActivity])

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, model.RefreshMethodSystem, f.ledger.entries[0].Method)
}

func TestRefresh_ReadinessWithoutDataDefersActivity(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.datasets.readinessDay = time.Time{}
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingUpstream, res.Statuses[model.ProviderActivity])
}

func TestRefresh_ReadinessWithoutCredentialsFallsBack(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.pullers[model.ProviderReadiness].has = false
		f.datasets.readinessDay = time.Time{}
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.Equal(t, model.StatusNoCredentials, res.Statuses[model.ProviderReadiness])
	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderActivity])

	activity := f.pullers[model.ProviderActivity]
	require.Len(t, activity.opts, 1)
	assert.Equal(t, 50, activity.opts[0].RestingHeartRate, "static profile resting heart rate")

	assert.False(t, res.DerivedTriggered, "fallback path never triggers derived workflows")
	assert.Empty(t, f.workflow.triggered)
}

func TestRefresh_ReadinessNotConfiguredFallsBack(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		delete(f.pullers, model.ProviderReadiness)
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.Equal(t, model.StatusNoCredentials, res.Statuses[model.ProviderReadiness])
	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderActivity])
	assert.False(t, res.DerivedTriggered)
}

func TestRefresh_EmptyActivityDoesNotTrigger(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.pullers[model.ProviderActivity].result = PullResult{Empty: true}
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderActivity])
	assert.False(t, res.DerivedTriggered)
	assert.Equal(t, []string{driven.OutcomeEmpty}, f.observer.pulls[model.ProviderActivity])
}

func TestRefresh_ProviderIsolation(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.pullers[model.ProviderBodyComposition].err = errors.New("body composition: HTTP 503")
		f.pullers[model.ProviderStrength].panics = "index out of range"
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.Equal(t, "body composition: HTTP 503", res.Statuses[model.ProviderBodyComposition])
	assert.Equal(t, "panic: index out of range", res.Statuses[model.ProviderStrength])
	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderReadiness])
	assert.Equal(t, model.StatusSuccessful, res.Statuses[model.ProviderActivity])

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, res.Statuses, f.ledger.entries[0].Statuses)
	assert.Equal(t, []string{driven.OutcomeFailed}, f.observer.pulls[model.ProviderBodyComposition])
	assert.Equal(t, []string{driven.OutcomeFailed}, f.observer.pulls[model.ProviderStrength])
}

func TestRefresh_NoCredentialsIsNotAFailure(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.pullers[model.ProviderStrength].has = false
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.Equal(t, model.StatusNoCredentials, res.Statuses[model.ProviderStrength])
	assert.NotContains(t, f.log.get(), model.ProviderStrength)
	assert.Equal(t, []string{driven.OutcomeNoCreds}, f.observer.pulls[model.ProviderStrength])
}

func TestRefresh_CredentialCheckErrorBecomesStatus(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.pullers[model.ProviderBodyComposition].hasErr = errors.New("cipher: message authentication failed")
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)
	assert.Equal(t, "cipher: message authentication failed", res.Statuses[model.ProviderBodyComposition])
}

func TestRefresh_TruncateAll(t *testing.T) {
	f := newRefreshFixture(t)
	after := today.AddDate(0, 0, -3)

	_, err := f.svc.Refresh(context.Background(), RefreshRequest{
		Method:        model.RefreshMethodManual,
		Truncate:      true,
		TruncateAfter: &after,
	})
	require.NoError(t, err)

	require.Len(t, f.datasets.truncated, 1)
	assert.Nil(t, f.datasets.truncated[0], "full truncate wins over truncate-after")
	assert.True(t, f.ledger.entries[0].Truncate)
}

func TestRefresh_TruncateAfterDate(t *testing.T) {
	f := newRefreshFixture(t)
	after := today.AddDate(0, 0, -3)

	_, err := f.svc.Refresh(context.Background(), RefreshRequest{
		Method:        model.RefreshMethodManual,
		TruncateAfter: &after,
	})
	require.NoError(t, err)

	require.Len(t, f.datasets.truncated, 1)
	require.NotNil(t, f.datasets.truncated[0])
	assert.Equal(t, after, *f.datasets.truncated[0])
	assert.True(t, f.ledger.entries[0].Truncate)
}

func TestRefresh_NoTruncateByDefault(t *testing.T) {
	f := newRefreshFixture(t)

	_, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)
	assert.Empty(t, f.datasets.truncated)
	assert.False(t, f.ledger.entries[0].Truncate)
}

func TestRefresh_TruncationFailureAborts(t *testing.T) {
	truncErr := errors.New("disk I/O error")
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.datasets.truncateErr = truncErr
	})

	res, err := f.svc.Refresh(context.Background(), RefreshRequest{Method: model.RefreshMethodManual, Truncate: true})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.ErrorIs(t, err, truncErr)

	assert.Empty(t, f.log.get(), "no provider is pulled after a failed truncation")
	assert.Equal(t, []time.Time{runNow}, f.ledger.released)
	locked, _ := f.ledger.IsLocked(context.Background())
	assert.False(t, locked)
	assert.Empty(t, f.ledger.entries)
	assert.Equal(t, []string{driven.OutcomeAborted}, f.observer.runs)
}

func TestRefresh_LedgerFailureAborts(t *testing.T) {
	tests := []struct {
		name   string
		ledger func(l *memLedger)
	}{
		{name: "set status", ledger: func(l *memLedger) { l.statusErr = errors.New("database is locked") }},
		{name: "finalize", ledger: func(l *memLedger) { l.finalizeErr = errors.New("database is locked") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRefreshFixture(t, func(f *refreshFixture) { tt.ledger(f.ledger) })

			_, err := f.svc.Refresh(context.Background(), manual())
			assert.ErrorIs(t, err, ErrRunAborted)

			locked, _ := f.ledger.IsLocked(context.Background())
			assert.False(t, locked, "lock released after abort")
			assert.Empty(t, f.ledger.entries)
			assert.Empty(t, f.workflow.triggered)
		})
	}
}

func TestRefresh_CanceledContextStillReleasesLock(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.datasets.truncateErr = context.Canceled
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.svc.Refresh(ctx, RefreshRequest{Method: model.RefreshMethodSystem, Truncate: true})
	cancel()
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.Len(t, f.ledger.released, 1)
}

func TestRefresh_WorkflowFailureDoesNotAbort(t *testing.T) {
	f := newRefreshFixture(t, func(f *refreshFixture) {
		f.workflow.err = errors.New("connection refused")
	})

	res, err := f.svc.Refresh(context.Background(), manual())
	require.NoError(t, err)

	assert.False(t, res.DerivedTriggered)
	require.Len(t, f.ledger.entries, 1)
}

func TestRefresh_LatestRefreshAndHistory(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	_, ok, err := f.svc.LatestRefresh(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Refresh(ctx, manual())
	require.NoError(t, err)

	latest, ok, err := f.svc.LatestRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, runNow, latest)

	history, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	running, err := f.svc.InProgress(ctx)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "lock_acquired", StateLockAcquired.String())
	assert.Equal(t, "finalizing", StateFinalizing.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", RunState(42).String())
}
