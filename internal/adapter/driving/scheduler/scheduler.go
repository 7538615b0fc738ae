// Package scheduler drives periodic system refreshes from a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// Refresher is the use case a tick invokes.
type Refresher interface {
	Refresh(ctx context.Context, req application.RefreshRequest) (*application.RunResult, error)
}

var _ Refresher = (*application.RefreshService)(nil)

// Scheduler fires a system refresh on every cron tick. Overlapping ticks
// inside one process are skipped; overlap across processes is left to the
// ledger lock.
type Scheduler struct {
	refresher Refresher
	spec      string
	loc       *time.Location
}

// New validates spec (standard five-field cron or a descriptor such as
// @hourly) and returns a Scheduler evaluating it in loc.
func New(refresher Refresher, spec string, loc *time.Location) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{refresher: refresher, spec: spec, loc: loc}, nil
}

// Run performs one refresh immediately, then one per tick until ctx is
// canceled. It waits for an in-flight tick before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))

	c := cron.New(cron.WithLocation(s.loc), cron.WithLogger(logger))

	// Wrapped once so the immediate run and the ticks share one skip guard.
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(func() { s.Tick(ctx) }))
	if _, err := c.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("scheduling refresh: %w", err)
	}

	c.Start()
	slog.Info("refresh scheduler started", "schedule", s.spec, "timezone", s.loc.String())

	immediate := make(chan struct{})
	go func() {
		defer close(immediate)
		job.Run()
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	<-immediate
	slog.Info("refresh scheduler stopped")
	return nil
}

// Tick performs a single system refresh and logs its outcome.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := s.refresher.Refresh(ctx, application.RefreshRequest{Method: model.RefreshMethodSystem})
	switch {
	case err == nil:
		slog.Debug("scheduled refresh finished", "run_id", res.RunID, "duration", res.Duration.Round(time.Millisecond))
	case errors.Is(err, application.ErrRefreshInProgress):
		slog.Debug("scheduled refresh skipped: another run holds the lock")
	case errors.Is(err, application.ErrProfileIncomplete):
		slog.Debug("scheduled refresh skipped: athlete profile incomplete")
	default:
		slog.Error("scheduled refresh failed", "error", err)
	}
}
