package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/fitpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/fitpanel/internal/adapter/driving/scheduler"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the scheduled refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	cfg := c.cfg

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(a.refresh, cfg.RefreshSchedule, cfg.Location)
	if err != nil {
		return err
	}

	logger := slog.Default()
	apiHandler := httphandler.NewHandler(ctx, a.refresh, a.health, a.connector, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger, a.recorder, a.recorder.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		if err := sched.Run(ctx); err != nil {
			slog.Error("scheduler error", "error", err)
		}
	})

	slog.Info("fitpanel started",
		"listen_addr", cfg.ListenAddr,
		"schedule", cfg.RefreshSchedule,
		"timezone", cfg.Location.String(),
		"providers", len(a.registry.Pullers()),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		slog.Error("http server error", "error", runErr)
		stop()
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// An in-flight run sees the canceled context, aborts and releases the lock.
	wg.Wait()

	slog.Info("shutdown complete")
	return runErr
}
