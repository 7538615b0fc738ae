package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

func (c *cli) newRefreshCmd() *cobra.Command {
	var (
		truncate      bool
		truncateAfter string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one manual refresh and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildRefreshRequest(truncate, truncateAfter)
			if err != nil {
				return err
			}
			return c.refresh(cmd.Context(), req)
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete all stored telemetry before pulling")
	cmd.Flags().StringVar(&truncateAfter, "truncate-after", "", "delete telemetry on or after this date (YYYY-MM-DD) before pulling")

	return cmd
}

// buildRefreshRequest validates the refresh flags.
func buildRefreshRequest(truncate bool, truncateAfter string) (application.RefreshRequest, error) {
	req := application.RefreshRequest{Method: model.RefreshMethodManual, Truncate: truncate}
	if truncateAfter != "" {
		after, err := time.ParseInLocation(time.DateOnly, truncateAfter, time.UTC)
		if err != nil {
			return application.RefreshRequest{}, fmt.Errorf("invalid --truncate-after %q: expected YYYY-MM-DD", truncateAfter)
		}
		req.TruncateAfter = &after
	}
	return req, nil
}

func (c *cli) refresh(parent context.Context, req application.RefreshRequest) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.refresh.Refresh(ctx, req)
	switch {
	case errors.Is(err, application.ErrRefreshInProgress):
		return errors.New("another refresh is in progress; try again once it finishes")
	case errors.Is(err, application.ErrProfileIncomplete):
		return errors.New("athlete profile is incomplete; fill it in with `fitpanel athlete set`")
	case err != nil:
		return err
	}

	if c.outputFormat == "json" {
		return printJSON(c.out, toRunOutput(res))
	}

	fmt.Fprintf(c.out, "Run %s complete in %s\n", formatRunID(res.RunID), res.Duration.Round(time.Millisecond))
	t := newTable(c.out, "PROVIDER", "STATUS")
	for _, p := range model.AllProviders {
		if s, ok := res.Statuses[p]; ok {
			t.AddRow(p.DisplayName(), s)
		}
	}
	t.Render()
	if res.DerivedTriggered {
		fmt.Fprintln(c.out, "Derived workflow triggered.")
	}
	return nil
}
