package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

func (c *cli) newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest refresh and recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			latest, ok, err := a.refresh.LatestRefresh(ctx)
			if err != nil {
				return err
			}
			busy, err := a.refresh.InProgress(ctx)
			if err != nil {
				return err
			}
			history, err := a.refresh.History(ctx, limit)
			if err != nil {
				return err
			}
			rows, err := a.datasets.RowCounts(ctx)
			if err != nil {
				return err
			}

			if c.outputFormat == "json" {
				out := struct {
					Latest     *string          `json:"latest"`
					InProgress bool             `json:"in_progress"`
					History    []ledgerOutput   `json:"history"`
					Rows       map[string]int64 `json:"rows"`
				}{InProgress: busy, History: make([]ledgerOutput, 0, len(history)), Rows: rows}
				if ok {
					s := formatRunID(latest)
					out.Latest = &s
				}
				for _, e := range history {
					out.History = append(out.History, toLedgerOutput(e))
				}
				return printJSON(c.out, out)
			}

			if ok {
				fmt.Fprintf(c.out, "Latest refresh:  %s\n", formatRunID(latest))
			} else {
				fmt.Fprintln(c.out, "Latest refresh:  never")
			}
			fmt.Fprintf(c.out, "In progress:     %s\n\n", yesNo(busy))

			headers := []string{"RUN", "METHOD", "TRUNCATE"}
			for _, p := range model.AllProviders {
				headers = append(headers, p.DisplayName())
			}
			t := newTable(c.out, headers...)
			for _, e := range history {
				row := []string{formatRunID(e.RunID), string(e.Method), yesNo(e.Truncate)}
				for _, p := range model.AllProviders {
					row = append(row, orDash(e.Status(p)))
				}
				t.AddRow(row...)
			}
			t.Render()

			fmt.Fprintln(c.out)
			counts := newTable(c.out, "TABLE", "ROWS")
			for _, name := range slices.Sorted(maps.Keys(rows)) {
				counts.AddRow(name, strconv.FormatInt(rows[name], 10))
			}
			counts.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of ledger entries to show")
	return cmd
}
