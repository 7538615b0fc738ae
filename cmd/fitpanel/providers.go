package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

func (c *cli) newProvidersCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show provider configuration, credentials and data freshness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.health.Report(ctx, probe)
			if c.outputFormat == "json" {
				return printJSON(c.out, report)
			}

			t := newTable(c.out, "PROVIDER", "CONFIGURED", "CREDENTIALS", "CONNECTED", "LATEST", "FRESHNESS", "ERROR")
			for _, h := range report {
				connected := "-"
				if probe && h.HasCredentials {
					connected = yesNo(h.Connected)
				}
				latest := "-"
				if h.LatestRecord != nil {
					latest = h.LatestRecord.UTC().Format(time.DateTime)
				}
				t.AddRow(h.Name, yesNo(h.Configured), yesNo(h.HasCredentials), connected, latest, h.Freshness.String(), orDash(h.Error))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "make one authenticated call to each provider with credentials")
	cmd.AddCommand(c.newDisconnectCmd())
	return cmd
}

func (c *cli) newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <provider>",
		Short: "Delete the stored credentials of a provider",
		Long: `Delete the stored OAuth credentials of a provider. Its data stays in the
database; the next refresh records "no credentials" until it is connected again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseProviderID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.credentials.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s disconnected.\n", id.DisplayName())
			return nil
		},
	}
}
