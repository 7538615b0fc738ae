package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/fitpanel/internal/config"
)

// cli carries state shared by every subcommand once the root's pre-run has
// loaded configuration.
type cli struct {
	envFile      string
	outputFormat string
	cfg          *config.Config
	out          io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}

	root := &cobra.Command{
		Use:   "fitpanel",
		Short: "fitpanel - fitness telemetry refresh orchestrator",
		Long: `fitpanel pulls activity, readiness, body composition and strength data
from their providers into a local SQLite database, one locked refresh run at a time.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading FITPANEL_* variables")
	root.PersistentFlags().StringVarP(&c.outputFormat, "output", "o", "table", "output format: table, json")

	root.AddCommand(c.newServeCmd())
	root.AddCommand(c.newRefreshCmd())
	root.AddCommand(c.newStatusCmd())
	root.AddCommand(c.newProvidersCmd())
	root.AddCommand(c.newAthleteCmd())

	return root
}

// init loads the dotenv file (a missing file is fine), reads configuration
// and installs the default logger.
func (c *cli) init() error {
	if c.outputFormat != "table" && c.outputFormat != "json" {
		return fmt.Errorf("invalid output format %q: expected table or json", c.outputFormat)
	}

	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg

	slog.SetDefault(newLogger(os.Stderr, cfg))
	return nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
