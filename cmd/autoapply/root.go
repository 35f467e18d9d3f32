package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"autoapply-backend/internal/bootstrap"
	"autoapply-backend/internal/shared/config"
	"autoapply-backend/internal/shared/storage/db"
	"autoapply-backend/internal/shared/telemetry"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "autoapply",
	Short: "Discover job listings and apply to them on a schedule",
	Long: `autoapply verifies a logged-in recruiting-site session, walks the
opportunity and job-search listings, filters them by keyword and submits
applications one at a time.

Examples:
  autoapply serve          # HTTP API plus hourly scheduler
  autoapply run            # one keyword-filtered pass, JSON to stdout
  autoapply run --all      # apply to every listing
  autoapply verify         # check the session cookies only
  autoapply jobs           # list merged listings without applying`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("AUTOAPPLY_CONFIG", configPath); err != nil {
				return errors.Wrap(err, "set config path")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to autoapply.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, runCmd, verifyCmd, jobsCmd)
}

// loadApp reads configuration, initializes logging and builds the app.
func loadApp(ctx context.Context, opts bootstrap.Options) (*bootstrap.App, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := telemetry.Init(telemetry.Config{Format: cfg.Log.Format, Level: cfg.Log.Level}); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	if opts.DBOptions == (db.Options{}) {
		opts.DBOptions = db.DefaultCLIOptions()
	}
	return bootstrap.Build(ctx, cfg, opts)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
