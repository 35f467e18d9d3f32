package main

import (
	"github.com/spf13/cobra"

	"autoapply-backend/internal/bootstrap"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/shared/storage/db"
	"autoapply-backend/internal/shared/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the interval scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		defer telemetry.Sync()

		app, err := loadApp(ctx, bootstrap.Options{
			WithRouter:    true,
			WithScheduler: true,
			DBOptions:     db.DefaultServerOptions(),
		})
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Serve(ctx)
	},
}

var applyAll bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		defer telemetry.Sync()

		app, err := loadApp(ctx, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		filtered := app.Config.Apply.Filtered
		if cmd.Flags().Changed("all") {
			filtered = !applyAll
		}
		res, err := app.Service.TryRun(ctx, runs.TriggerCLI, filtered)
		if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
			return werr
		}
		return err
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the configured session cookies are still valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		defer telemetry.Sync()

		app, err := loadApp(ctx, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Service.Verify(ctx); err != nil {
			return err
		}
		cmd.Println("session ok")
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List merged listings from both sources without applying",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		defer telemetry.Sync()

		app, err := loadApp(ctx, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		list, err := app.Service.ListJobs(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), list)
	},
}

func init() {
	runCmd.Flags().BoolVar(&applyAll, "all", false, "apply to every listing instead of keyword matches")
}
