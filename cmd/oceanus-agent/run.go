package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the diagnosis scheduler without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		ag, err := a.newAgent()
		if err != nil {
			return err
		}
		return ag.Start(ctx)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Diagnose one batch of pending exceptions and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		ag, err := a.newAgent()
		if err != nil {
			return err
		}
		summary := ag.RunBatch(ctx)
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables, indexes and the pgvector extension",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, batchCmd, migrateCmd)
}
