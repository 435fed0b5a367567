// Command oceanus-agent diagnoses failed Flink jobs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "oceanus-agent",
	Short:         "Automated Flink job exception diagnosis",
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, err := logging.New(cfg.App.Env, cfg.App.LogLevel)
		if err != nil {
			return err
		}
		logger = l.With(zap.String("service", "oceanus-agent"))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
