package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Divas-Gupta30/oceanus-agent/internal/devtool"
)

var (
	insertTemplate  string
	insertMessage   string
	insertErrorType string
	insertJobID     string
	statusJobID     string
	listLimit       int
)

var exceptionsCmd = &cobra.Command{
	Use:     "exceptions",
	Aliases: []string{"debug"},
	Short:   "Insert test exceptions and check diagnosis status",
}

func withTool(cmd *cobra.Command, fn func(*devtool.Tool) error) error {
	db, err := devtool.Open(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	return fn(devtool.New(db, cmd.OutOrStdout()))
}

var exceptionsInsertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a pending test exception",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTool(cmd, func(t *devtool.Tool) error {
			_, err := t.Insert(cmd.Context(), devtool.InsertOptions{
				Template:  insertTemplate,
				Message:   insertMessage,
				ErrorType: insertErrorType,
				JobID:     insertJobID,
			})
			return err
		})
	},
}

var exceptionsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the diagnosis of a job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTool(cmd, func(t *devtool.Tool) error {
			return t.Status(cmd.Context(), statusJobID)
		})
	},
}

var exceptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exceptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTool(cmd, func(t *devtool.Tool) error {
			return t.List(cmd.Context(), listLimit)
		})
	},
}

func init() {
	exceptionsInsertCmd.Flags().StringVar(&insertTemplate, "type", "checkpoint",
		"error template ("+strings.Join(devtool.TemplateNames(), ", ")+")")
	exceptionsInsertCmd.Flags().StringVar(&insertMessage, "msg", "", "custom error message")
	exceptionsInsertCmd.Flags().StringVar(&insertErrorType, "error-type", "", "custom error type label")
	exceptionsInsertCmd.Flags().StringVar(&insertJobID, "job-id", "", "custom job id")

	exceptionsStatusCmd.Flags().StringVar(&statusJobID, "job-id", "", "job id to check")
	_ = exceptionsStatusCmd.MarkFlagRequired("job-id")

	exceptionsListCmd.Flags().IntVar(&listLimit, "limit", 10, "number of records to show")

	exceptionsCmd.AddCommand(exceptionsInsertCmd, exceptionsStatusCmd, exceptionsListCmd)
	rootCmd.AddCommand(exceptionsCmd)
}
