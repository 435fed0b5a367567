package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Divas-Gupta30/oceanus-agent/internal/ingestion"
)

var (
	ingestCategory string
	ingestBaseURL  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Index Flink documentation (.md, .txt, .pdf) into the docs collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		in := ingestion.NewIngester(a.store, a.embedder, ingestion.Options{
			Category: ingestCategory,
			BaseURL:  ingestBaseURL,
		}, logger)
		res, err := in.IngestDir(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d chunks), skipped %d\n", res.Files, res.Chunks, len(res.Skipped))
		return nil
	},
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect and seed the knowledge base",
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector collection sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", cyan("Collection Statistics:"))
		for _, s := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d entities\n", s.Name, s.NumEntities)
		}
		return nil
	},
}

var kbSeedCmd = &cobra.Command{
	Use:   "seed <cases.yaml>",
	Short: "Load hand-written knowledge cases from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		cases, err := ingestion.LoadSeedCases(f)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := ingestion.SeedCases(cmd.Context(), a.store, a.embedder, cases, logger)
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d cases\n", n, len(cases))
		return err
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category stored with every snippet")
	ingestCmd.Flags().StringVar(&ingestBaseURL, "base-url", "", "URL prefix joined with each file's relative path")

	kbCmd.AddCommand(kbStatsCmd, kbSeedCmd)
	rootCmd.AddCommand(ingestCmd, kbCmd)
}
