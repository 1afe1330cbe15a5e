package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var collectMaxPostings int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass and print its summary",
	Long: `Logs in to the recruiting portal, walks every active posting and saves new applicant resumes.
The run summary is printed to stdout as JSON.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().IntVar(&collectMaxPostings, "max-postings", 0, "Process at most this many postings (0 means all)")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-postings") {
		cfg.Collector.MaxPostings = collectMaxPostings
	}
	if err := cfg.RequireCollector(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	res, runErr := a.collector().Run(ctx)
	if res != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return runErr
}
