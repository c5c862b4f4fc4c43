package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"refinery/internal/config"
	"refinery/internal/journal"
	"refinery/internal/pipeline"
	"refinery/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and refine propositions until the target is reached",
		Long: "Run resumes from whatever the data directory already holds: finished\n" +
			"batches are skipped, half-refined batches continue from their last\n" +
			"completed stage, and fresh batches are generated only for the shortfall.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			if !skipPreflight {
				results, ok := preflight.Run(cfg)
				if !ok {
					printPreflight(cmd, results)
					return fmt.Errorf("preflight checks failed")
				}
			}

			deps, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, runErr := deps.driver.Run(runCtx)
			if err := recordRun(cfg, summary); err != nil {
				logger.Warn("failed to record run history", "error", err)
			}
			printSummary(cmd, summary)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before running")
	return cmd
}

// recordRun appends the finished run to the history journal. History is
// best-effort bookkeeping, so failures are reported but never fail the run.
func recordRun(cfg *config.Config, summary pipeline.Summary) error {
	store, err := journal.Open(journalPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Record(context.Background(), journal.Run{
		RunID:            summary.RunID,
		StartedAt:        summary.StartedAt,
		FinishedAt:       summary.FinishedAt,
		Outcome:          string(summary.Outcome),
		TargetTotal:      summary.TargetTotal,
		ItemsDone:        summary.ItemsDone,
		BatchesCompleted: summary.BatchesCompleted,
		BatchesSkipped:   summary.BatchesSkipped,
	})
}

func printSummary(cmd *cobra.Command, summary pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s %s in %s\n", summary.RunID, summary.Outcome, summary.Duration().Round(time.Second))
	fmt.Fprintf(out, "  items done:        %d / %d\n", summary.ItemsDone, summary.TargetTotal)
	fmt.Fprintf(out, "  batches completed: %d\n", summary.BatchesCompleted)
	if summary.BatchesSkipped > 0 {
		numbers := make([]string, 0, len(summary.SkippedBatches))
		for _, number := range summary.SkippedBatches {
			numbers = append(numbers, fmt.Sprintf("%d", number))
		}
		fmt.Fprintf(out, "  batches skipped:   %d (%s)\n", summary.BatchesSkipped, strings.Join(numbers, ", "))
	}
	if summary.GenerationFailures > 0 {
		fmt.Fprintf(out, "  failed generations: %d\n", summary.GenerationFailures)
	}
	if summary.Outcome == pipeline.OutcomeInterrupted {
		fmt.Fprintln(out, "  interrupted; rerun to resume from the last completed stage")
	}
}

func printPreflight(cmd *cobra.Command, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if !result.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{result.Name, status, result.Message})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows))
}
