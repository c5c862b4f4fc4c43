package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"refinery/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(journalPath(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format(time.DateTime),
					run.Outcome,
					fmt.Sprintf("%d/%d", run.ItemsDone, run.TargetTotal),
					fmt.Sprintf("%d", run.BatchesCompleted),
					fmt.Sprintf("%d", run.BatchesSkipped),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Started", "Outcome", "Items", "Completed", "Skipped", "Duration"},
				rows, 3, 4, 5, 6))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
