package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"refinery/internal/logging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-stage progress derived from the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			deps, err := buildPipeline(cfg, logging.NewNop())
			if err != nil {
				return err
			}

			counts, err := deps.tracker.Counts()
			if err != nil {
				return err
			}
			completed, err := deps.tracker.CompletedItems()
			if err != nil {
				return err
			}
			remaining, err := deps.tracker.RemainingBatches(cfg.Pipeline.TargetTotal, cfg.Pipeline.BatchSize)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(counts))
			for _, count := range counts {
				rows = append(rows, []string{
					count.Location.String(),
					fmt.Sprintf("%d", count.Batches),
					fmt.Sprintf("%d", count.Items),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Location", "Batches", "Items"}, rows, 2, 3))
			fmt.Fprintf(out, "\ncompleted %d of %d items; %d batch(es) still needed\n",
				completed, cfg.Pipeline.TargetTotal, remaining)
			return nil
		},
	}
}
