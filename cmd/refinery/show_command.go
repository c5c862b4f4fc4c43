package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"refinery/internal/batch"
	"refinery/internal/logging"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var stageFlag int

	cmd := &cobra.Command{
		Use:   "show <batch-number>",
		Short: "Print the items of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 {
				return fmt.Errorf("batch number must be a positive integer, got %q", args[0])
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			deps, err := buildPipeline(cfg, logging.NewNop())
			if err != nil {
				return err
			}

			loc := batch.Origin
			if stageFlag > 0 {
				if stageFlag > cfg.Pipeline.StageCount {
					return fmt.Errorf("stage %d out of range 1..%d", stageFlag, cfg.Pipeline.StageCount)
				}
				loc = batch.Stage(stageFlag)
			}

			items, err := deps.store.Read(loc, number)
			if err != nil {
				return err
			}

			title := cases.Title(language.English)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "batch %d at %s (%d items)\n\n", number, loc, len(items))
			for i, item := range items {
				fmt.Fprintf(out, "%2d. [%s] %s\n", i+1, title.String(item.Domain), item.Proposition)
				fmt.Fprintf(out, "    created %s\n", item.Timestamp)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&stageFlag, "stage", 0, "Stage to read from (0 = unrefined origin)")
	return cmd
}
