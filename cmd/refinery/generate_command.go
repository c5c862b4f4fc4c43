package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var batches int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fresh source batches without refining them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if batches < 1 {
				return fmt.Errorf("--batches must be at least 1, got %d", batches)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			deps, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			for i := 0; i < batches; i++ {
				number, err := deps.generator.NextNumber()
				if err != nil {
					return err
				}
				items, err := deps.generator.GenerateBatch(runCtx, number, cfg.Pipeline.BatchSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "generated batch %d (%d items)\n", number, len(items))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batches, "batches", 1, "Number of batches to generate")
	return cmd
}
