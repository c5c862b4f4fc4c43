package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"refinery/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the environment is ready for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results, ok := preflight.Run(cfg)
			printPreflight(cmd, results)
			if !ok {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
}
