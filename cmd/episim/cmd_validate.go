package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newValidateCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without running it",
		Long:  `Loads the configuration and flags exactly as 'run' does, validates them and, when a data directory is set, builds the city to check the dataset.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			if _, err := cfg.Schedule(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.DataDir != "" {
				if _, err := setup(cfg, zap.NewNop()); err != nil {
					return err
				}
				fmt.Fprintf(out, "dataset %s: ok\n", cfg.DataDir)
			}
			_, err = fmt.Fprintf(out, "config ok: %d days, policy %s, seeding %s\n",
				cfg.Days, cfg.PolicyLabel(), cfg.Seeding.Mode)
			return err
		},
	}
	f.register(cmd)
	return cmd
}
