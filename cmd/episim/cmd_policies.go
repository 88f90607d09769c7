package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"episim/internal/config"
	"episim/internal/intervention"
)

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the intervention policies and city presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tCOMPLIANCE\tMEASURES")
			for _, name := range intervention.Names() {
				c, err := intervention.Compliance(name)
				if err != nil {
					return err
				}
				p, err := intervention.Lookup(name, intervention.DefaultCalibrationLockdownDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%.1f\t%s\n", name, c, p)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "\ncities: %v\n", config.Cities())
			return err
		},
	}
}
