// Command episim runs agent-based epidemic simulations of a city.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "episim",
		Short:         "Agent-based epidemic simulator",
		Long:          `Simulates the spread of an infection through the households, workplaces, schools, wards and transit of a city under a chosen intervention policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newPoliciesCmd(), newValidateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "episim:", err)
		stop()
		os.Exit(1)
	}
}
