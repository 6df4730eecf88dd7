package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Rebuild the cleaned layer from the raw layer",
	Long:  "Resolves every revision in the raw layer to one value per series and date, then replaces the cleaned layer in one transaction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "store", false)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Engine.Resolve(ctx)
		printSummary(cmd.OutOrStdout(), sum.Snapshot())
		return err
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
