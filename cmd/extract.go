package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Append BLS observations of every valid series to the raw layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "extract", false)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Engine.Extract(ctx)
		printSummary(cmd.OutOrStdout(), sum.Snapshot())
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
