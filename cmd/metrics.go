package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro/export"
)

var metricsExport string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Recompute the analytics layer from the cleaned layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "metrics", false)
		if err != nil {
			return err
		}
		defer env.Close()

		a, sum, err := env.Engine.Analyze(ctx)
		printSummary(cmd.OutOrStdout(), sum.Snapshot())
		if err != nil {
			return err
		}

		if metricsExport == "" {
			return nil
		}
		meta, err := env.Store.ListSeries(ctx)
		if err != nil {
			return eris.Wrap(err, "list series for export")
		}
		if err := export.WriteXLSX(metricsExport, a, meta); err != nil {
			return err
		}
		zap.L().Info("analytics exported", zap.String("path", metricsExport))
		return nil
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsExport, "export", "", "also write the analytics layer to this .xlsx file")
	rootCmd.AddCommand(metricsCmd)
}
