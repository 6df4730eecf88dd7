package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/macro/layer"
	"github.com/sells-group/macro-cli/internal/monitoring"
)

var (
	runDiscover bool
	runSchedule string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full layer transition",
	Long:  "Runs extract, resolve and metrics in order (optionally preceded by discovery). With --schedule the run repeats on a cron schedule until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "run", runDiscover)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := layer.RunOpts{Discover: runDiscover}
		schedule := runSchedule
		if schedule == "" {
			schedule = cfg.Macro.Schedule
		}
		if schedule == "" {
			return runOnce(ctx, cmd, env, opts)
		}
		return runScheduled(ctx, cmd, env, opts, schedule)
	},
}

func runOnce(ctx context.Context, cmd *cobra.Command, env *macroEnv, opts layer.RunOpts) error {
	sum, err := env.Engine.Run(ctx, opts)
	printSummary(cmd.OutOrStdout(), sum.Snapshot())
	alertOnHealth(ctx, env)
	return err
}

// runScheduled repeats the run on spec. A run still in progress when the
// next tick fires causes that tick to be skipped.
func runScheduled(ctx context.Context, cmd *cobra.Command, env *macroEnv, opts layer.RunOpts, spec string) error {
	log := zap.L().With(zap.String("component", "macro.schedule"), zap.String("schedule", spec))

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if err := runOnce(ctx, cmd, env, opts); err != nil {
			log.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "parse schedule %q", spec)
	}

	c.Start()
	log.Info("scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler stopped")
	return nil
}

// alertOnHealth posts webhook alerts for failing or stale stages.
func alertOnHealth(ctx context.Context, env *macroEnv) {
	if cfg.Monitoring.WebhookURL == "" {
		return
	}
	snap, err := monitoring.NewCollector(env.Store).Collect(ctx, cfg.Monitoring.LookbackHours)
	if err != nil {
		zap.L().Warn("run health not collected", zap.Error(err))
		return
	}
	alerter := monitoring.NewAlerter(cfg.Monitoring)
	if alerts := alerter.Evaluate(snap); len(alerts) > 0 {
		sent := alerter.SendAlerts(ctx, alerts)
		zap.L().Info("alerts evaluated", zap.Int("alerts", len(alerts)), zap.Int("sent", sent))
	}
}

func init() {
	runCmd.Flags().BoolVar(&runDiscover, "discover", false, "discover and validate identifiers before extracting")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron expression; repeat the run until interrupted (default macro.schedule)")
	rootCmd.AddCommand(runCmd)
}
