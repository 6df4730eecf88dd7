package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/macro-cli/internal/macro"
	"github.com/sells-group/macro-cli/internal/monitoring"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the run log",
	Long:  "Displays recent stage runs and the health of each stage over monitoring.lookback_hours.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListRuns(ctx)
		if err != nil {
			return eris.Wrap(err, "macro status")
		}
		if len(entries) == 0 {
			zap.L().Info("no runs found, run 'macro-cli run' to start the pipeline")
			return nil
		}
		if statusLimit > 0 && len(entries) > statusLimit {
			entries = entries[:statusLimit]
		}

		formatRunEntries(os.Stdout, entries)

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackHours)
		if err != nil {
			return eris.Wrap(err, "collect run health")
		}
		formatHealth(os.Stdout, snap)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "max runs to list (0 = all)")
	rootCmd.AddCommand(statusCmd)
}

// formatRunEntries writes a tabular representation of run entries to out.
func formatRunEntries(out io.Writer, entries []macro.RunEntry) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTAGE\tSTATUS\tSTARTED\tDURATION\tROWS\tSKIPPED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------\t--------\t----\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Stage,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			p.Sprintf("%d", e.RowsWritten),
			p.Sprintf("%d", e.Skipped),
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

// formatHealth writes the per-stage health summary to out.
func formatHealth(out io.Writer, snap *monitoring.HealthSnapshot) {
	_, _ = fmt.Fprintf(out, "\nlast %dh: %d runs, %d complete, %d failed, %d running (fail rate %.0f%%)\n",
		snap.LookbackHours, snap.Total, snap.Complete, snap.Failed, snap.Running, snap.FailRate*100)
	for _, s := range snap.Stages {
		last := "never"
		if s.LastSuccess != nil {
			last = s.LastSuccess.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(out, "  %-10s %d runs, %d failed, last %s, last success %s\n",
			s.Stage, s.Runs, s.Failed, s.LastStatus, last)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
