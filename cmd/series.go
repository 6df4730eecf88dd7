package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/macro-cli/internal/macro/layer"
	"github.com/sells-group/macro-cli/internal/macro/report"
)

var (
	seriesUniverse   string
	seriesResumeFrom uint64
	seriesLimit      uint64
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Generate and validate series identifiers",
}

var seriesGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Enumerate candidate identifiers without checking them upstream",
	Long:  "Walks the cross product of each universe's code lists and prints the identifiers. With --limit the next cursor is printed so a later run can continue with --resume-from.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "discover", true)
		if err != nil {
			return err
		}
		defer env.Close()

		sum := report.New("generate")
		set, results, err := env.Engine.Generate(ctx, layer.GenerateOpts{
			Universe: seriesUniverse,
			Start:    seriesResumeFrom,
			Limit:    seriesLimit,
		}, sum)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, c := range set.Items() {
			_, _ = fmt.Fprintln(out, c.ID)
		}
		for _, r := range results {
			state := "more remaining"
			if r.Exhausted {
				state = "exhausted"
			}
			_, _ = fmt.Fprintf(os.Stderr, "%s: emitted %d, next cursor %d of %d (%s)\n",
				r.Universe, r.Emitted, r.Cursor, r.Total, state)
		}
		printSummary(os.Stderr, sum.Snapshot())
		return nil
	},
}

var seriesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Generate identifiers, check them upstream, and store the valid series",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "discover", true)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Engine.Discover(ctx, layer.GenerateOpts{
			Universe: seriesUniverse,
			Start:    seriesResumeFrom,
			Limit:    seriesLimit,
		})
		printSummary(cmd.OutOrStdout(), sum.Snapshot())
		return err
	},
}

var seriesValidateCmd = &cobra.Command{
	Use:   "validate [id...]",
	Short: "Check identifiers upstream",
	Long:  "Checks the given identifiers under --universe, or retries every stored unverified candidate when no ids are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) > 0 && seriesUniverse == "" {
			return fmt.Errorf("--universe is required when ids are given")
		}

		env, err := initEnv(ctx, "discover", true)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Engine.Validate(ctx, seriesUniverse, args)
		printSummary(cmd.OutOrStdout(), sum.Snapshot())
		return err
	},
}

func init() {
	seriesCmd.PersistentFlags().StringVar(&seriesUniverse, "universe", "", "restrict to one universe by name")
	for _, c := range []*cobra.Command{seriesGenerateCmd, seriesDiscoverCmd} {
		c.Flags().Uint64Var(&seriesResumeFrom, "resume-from", 0, "generator cursor to continue from")
		c.Flags().Uint64Var(&seriesLimit, "limit", 0, "max candidates per universe (0 = macro.max_candidates)")
	}
	seriesCmd.AddCommand(seriesGenerateCmd, seriesDiscoverCmd, seriesValidateCmd)
	rootCmd.AddCommand(seriesCmd)
}
