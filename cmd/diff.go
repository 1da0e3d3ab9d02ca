package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
)

var (
	diffFlags statFlags
	diffTitle string
)

var diffCmd = &cobra.Command{
	Use:   "diff <files...> --control <files...>",
	Short: "Difference forecast and control statistics row by row",
	Long: `Derives statistics for every forecast and control row and differences each
forecast row against its unique control match. Rows with no match or with
several matches are listed in the report instead of being dropped silently.`,
	Example: `  metstat diff 'exp/*.txt' -c 'ctl/*.txt' -w FCST_VAR=TMP --stats RMSE --pct`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(diffFlags.control) == 0 {
			return fmt.Errorf("--control is required")
		}
		conds, err := diffFlags.conditions()
		if err != nil {
			return err
		}
		opt, err := diffFlags.options(cmd)
		if err != nil {
			return err
		}
		format, err := diffFlags.reportFormat(cmd)
		if err != nil {
			return err
		}
		a, b, err := diffFlags.loadInputs(cmd, args)
		if err != nil {
			return err
		}
		a, b, err = subsetBoth(a, b, conds)
		if err != nil {
			return err
		}
		res, err := analysis.PairwiseDiff(a, b, opt.LineType, opt.Diff)
		if err != nil {
			return fmt.Errorf("diff: %w", err)
		}
		metrics.Summaries.WithLabelValues("diff").Inc()
		logDropped(res.Dropped)
		if res.Len() == 0 {
			say(cmd, "⚠ Warning: no forecast row had a unique control match")
		}
		logger.Info("differences computed", "rows", res.Len(), "dropped", len(res.Dropped))

		rep := &report.DiffReport{Meta: newMeta(diffTitle, args, conds), Result: res, Percent: opt.Diff.Percent}
		return emit(cmd, rep, format, diffFlags.output)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffFlags.register(diffCmd)
	diffCmd.Flags().StringVar(&diffTitle, "title", "", "title recorded in the report header")
}
