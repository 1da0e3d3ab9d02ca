package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
)

var (
	sumFlags statFlags
	sumTitle string
)

var summaryCmd = &cobra.Command{
	Use:   "summary <files...>",
	Short: "Aggregate filtered verification rows into one row of statistics",
	Long: `Reads MET partial-sum files, keeps the rows matching every --where condition
and reduces them to a single row of statistics. With --control the values
are differences against the control run, matched on the configured keys.`,
	Example: `  metstat summary 'exp/*_sl1l2.txt' -w FCST_VAR=TMP -w FCST_LEV=Z2 --agg
  metstat summary 'exp/*.txt' -c 'ctl/*.txt' -w FCST_VAR=TMP --ci --lag-corr -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conds, err := sumFlags.conditions()
		if err != nil {
			return err
		}
		opt, err := sumFlags.options(cmd)
		if err != nil {
			return err
		}
		format, err := sumFlags.reportFormat(cmd)
		if err != nil {
			return err
		}
		a, b, err := sumFlags.loadInputs(cmd, args)
		if err != nil {
			return err
		}
		a, b, err = subsetBoth(a, b, conds)
		if err != nil {
			return err
		}
		s, err := analysis.Aggregate(a, b, opt)
		if err != nil {
			observeSummaryErr(err)
			return fmt.Errorf("aggregate: %w", err)
		}
		metrics.Summaries.WithLabelValues("summary").Inc()
		logDropped(s.Dropped)
		logger.Info("summary computed", "method", string(s.Method), "rows", s.N, "total", s.Total, "diff", s.Diff)

		rep := &report.SummaryReport{Meta: newMeta(sumTitle, args, conds), Summary: s}
		return emit(cmd, rep, format, sumFlags.output)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	sumFlags.register(summaryCmd)
	summaryCmd.Flags().StringVar(&sumTitle, "title", "", "title recorded in the report header")
}
