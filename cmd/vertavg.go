package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
)

var (
	vaFlags statFlags
	vaTitle string
	vaCoord string
	vaMin   float64
	vaMax   float64
	vaLayer []string
)

var vertavgCmd = &cobra.Command{
	Use:   "vertavg <files...>",
	Short: "Average statistics over a band of vertical levels",
	Long: `Keeps the rows whose FCST_LEV falls inside the band, groups them by lead,
valid time, variable and observation type, and aggregates each group.
Ranged levels such as P850-500 never fall inside a band.`,
	Example: `  metstat vertavg 'exp/*.txt' -w FCST_VAR=TMP --vmin 100 --vmax 1000
  metstat vertavg 'exp/*.txt' -c 'ctl/*.txt' --layer P1000,P250 --agg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		band, err := bandFromFlags(cmd)
		if err != nil {
			return err
		}
		conds, err := vaFlags.conditions()
		if err != nil {
			return err
		}
		opt, err := vaFlags.options(cmd)
		if err != nil {
			return err
		}
		format, err := vaFlags.reportFormat(cmd)
		if err != nil {
			return err
		}
		a, b, err := vaFlags.loadInputs(cmd, args)
		if err != nil {
			return err
		}
		a, b, err = subsetBoth(a, b, conds)
		if err != nil {
			return err
		}
		res, err := analysis.VerticalAverage(a, b, band, opt)
		if err != nil {
			observeSummaryErr(err)
			return fmt.Errorf("vertical average: %w", err)
		}
		metrics.Summaries.WithLabelValues("vertavg").Add(float64(len(res.Rows)))
		for _, row := range res.Rows {
			logDropped(row.Summary.Dropped)
		}
		for _, sk := range res.Skipped {
			logger.Warn("vertical average group skipped",
				"lead", sk.Key.Lead, "valid", sk.Key.ValidBeg, "var", sk.Key.Var, "obtype", sk.Key.ObType,
				"reason", sk.Reason)
		}
		logger.Info("vertical average computed", "band", band.String(), "groups", len(res.Rows), "skipped", len(res.Skipped))

		rep := &report.VerticalReport{Meta: newMeta(vaTitle, args, conds), Result: res}
		return emit(cmd, rep, format, vaFlags.output)
	},
}

// bandFromFlags starts from the configured band; --layer replaces it and
// --vcoord/--vmin/--vmax adjust single bounds.
func bandFromFlags(cmd *cobra.Command) (analysis.Band, error) {
	fs := cmd.Flags()
	if fs.Changed("layer") {
		if len(vaLayer) != 2 {
			return analysis.Band{}, fmt.Errorf("--layer wants two levels, e.g. P1000,P100")
		}
		return analysis.ParseBand(vaLayer[0], vaLayer[1])
	}
	band := cfg.Band()
	if fs.Changed("vcoord") {
		if len(vaCoord) != 1 {
			return band, fmt.Errorf("--vcoord %q must be a single character", vaCoord)
		}
		band.Coord = vaCoord[0]
	}
	if fs.Changed("vmin") {
		band.Min = vaMin
	}
	if fs.Changed("vmax") {
		band.Max = vaMax
	}
	if band.Min > band.Max {
		return band, fmt.Errorf("band minimum %g above maximum %g", band.Min, band.Max)
	}
	return band, nil
}

func init() {
	rootCmd.AddCommand(vertavgCmd)
	vaFlags.register(vertavgCmd)
	f := vertavgCmd.Flags()
	f.StringVar(&vaTitle, "title", "", "title recorded in the report header")
	f.StringVar(&vaCoord, "vcoord", "", "vertical coordinate letter, e.g. P or Z (default from config)")
	f.Float64Var(&vaMin, "vmin", 0, "lowest level value in the band (default from config)")
	f.Float64Var(&vaMax, "vmax", 0, "highest level value in the band (default from config)")
	f.StringSliceVar(&vaLayer, "layer", nil, "band as two levels, e.g. P1000,P100")
}
