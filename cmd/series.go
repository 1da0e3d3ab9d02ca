package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

var (
	serFlags     statFlags
	serTitle     string
	serName      string
	serStat      string
	serLeads     []int
	serSawLeads  []int
	serCoord     string
	serExclude   []string
	serInits     []string
	serInitEvery int
	serLevel     string
	serLayer     []string
)

// seriesShape carries the kind-specific inputs of a series.
type seriesShape struct {
	Kind    analysis.SeriesKind
	Leads   []int
	Coord   byte
	Exclude []string
	Inits   []time.Time
	Level   string
	Band    *analysis.Band
}

// buildSeries dispatches to the builder for shape.Kind and names every
// resulting curve.
func buildSeries(in analysis.SeriesInput, shape seriesShape, name string) ([]*analysis.Series, error) {
	var out []*analysis.Series
	switch shape.Kind {
	case analysis.KindDieOff:
		if len(shape.Leads) == 0 {
			return nil, fmt.Errorf("dieoff needs at least one lead")
		}
		s, err := analysis.DieOff(in, shape.Leads)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	case analysis.KindProfile:
		s, err := analysis.Profile(in, shape.Coord, shape.Exclude)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	case analysis.KindTimeSeries:
		s, err := analysis.TimeSeries(in)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	case analysis.KindSawtooth:
		if len(shape.Inits) == 0 || len(shape.Leads) == 0 {
			return nil, fmt.Errorf("sawtooth needs initialization times and leads")
		}
		cycles, err := analysis.Sawtooth(in, analysis.SawtoothOptions{
			Inits: shape.Inits,
			Leads: shape.Leads,
			Level: shape.Level,
			Band:  shape.Band,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range cycles {
			s.Name = name + " " + s.Name
		}
		return cycles, nil
	default:
		return nil, fmt.Errorf("unknown series kind %q", shape.Kind)
	}
	for _, s := range out {
		s.Name = name
	}
	return out, nil
}

// defaultStat is the statistic plotted when none is requested.
func defaultStat(lt verif.LineType) analysis.Stat {
	if lt == verif.Vector {
		return analysis.VectRMSE
	}
	return analysis.RMSE
}

var initLayouts = []string{verif.ValidTimeLayout, "2006010215", "20060102", time.RFC3339}

// parseInitTime accepts MET valid-time stamps, YYYYMMDDHH cycles or RFC 3339.
func parseInitTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range initLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid initialization time %q (use YYYYMMDD_HHMMSS, YYYYMMDDHH or RFC 3339)", s)
}

// parseInits parses explicit cycles, or with every > 0 expands the first two
// values into every cycle from start to end inclusive.
func parseInits(raw []string, every int) ([]time.Time, error) {
	var out []time.Time
	for _, r := range raw {
		t, err := parseInitTime(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if every <= 0 {
		return out, nil
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("a cycle interval needs exactly a start and an end time")
	}
	start, end := out[0], out[1]
	if end.Before(start) {
		return nil, fmt.Errorf("cycle end %s before start %s", end.Format(verif.ValidTimeLayout), start.Format(verif.ValidTimeLayout))
	}
	out = out[:0]
	for t := start; !t.After(end); t = t.Add(time.Duration(every) * time.Hour) {
		out = append(out, t)
	}
	return out, nil
}

func runSeries(kind analysis.SeriesKind) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conds, err := serFlags.conditions()
		if err != nil {
			return err
		}
		opt, err := serFlags.options(cmd)
		if err != nil {
			return err
		}
		format, err := serFlags.reportFormat(cmd)
		if err != nil {
			return err
		}
		st := defaultStat(opt.LineType)
		if cmd.Flags().Changed("stat") {
			if st, err = analysis.ParseStat(serStat, opt.LineType); err != nil {
				return err
			}
		}
		shape := seriesShape{Kind: kind, Leads: serLeads, Exclude: serExclude, Level: serLevel}
		if kind == analysis.KindSawtooth {
			shape.Leads = serSawLeads
		}
		if kind == analysis.KindProfile {
			if len(serCoord) != 1 {
				return fmt.Errorf("--vcoord %q must be a single character", serCoord)
			}
			shape.Coord = serCoord[0]
		}
		if kind == analysis.KindSawtooth {
			if shape.Inits, err = parseInits(serInits, serInitEvery); err != nil {
				return err
			}
			if len(serLayer) > 0 {
				if len(serLayer) != 2 {
					return fmt.Errorf("--layer wants two levels, e.g. P1000,P100")
				}
				band, err := analysis.ParseBand(serLayer[0], serLayer[1])
				if err != nil {
					return err
				}
				shape.Band = &band
			}
		}
		a, b, err := serFlags.loadInputs(cmd, args)
		if err != nil {
			return err
		}
		in := analysis.SeriesInput{Forecast: a, Control: b, Conditions: conds, Stat: st, Options: opt}
		name := serName
		if name == "" {
			name = "forecast"
		}
		series, err := buildSeries(in, shape, name)
		if err != nil {
			observeSummaryErr(err)
			return fmt.Errorf("%s: %w", kind, err)
		}
		observeSeries(kind, series)
		rep := &report.SeriesReport{Meta: newMeta(serTitle, args, conds), Series: series}
		return emit(cmd, rep, format, serFlags.output)
	}
}

// observeSeries logs gaps and dropped rows and counts computed points.
func observeSeries(kind analysis.SeriesKind, series []*analysis.Series) {
	for _, s := range series {
		for _, p := range s.Points {
			if p.Summary == nil {
				logger.Warn("series point has no rows", "series", s.Name, "point", p.Label)
				continue
			}
			metrics.Summaries.WithLabelValues("series").Inc()
			logDropped(p.Summary.Dropped)
		}
		logger.Info("series computed", "kind", string(kind), "series", s.Name, "points", len(s.Points), "gaps", s.Gaps())
	}
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Compute the data behind die-off, profile, time series and sawtooth plots",
}

var seriesDieoffCmd = &cobra.Command{
	Use:     "dieoff <files...>",
	Short:   "Statistic against forecast lead",
	Example: `  metstat series dieoff 'exp/*.txt' -w FCST_VAR=TMP -w FCST_LEV=Z2 --leads 0,6,12,24 --agg`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSeries(analysis.KindDieOff),
}

var seriesProfileCmd = &cobra.Command{
	Use:     "profile <files...>",
	Short:   "Statistic against vertical level",
	Example: `  metstat series profile 'exp/*.txt' -w FCST_VAR=TMP -w FCST_LEAD=240000 --exclude P1000`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSeries(analysis.KindProfile),
}

var seriesTimeseriesCmd = &cobra.Command{
	Use:     "timeseries <files...>",
	Short:   "Statistic against valid time",
	Example: `  metstat series timeseries 'exp/*.txt' -w FCST_VAR=TMP -w FCST_LEV=Z2 -w FCST_LEAD=240000`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSeries(analysis.KindTimeSeries),
}

var seriesSawtoothCmd = &cobra.Command{
	Use:   "sawtooth <files...>",
	Short: "Statistic against valid time, one curve per forecast cycle",
	Example: `  metstat series sawtooth 'exp/*.txt' -w FCST_VAR=TMP --init 2022020100,2022020300 --init-every 24 --leads 0,6,12,24 --level Z2
  metstat series sawtooth 'exp/*.txt' -w FCST_VAR=TMP --init 2022020100 --leads 0,12,24 --layer P1000,P100`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeries(analysis.KindSawtooth),
}

func init() {
	rootCmd.AddCommand(seriesCmd)
	for _, c := range []*cobra.Command{seriesDieoffCmd, seriesProfileCmd, seriesTimeseriesCmd, seriesSawtoothCmd} {
		seriesCmd.AddCommand(c)
		serFlags.register(c)
		f := c.Flags()
		f.StringVar(&serTitle, "title", "", "title recorded in the report header")
		f.StringVar(&serName, "name", "", "curve name, e.g. the experiment name (default \"forecast\")")
		f.StringVarP(&serStat, "stat", "s", "", "plotted statistic (default RMSE, or VECT_RMSE for vl1l2)")
	}
	seriesDieoffCmd.Flags().IntSliceVar(&serLeads, "leads", []int{0, 6, 12, 18, 24, 36, 48, 72, 96, 120}, "forecast leads in hours")
	seriesProfileCmd.Flags().StringVar(&serCoord, "vcoord", "P", "vertical coordinate letter of the profile levels")
	seriesProfileCmd.Flags().StringSliceVar(&serExclude, "exclude", nil, "levels to leave out, e.g. P1000")
	st := seriesSawtoothCmd.Flags()
	st.IntSliceVar(&serSawLeads, "leads", []int{0, 6, 12, 18, 24}, "forecast leads in hours")
	st.StringSliceVar(&serInits, "init", nil, "initialization times (YYYYMMDD_HHMMSS, YYYYMMDDHH or RFC 3339)")
	st.IntVar(&serInitEvery, "init-every", 0, "expand --init START,END into cycles this many hours apart")
	st.StringVar(&serLevel, "level", "", "single FCST_LEV for every point")
	st.StringSliceVar(&serLayer, "layer", nil, "average each point over two levels, e.g. P1000,P100")
}
