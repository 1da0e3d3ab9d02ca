package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/parser"
	"github.com/KaramelBytes/metstat-cli/internal/report"
	"github.com/KaramelBytes/metstat-cli/internal/utils"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// statFlags are the filtering and aggregation flags shared by the analysis
// commands. Each command owns its own instance.
type statFlags struct {
	control   []string
	where     []string
	lineType  string
	agg       bool
	ci        bool
	ciMethod  string
	ciLevel   float64
	lagCorr   bool
	mats      bool
	resamples int
	seed      uint64
	stats     []string
	pct       bool
	match     []string
	format    string
	output    string
}

func (f *statFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.control, "control", "c", nil, "control run files or globs; statistics become forecast minus control")
	fs.StringArrayVarP(&f.where, "where", "w", nil, "row condition COLUMN=value (prefix not_ to exclude); repeatable")
	fs.StringVarP(&f.lineType, "line-type", "l", "", "line type: sl1l2|vl1l2 (default from config)")
	fs.BoolVar(&f.agg, "agg", false, "aggregate partial sums weighted by TOTAL instead of averaging per-row statistics")
	fs.BoolVar(&f.ci, "ci", false, "compute confidence intervals (forces per-row averaging)")
	fs.StringVar(&f.ciMethod, "ci-method", "", "confidence interval method: t_dist|bootstrap (default from config)")
	fs.Float64Var(&f.ciLevel, "ci-level", 0, "confidence level in (0,1) (default from config)")
	fs.BoolVar(&f.lagCorr, "lag-corr", false, "inflate the t interval for lag-1 autocorrelation")
	fs.BoolVar(&f.mats, "mats", false, "use the MATS standard error with --lag-corr")
	fs.IntVar(&f.resamples, "resamples", 0, "bootstrap resamples (default from config)")
	fs.Uint64Var(&f.seed, "seed", 0, "bootstrap seed; 0 seeds from the clock (default from config)")
	fs.StringSliceVar(&f.stats, "stats", nil, "statistics to difference (default: all for the line type)")
	fs.BoolVar(&f.pct, "pct", false, "report differences as percent of the control")
	fs.StringSliceVar(&f.match, "match", nil, "match key columns for differences (default from config)")
	fs.StringVarP(&f.format, "format", "f", "", "output format: markdown|csv|json (default from config)")
	fs.StringVarP(&f.output, "output", "o", "", "write the report to this file instead of stdout")
}

func (f *statFlags) lineTypeOf(cmd *cobra.Command) (verif.LineType, error) {
	name := cfg.LineType
	if cmd.Flags().Changed("line-type") {
		name = f.lineType
	}
	return verif.ParseLineType(name)
}

func (f *statFlags) conditions() (verif.Conditions, error) {
	return verif.ParseConditionArgs(f.where)
}

func (f *statFlags) ciOptions(cmd *cobra.Command) (*analysis.CIOptions, error) {
	if !f.ci {
		return nil, nil
	}
	opt, err := cfg.CIOptions()
	if err != nil {
		return nil, err
	}
	fs := cmd.Flags()
	if fs.Changed("ci-method") {
		if opt.Method, err = analysis.ParseCIMethod(f.ciMethod); err != nil {
			return nil, err
		}
	}
	if fs.Changed("ci-level") {
		opt.Level = f.ciLevel
	}
	if fs.Changed("lag-corr") {
		opt.LagCorrelation = f.lagCorr
	}
	if fs.Changed("mats") {
		opt.MATSStdErr = f.mats
	}
	if fs.Changed("resamples") {
		opt.Resamples = f.resamples
	}
	if fs.Changed("seed") {
		opt.Seed = f.seed
	}
	opt.Seed = resolveSeed(opt.Seed)
	return &opt, nil
}

// resolveSeed maps the "seed from the clock" sentinel to a concrete seed.
func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// options builds fresh aggregation options from config and flags.
func (f *statFlags) options(cmd *cobra.Command) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	lt, err := f.lineTypeOf(cmd)
	if err != nil {
		return opt, err
	}
	opt.LineType = lt
	opt.PartialSums = f.agg
	if opt.CI, err = f.ciOptions(cmd); err != nil {
		return opt, err
	}
	if opt.Diff.Stats, err = analysis.ParseStats(f.stats, lt); err != nil {
		return opt, err
	}
	opt.Diff.Percent = f.pct
	opt.Diff.Match = cfg.MatchKeys
	if cmd.Flags().Changed("match") {
		opt.Diff.Match = f.match
	}
	if opt.PartialSums && opt.CI != nil {
		logger.Info("confidence intervals requested; averaging per-row statistics instead of partial sums")
	}
	return opt, nil
}

func (f *statFlags) reportFormat(cmd *cobra.Command) (report.Format, error) {
	name := cfg.OutputFormat
	if cmd.Flags().Changed("format") {
		name = f.format
	}
	return report.ParseFormat(name)
}

// readTables expands patterns and concatenates every readable file.
func readTables(cmd *cobra.Command, role string, patterns []string) (*verif.Table, error) {
	paths, err := utils.ExpandGlobs(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s files matched", role)
	}
	res, err := parser.ReadFiles(paths, parser.Options{Logger: logger.With("role", role)})
	if res != nil {
		metrics.ObserveRead(len(res.Read), len(res.Missing), len(res.Empty), res.Records)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s files: %w", role, err)
	}
	logger.Debug("verification files read", "role", role, "files", len(res.Read), "records", res.Records)
	if n := len(res.Missing); n > 0 {
		say(cmd, "⚠ Warning: %d %s file(s) not found", n, role)
	}
	return res.Table, nil
}

// loadInputs reads the forecast files and, when requested, the control files.
func (f *statFlags) loadInputs(cmd *cobra.Command, args []string) (a, b *verif.Table, err error) {
	if a, err = readTables(cmd, "forecast", args); err != nil {
		return nil, nil, err
	}
	if len(f.control) > 0 {
		if b, err = readTables(cmd, "control", f.control); err != nil {
			return nil, nil, err
		}
	}
	return a, b, nil
}

// subsetBoth applies the conditions to the forecast table and, if present,
// the control table.
func subsetBoth(a, b *verif.Table, conds verif.Conditions) (*verif.Table, *verif.Table, error) {
	sa, err := verif.Subset(a, conds)
	if err != nil {
		return nil, nil, fmt.Errorf("forecast: %w", err)
	}
	if b == nil {
		return sa, nil, nil
	}
	sb, err := verif.Subset(b, conds)
	if err != nil {
		return nil, nil, fmt.Errorf("control: %w", err)
	}
	return sa, sb, nil
}

func newMeta(title string, inputs []string, conds verif.Conditions) report.Meta {
	m := report.NewMeta(title)
	m.Inputs = inputs
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		k := c.Column
		if c.Negate {
			k = verif.NegatePrefix + k
		}
		parts = append(parts, k+"="+c.Value)
	}
	m.Conditions = strings.Join(parts, ", ")
	return m
}

// emit renders r and writes it to path, or to the command output when path
// is empty.
func emit(cmd *cobra.Command, r report.Renderer, format report.Format, path string) error {
	data, err := report.Render(r, format)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	say(cmd, "✓ Wrote %s report to %s", format, path)
	return nil
}

// logDropped reports diff rows that had no unique control match.
func logDropped(dropped []analysis.DroppedRow) {
	counts := map[analysis.DropReason]int{}
	for _, d := range dropped {
		counts[d.Reason]++
		logger.Debug("diff row dropped",
			"reason", string(d.Reason),
			"matches", d.Matches,
			"lead", d.Record.FcstLead,
			"valid", d.Record.FcstValidBeg,
			"level", d.Record.FcstLev)
	}
	for _, reason := range []analysis.DropReason{analysis.DropNoMatch, analysis.DropAmbiguous} {
		n := counts[reason]
		metrics.ObserveDropped(string(reason), n)
		if n > 0 {
			logger.Warn("diff rows dropped", "reason", string(reason), "count", n)
		}
	}
}

// observeSummaryErr counts empty inputs so batch runs can alert on them.
func observeSummaryErr(err error) {
	if analysis.IsEmptyInput(err) {
		metrics.EmptyInputs.Inc()
	}
}
