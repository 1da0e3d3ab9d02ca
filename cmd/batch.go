package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
	"github.com/KaramelBytes/metstat-cli/internal/utils"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

var (
	bOutDir   string
	bFormat   string
	bFailFast bool
)

// batchPlan is the YAML document read by `metstat batch`.
type batchPlan struct {
	Title       string                    `yaml:"title"`
	OutputDir   string                    `yaml:"output_dir"`
	Format      string                    `yaml:"format"`
	LineType    string                    `yaml:"line_type"`
	Simulations map[string]planSimulation `yaml:"simulations"`
	Jobs        []planJob                 `yaml:"jobs"`
}

type planSimulation struct {
	Files []string `yaml:"files"`
}

type planCI struct {
	Method         string  `yaml:"method"`
	Level          float64 `yaml:"level"`
	LagCorrelation *bool   `yaml:"lag_correlation"`
	MATSStdErr     *bool   `yaml:"mats_stderr"`
	Resamples      int     `yaml:"resamples"`
	Seed           uint64  `yaml:"seed"`
}

// planJob is one report. Kind is summary, diff, vertavg, dieoff, profile,
// timeseries or sawtooth. Series kinds draw one curve per simulation; the
// others use exactly one simulation.
type planJob struct {
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind"`
	Simulations []string          `yaml:"simulations"`
	Control     string            `yaml:"control"`
	Where       map[string]string `yaml:"where"`
	LineType    string            `yaml:"line_type"`
	Stat        string            `yaml:"stat"`
	Stats       []string          `yaml:"stats"`
	Agg         bool              `yaml:"agg"`
	Percent     bool              `yaml:"percent"`
	Match       []string          `yaml:"match"`
	CI          *planCI           `yaml:"ci"`
	Leads       []int             `yaml:"leads"`
	VCoord      string            `yaml:"vcoord"`
	Exclude     []string          `yaml:"exclude"`
	Inits       []string          `yaml:"inits"`
	InitEvery   int               `yaml:"init_every"`
	Level       string            `yaml:"level"`
	Layer       []string          `yaml:"layer"`
}

// loadPlan decodes a plan, rejecting unknown keys, and resolves relative
// file globs against the plan's directory.
func loadPlan(path string) (*batchPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p batchPlan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if len(p.Jobs) == 0 {
		return nil, fmt.Errorf("plan %s has no jobs", path)
	}
	base := filepath.Dir(path)
	for name, sim := range p.Simulations {
		for i, f := range sim.Files {
			if !filepath.IsAbs(f) {
				sim.Files[i] = filepath.Join(base, f)
			}
		}
		p.Simulations[name] = sim
	}
	if p.OutputDir == "" {
		p.OutputDir = "reports"
	}
	if !filepath.IsAbs(p.OutputDir) {
		p.OutputDir = filepath.Join(base, p.OutputDir)
	}
	return &p, nil
}

// batchRunner reads each simulation at most once per run.
type batchRunner struct {
	cmd    *cobra.Command
	plan   *batchPlan
	tables map[string]*verif.Table
}

func (r *batchRunner) table(name string) (*verif.Table, error) {
	if t, ok := r.tables[name]; ok {
		return t, nil
	}
	sim, ok := r.plan.Simulations[name]
	if !ok {
		return nil, fmt.Errorf("unknown simulation %q", name)
	}
	t, err := readTables(r.cmd, name, sim.Files)
	if err != nil {
		return nil, err
	}
	r.tables[name] = t
	return t, nil
}

func (r *batchRunner) options(job *planJob) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	name := cfg.LineType
	if r.plan.LineType != "" {
		name = r.plan.LineType
	}
	if job.LineType != "" {
		name = job.LineType
	}
	lt, err := verif.ParseLineType(name)
	if err != nil {
		return opt, err
	}
	opt.LineType = lt
	opt.PartialSums = job.Agg
	if opt.Diff.Stats, err = analysis.ParseStats(job.Stats, lt); err != nil {
		return opt, err
	}
	opt.Diff.Percent = job.Percent
	opt.Diff.Match = cfg.MatchKeys
	if len(job.Match) > 0 {
		opt.Diff.Match = job.Match
	}
	if job.CI != nil {
		ci, err := cfg.CIOptions()
		if err != nil {
			return opt, err
		}
		if job.CI.Method != "" {
			if ci.Method, err = analysis.ParseCIMethod(job.CI.Method); err != nil {
				return opt, err
			}
		}
		if job.CI.Level != 0 {
			ci.Level = job.CI.Level
		}
		if job.CI.LagCorrelation != nil {
			ci.LagCorrelation = *job.CI.LagCorrelation
		}
		if job.CI.MATSStdErr != nil {
			ci.MATSStdErr = *job.CI.MATSStdErr
		}
		if job.CI.Resamples != 0 {
			ci.Resamples = job.CI.Resamples
		}
		if job.CI.Seed != 0 {
			ci.Seed = job.CI.Seed
		}
		ci.Seed = resolveSeed(ci.Seed)
		opt.CI = &ci
	}
	return opt, nil
}

// single returns the forecast and optional control tables of a non-series
// job, subset to the job's conditions.
func (r *batchRunner) single(job *planJob, conds verif.Conditions) (*verif.Table, *verif.Table, error) {
	if len(job.Simulations) != 1 {
		return nil, nil, fmt.Errorf("%s job needs exactly one simulation, got %d", job.Kind, len(job.Simulations))
	}
	a, err := r.table(job.Simulations[0])
	if err != nil {
		return nil, nil, err
	}
	var b *verif.Table
	if job.Control != "" {
		if b, err = r.table(job.Control); err != nil {
			return nil, nil, err
		}
	}
	return subsetBoth(a, b, conds)
}

func (r *batchRunner) run(job *planJob) (report.Renderer, error) {
	if job.Name == "" {
		return nil, fmt.Errorf("job without a name")
	}
	conds := verif.ParseConditions(job.Where)
	opt, err := r.options(job)
	if err != nil {
		return nil, err
	}
	title := job.Name
	if r.plan.Title != "" {
		title = r.plan.Title + ": " + job.Name
	}
	meta := newMeta(title, job.Simulations, conds)

	switch kind := analysis.SeriesKind(job.Kind); kind {
	case "summary":
		a, b, err := r.single(job, conds)
		if err != nil {
			return nil, err
		}
		s, err := analysis.Aggregate(a, b, opt)
		if err != nil {
			observeSummaryErr(err)
			return nil, err
		}
		metrics.Summaries.WithLabelValues("summary").Inc()
		logDropped(s.Dropped)
		return &report.SummaryReport{Meta: meta, Summary: s}, nil
	case "diff":
		if job.Control == "" {
			return nil, fmt.Errorf("diff job needs a control")
		}
		a, b, err := r.single(job, conds)
		if err != nil {
			return nil, err
		}
		res, err := analysis.PairwiseDiff(a, b, opt.LineType, opt.Diff)
		if err != nil {
			return nil, err
		}
		metrics.Summaries.WithLabelValues("diff").Inc()
		logDropped(res.Dropped)
		return &report.DiffReport{Meta: meta, Result: res, Percent: opt.Diff.Percent}, nil
	case "vertavg":
		band := cfg.Band()
		if len(job.Layer) > 0 {
			if len(job.Layer) != 2 {
				return nil, fmt.Errorf("layer wants two levels")
			}
			if band, err = analysis.ParseBand(job.Layer[0], job.Layer[1]); err != nil {
				return nil, err
			}
		}
		a, b, err := r.single(job, conds)
		if err != nil {
			return nil, err
		}
		res, err := analysis.VerticalAverage(a, b, band, opt)
		if err != nil {
			observeSummaryErr(err)
			return nil, err
		}
		metrics.Summaries.WithLabelValues("vertavg").Add(float64(len(res.Rows)))
		for _, sk := range res.Skipped {
			logger.Warn("vertical average group skipped", "job", job.Name,
				"lead", sk.Key.Lead, "valid", sk.Key.ValidBeg, "var", sk.Key.Var, "reason", sk.Reason)
		}
		return &report.VerticalReport{Meta: meta, Result: res}, nil
	case analysis.KindDieOff, analysis.KindProfile, analysis.KindTimeSeries, analysis.KindSawtooth:
		return r.series(job, kind, opt, conds, meta)
	default:
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (r *batchRunner) series(job *planJob, kind analysis.SeriesKind, opt analysis.Options, conds verif.Conditions, meta report.Meta) (report.Renderer, error) {
	if len(job.Simulations) == 0 {
		return nil, fmt.Errorf("%s job needs at least one simulation", kind)
	}
	st := defaultStat(opt.LineType)
	if job.Stat != "" {
		var err error
		if st, err = analysis.ParseStat(job.Stat, opt.LineType); err != nil {
			return nil, err
		}
	}
	shape := seriesShape{Kind: kind, Leads: job.Leads, Exclude: job.Exclude, Level: job.Level, Coord: 'P'}
	if job.VCoord != "" {
		shape.Coord = job.VCoord[0]
	}
	if kind == analysis.KindSawtooth {
		var err error
		if shape.Inits, err = parseInits(job.Inits, job.InitEvery); err != nil {
			return nil, err
		}
		if len(job.Layer) == 2 {
			band, err := analysis.ParseBand(job.Layer[0], job.Layer[1])
			if err != nil {
				return nil, err
			}
			shape.Band = &band
		}
	}
	var control *verif.Table
	if job.Control != "" {
		var err error
		if control, err = r.table(job.Control); err != nil {
			return nil, err
		}
	}
	var curves []*analysis.Series
	for _, sim := range job.Simulations {
		if sim == job.Control {
			continue
		}
		t, err := r.table(sim)
		if err != nil {
			return nil, err
		}
		in := analysis.SeriesInput{Forecast: t, Control: control, Conditions: conds, Stat: st, Options: opt}
		s, err := buildSeries(in, shape, sim)
		if err != nil {
			observeSummaryErr(err)
			return nil, fmt.Errorf("%s: %w", sim, err)
		}
		curves = append(curves, s...)
	}
	if len(curves) == 0 {
		return nil, &analysis.EmptyInputError{Input: "simulations other than the control"}
	}
	observeSeries(kind, curves)
	return &report.SeriesReport{Meta: meta, Series: curves}, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch <plan.yaml>",
	Short: "Run every job of a YAML plan and write one report per job",
	Long: `Reads a plan naming simulations (file globs) and jobs (summary, diff,
vertavg, dieoff, profile, timeseries, sawtooth) and writes each job's report
into the output directory. A failing job is logged and skipped unless
--fail-fast is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := loadPlan(args[0])
		if err != nil {
			return err
		}
		formatName := cfg.OutputFormat
		if plan.Format != "" {
			formatName = plan.Format
		}
		if cmd.Flags().Changed("format") {
			formatName = bFormat
		}
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		outDir := plan.OutputDir
		if cmd.Flags().Changed("out") {
			outDir = bOutDir
		}
		if err := utils.EnsureDir(outDir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		runner := &batchRunner{cmd: cmd, plan: plan, tables: map[string]*verif.Table{}}
		total := len(plan.Jobs)
		var failed []string
		seen := map[string]int{}
		for i := range plan.Jobs {
			job := &plan.Jobs[i]
			say(cmd, "[%d/%d] Running %s (%s)...", i+1, total, job.Name, job.Kind)
			rep, err := runner.run(job)
			if err == nil {
				base := utils.SafeName(job.Name)
				seen[base]++
				if n := seen[base]; n > 1 {
					base = fmt.Sprintf("%s__%d", base, n)
				}
				err = emit(cmd, rep, format, filepath.Join(outDir, base+format.Ext()))
			}
			if err != nil {
				metrics.JobFailures.Inc()
				logger.Error("batch job failed", "job", job.Name, "kind", job.Kind, "err", err)
				say(cmd, "✗ %s: %v", job.Name, err)
				if bFailFast {
					return fmt.Errorf("job %s: %w", job.Name, err)
				}
				failed = append(failed, job.Name)
			}
		}
		if len(failed) == total {
			return errors.New("every batch job failed")
		}
		if len(failed) > 0 {
			say(cmd, "⚠ Warning: %d of %d job(s) failed: %v", len(failed), total, failed)
			return nil
		}
		say(cmd, "✓ %d report(s) written to %s", total, outDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&bOutDir, "out", "", "output directory (overrides the plan's output_dir)")
	batchCmd.Flags().StringVarP(&bFormat, "format", "f", "", "report format: markdown|csv|json (overrides the plan)")
	batchCmd.Flags().BoolVar(&bFailFast, "fail-fast", false, "stop at the first failing job")
}
