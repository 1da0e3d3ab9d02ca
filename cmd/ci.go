package cmd

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/report"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

var (
	ciFlags statFlags
	ciTitle string
	ciInput string
	ciStat  string
)

var ciCmd = &cobra.Command{
	Use:   "ci [values... | files...]",
	Short: "Confidence interval for the mean of a sample",
	Long: `Estimates a confidence interval for the mean of a sample. The sample is
either the numbers given as arguments, the numbers in --input ("-" reads
stdin), or one derived statistic per row of the given verification files
in valid-time order (per-row differences with --control).`,
	Example: `  metstat ci 1.2 0.8 1.1 0.9 1.4 --lag-corr
  metstat ci 'exp/*.txt' -w FCST_VAR=TMP -w FCST_LEV=Z2 --stat RMSE --ci-method bootstrap --seed 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ciFlags.ci = true
		opt, err := ciFlags.ciOptions(cmd)
		if err != nil {
			return err
		}
		format, err := ciFlags.reportFormat(cmd)
		if err != nil {
			return err
		}
		sample, inputs, conds, err := ciSample(cmd, args)
		if err != nil {
			return err
		}
		sample = dropNaN(sample)
		iv, err := analysis.ConfidenceInterval(sample, *opt)
		if err != nil {
			return err
		}
		logger.Info("confidence interval computed", "method", opt.Method.String(), "n", len(sample), "low", iv.Low, "high", iv.High)
		rep := &report.CIReport{
			Meta:     newMeta(ciTitle, inputs, conds),
			Method:   opt.Method,
			Level:    opt.Level,
			N:        len(sample),
			Mean:     stat.Mean(sample, nil),
			Interval: iv,
		}
		return emit(cmd, rep, format, ciFlags.output)
	},
}

// ciSample resolves where the sample comes from.
func ciSample(cmd *cobra.Command, args []string) ([]float64, []string, verif.Conditions, error) {
	if ciInput != "" {
		var r io.Reader = cmd.InOrStdin()
		if ciInput != "-" {
			f, err := os.Open(ciInput)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("open sample: %w", err)
			}
			defer f.Close()
			r = f
		}
		vals, err := readNumbers(r)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read sample %s: %w", ciInput, err)
		}
		return vals, []string{ciInput}, nil, nil
	}
	if len(args) == 0 {
		return nil, nil, nil, fmt.Errorf("give sample values, --input, or verification files")
	}
	if vals, ok := parseNumbers(args); ok {
		return vals, nil, nil, nil
	}

	conds, err := ciFlags.conditions()
	if err != nil {
		return nil, nil, nil, err
	}
	lt, err := ciFlags.lineTypeOf(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	st := defaultStat(lt)
	if cmd.Flags().Changed("stat") {
		if st, err = analysis.ParseStat(ciStat, lt); err != nil {
			return nil, nil, nil, err
		}
	}
	a, b, err := ciFlags.loadInputs(cmd, args)
	if err != nil {
		return nil, nil, nil, err
	}
	if a, b, err = subsetBoth(a, b, conds); err != nil {
		return nil, nil, nil, err
	}
	a = a.SortedByValidTime()
	if b == nil {
		d, err := analysis.Derive(a, lt)
		if err != nil {
			return nil, nil, nil, err
		}
		return d.Column(st), args, conds, nil
	}
	match := cfg.MatchKeys
	if cmd.Flags().Changed("match") {
		match = ciFlags.match
	}
	res, err := analysis.PairwiseDiff(a, b, lt, analysis.DiffOptions{
		Stats:   []analysis.Stat{st},
		Percent: ciFlags.pct,
		Match:   match,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	logDropped(res.Dropped)
	return res.Column(st), args, conds, nil
}

// parseNumbers reports whether every argument is a number.
func parseNumbers(args []string) ([]float64, bool) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := verif.ParseNumber(a)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// readNumbers reads whitespace or comma separated values.
func readNumbers(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	var out []float64
	for sc.Scan() {
		for _, tok := range strings.Split(sc.Text(), ",") {
			if tok == "" {
				continue
			}
			v, err := verif.ParseNumber(tok)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, sc.Err()
}

func dropNaN(vals []float64) []float64 {
	out := vals[:0:0]
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	if n := len(vals) - len(out); n > 0 {
		logger.Warn("missing values left out of the sample", "count", n)
	}
	return out
}

func init() {
	rootCmd.AddCommand(ciCmd)
	ciFlags.register(ciCmd)
	f := ciCmd.Flags()
	_ = f.MarkHidden("ci")
	_ = f.MarkHidden("agg")
	_ = f.MarkHidden("stats")
	f.StringVar(&ciTitle, "title", "", "title recorded in the report header")
	f.StringVarP(&ciInput, "input", "i", "", "file of sample values, - for stdin")
	f.StringVarP(&ciStat, "stat", "s", "", "derived statistic used as the sample (default RMSE, or VECT_RMSE for vl1l2)")
}
