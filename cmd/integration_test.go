package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "VERSION MODEL DESC FCST_LEAD FCST_VALID_BEG FCST_VAR FCST_UNITS FCST_LEV OBTYPE VX_MASK LINE_TYPE TOTAL FBAR OBAR FOBAR FFBAR OOBAR"

// Forecast rows: RMSE 1 at lead 0 and RMSE 2 at lead 6. The DPT row has no
// control counterpart.
var expRows = []string{
	"V11 exp NA 000000 20220201_000000 TMP K Z2 ADPSFC FULL SL1L2 10 2 1 2 4 1",
	"V11 exp NA 060000 20220201_060000 TMP K Z2 ADPSFC FULL SL1L2 10 3 1 3 9 1",
	"V11 exp NA 060000 20220201_060000 DPT K Z2 ADPSFC FULL SL1L2 10 3 1 3 9 1",
}

// Control rows are perfect forecasts.
var ctlRows = []string{
	"V11 ctl NA 000000 20220201_000000 TMP K Z2 ADPSFC FULL SL1L2 10 1 1 1 1 1",
	"V11 ctl NA 060000 20220201_060000 TMP K Z2 ADPSFC FULL SL1L2 10 1 1 1 1 1",
}

var upperRows = []string{
	"V11 exp NA 000000 20220201_000000 TMP K P850 ADPUPA FULL SL1L2 10 2 1 2 4 1",
	"V11 exp NA 000000 20220201_000000 TMP K P500 ADPUPA FULL SL1L2 10 3 1 3 9 1",
	"V11 exp NA 000000 20220201_000000 TMP K P10 ADPUPA FULL SL1L2 10 9 1 9 81 1",
}

type fixture struct {
	dir   string
	exp   string
	ctl   string
	upper string
}

func writeLines(t *testing.T, path string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// setupCLI isolates HOME and writes the verification fixtures.
func setupCLI(t *testing.T) fixture {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, "runs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return fixture{
		dir:   dir,
		exp:   writeLines(t, filepath.Join(dir, "exp_sl1l2.txt"), append([]string{header}, expRows...)...),
		ctl:   writeLines(t, filepath.Join(dir, "ctl_sl1l2.txt"), append([]string{header}, ctlRows...)...),
		upper: writeLines(t, filepath.Join(dir, "upper_sl1l2.txt"), append([]string{header}, upperRows...)...),
	}
}

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var vals []string
			if def := strings.Trim(f.DefValue, "[]"); def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(args ...string) (string, error) {
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// csvRows parses CSV output into header-keyed rows.
func csvRows(t *testing.T, out string) []map[string]string {
	t.Helper()
	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	var rows []map[string]string
	for _, rec := range recs[1:] {
		m := make(map[string]string, len(rec))
		for i, h := range recs[0] {
			m[h] = rec[i]
		}
		rows = append(rows, m)
	}
	return rows
}

func byKey(rows []map[string]string, key string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(rows))
	for _, r := range rows {
		out[r[key]] = r
	}
	return out
}

func float(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err, s)
	return v
}

func TestCLI_SummaryPostHocAndPartialSums(t *testing.T) {
	fx := setupCLI(t)

	rows := byKey(csvRows(t, runCmd(t, "summary", fx.exp, "-w", "FCST_VAR=TMP", "-f", "csv")), "stat")
	assert.InDelta(t, 1.5, float(t, rows["RMSE"]["value"]), 1e-12)
	assert.InDelta(t, 20, float(t, rows["TOTAL"]["value"]), 1e-12)

	rows = byKey(csvRows(t, runCmd(t, "summary", fx.exp, "-w", "FCST_VAR=TMP", "--agg", "-f", "csv")), "stat")
	assert.InDelta(t, 2.5, float(t, rows["MSE"]["value"]), 1e-12)
	assert.InDelta(t, 1.5811388300841898, float(t, rows["RMSE"]["value"]), 1e-12)
}

func TestCLI_SummaryDiffWithCI(t *testing.T) {
	fx := setupCLI(t)
	out := runCmd(t, "summary", fx.exp, "-c", fx.ctl, "-w", "FCST_VAR=TMP", "--agg", "--ci", "-f", "json", "--title", "t2m")

	var doc struct {
		Title   string `json:"title"`
		Summary struct {
			Method string `json:"method"`
			Diff   bool   `json:"diff"`
			Stats  []struct {
				Name  string   `json:"name"`
				Value *float64 `json:"value"`
				Low   *float64 `json:"low"`
				High  *float64 `json:"high"`
			} `json:"stats"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "t2m", doc.Title)
	assert.True(t, doc.Summary.Diff)
	assert.Equal(t, "post_hoc", doc.Summary.Method, "intervals force per-row averaging")

	found := map[string]bool{}
	for _, s := range doc.Summary.Stats {
		found[s.Name] = true
		switch s.Name {
		case "RMSE":
			require.NotNil(t, s.Value)
			assert.InDelta(t, 1.5, *s.Value, 1e-12)
			require.NotNil(t, s.Low)
			require.NotNil(t, s.High)
			assert.Less(t, *s.Low, 1.5)
			assert.Greater(t, *s.High, 1.5)
		case "FSTDEV":
			assert.Nil(t, s.Low, "constant columns carry no interval")
		}
	}
	assert.True(t, found["RMSE"])
}

func TestCLI_DiffListsDroppedRows(t *testing.T) {
	fx := setupCLI(t)
	metricsPath := filepath.Join(fx.dir, "metstat.prom")

	rows := csvRows(t, runCmd(t, "diff", fx.exp, "-c", fx.ctl, "--stats", "RMSE", "-f", "csv", "--metrics-file", metricsPath))
	require.Len(t, rows, 2)
	assert.Equal(t, "NA - NA", rows[0]["DESC"])
	assert.Equal(t, "1", rows[0]["RMSE"])
	assert.Equal(t, "2", rows[1]["RMSE"])

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `metstat_diff_rows_dropped_total{reason="no_match"} 1`)
	assert.Contains(t, string(prom), `metstat_summaries_total{operation="diff"} 1`)
}

func TestCLI_PersistentFlagsOverrideConfig(t *testing.T) {
	fx := setupCLI(t)
	runCmd(t, "summary", fx.exp, "-w", "FCST_VAR=TMP", "--log-format", "json", "--debug", "-f", "csv")
	require.NotNil(t, cfg)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)

	runCmd(t, "summary", fx.exp, "-w", "FCST_VAR=TMP", "-f", "csv")
	assert.Equal(t, "text", cfg.LogFormat, "overrides do not stick between runs")
}

func TestCLI_DiffRequiresControl(t *testing.T) {
	fx := setupCLI(t)
	_, err := execute("diff", fx.exp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--control")
}

func TestCLI_VertAvg(t *testing.T) {
	fx := setupCLI(t)

	rows := csvRows(t, runCmd(t, "vertavg", fx.upper, "-w", "FCST_VAR=TMP", "--vmin", "100", "--vmax", "1000", "-f", "csv"))
	require.Len(t, rows, 1)
	assert.Equal(t, "ADPUPA", rows[0]["OBTYPE"])
	assert.InDelta(t, 1.5, float(t, rows[0]["RMSE"]), 1e-12, "P10 lies outside the band")

	rows = csvRows(t, runCmd(t, "vertavg", fx.upper, "--layer", "P1000,P10", "-f", "csv"))
	require.Len(t, rows, 1)
	assert.InDelta(t, 11.0/3, float(t, rows[0]["RMSE"]), 1e-12)
}

func TestCLI_SeriesDieOffWithGap(t *testing.T) {
	fx := setupCLI(t)
	rows := csvRows(t, runCmd(t, "series", "dieoff", fx.exp, "-w", "FCST_VAR=TMP", "--leads", "0,6,12", "--name", "exp", "-f", "csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "exp", rows[0]["series"])
	assert.Equal(t, "1", rows[0]["value"])
	assert.Equal(t, "2", rows[1]["value"])
	assert.Equal(t, "NA", rows[2]["value"])
	assert.NotEmpty(t, rows[2]["gap"])
}

func TestCLI_SeriesSawtooth(t *testing.T) {
	fx := setupCLI(t)
	rows := csvRows(t, runCmd(t, "series", "sawtooth", fx.exp, "-w", "FCST_VAR=TMP",
		"--init", "2022020100", "--leads", "0,6", "--level", "Z2", "-f", "csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "forecast 20220201_000000", rows[0]["series"])
	assert.Equal(t, "1", rows[0]["value"])
	assert.Equal(t, "2", rows[1]["value"])
}

func TestCLI_SeriesProfile(t *testing.T) {
	fx := setupCLI(t)
	rows := csvRows(t, runCmd(t, "series", "profile", fx.upper, "--exclude", "P10", "-f", "csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "P500", rows[0]["label"])
	assert.Equal(t, "P850", rows[1]["label"])
}

func TestCLI_CIFromValues(t *testing.T) {
	setupCLI(t)
	var doc struct {
		N    int     `json:"n"`
		Mean float64 `json:"mean"`
		Low  float64 `json:"low"`
		High float64 `json:"high"`
	}
	require.NoError(t, json.Unmarshal([]byte(runCmd(t, "ci", "1", "2", "3", "4", "5", "-f", "json")), &doc))
	assert.Equal(t, 5, doc.N)
	assert.InDelta(t, 3, doc.Mean, 1e-12)
	assert.Less(t, doc.Low, 3.0)
	assert.Greater(t, doc.High, 3.0)

	first := runCmd(t, "ci", "1", "2", "3", "4", "5", "--ci-method", "bootstrap", "--seed", "7", "--resamples", "500", "-f", "csv")
	second := runCmd(t, "ci", "1", "2", "3", "4", "5", "--ci-method", "bootstrap", "--seed", "7", "--resamples", "500", "-f", "csv")
	assert.Equal(t, first, second, "a fixed seed reproduces the interval")
	assert.True(t, strings.HasPrefix(first, "method,level,n,mean,low,high\nbootstrap,"))
}

func TestCLI_CIFromVerificationFiles(t *testing.T) {
	fx := setupCLI(t)
	rows := csvRows(t, runCmd(t, "ci", fx.exp, "-c", fx.ctl, "-w", "FCST_VAR=TMP", "--stat", "RMSE", "-f", "csv"))
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["n"])
	assert.InDelta(t, 1.5, float(t, rows[0]["mean"]), 1e-12)
}

func TestCLI_CIRejectsSingleValue(t *testing.T) {
	setupCLI(t)
	_, err := execute("ci", "1.5")
	require.Error(t, err)
}

func TestCLI_BatchSkipsFailingJobs(t *testing.T) {
	fx := setupCLI(t)
	plan := writeLines(t, filepath.Join(fx.dir, "plan.yaml"),
		"title: nightly",
		"output_dir: out",
		"format: csv",
		"simulations:",
		"  exp: {files: [exp_sl1l2.txt]}",
		"  ctl: {files: [ctl_sl1l2.txt]}",
		"jobs:",
		"  - name: t2m summary",
		"    kind: summary",
		"    simulations: [exp]",
		"    where: {FCST_VAR: TMP}",
		"  - name: t2m dieoff",
		"    kind: dieoff",
		"    simulations: [exp, ctl]",
		"    control: ctl",
		"    where: {FCST_VAR: TMP, FCST_LEV: Z2}",
		"    leads: [0, 6]",
		"    ci: {method: t_dist, level: 0.9}",
		"  - name: broken",
		"    kind: summary",
		"    simulations: [nope]",
	)
	metricsPath := filepath.Join(fx.dir, "batch.prom")
	runCmd(t, "batch", plan, "--metrics-file", metricsPath)

	out := filepath.Join(fx.dir, "out")
	rows := byKey(csvRows(t, readFile(t, filepath.Join(out, "t2m_summary.csv"))), "stat")
	assert.InDelta(t, 1.5, float(t, rows["RMSE"]["value"]), 1e-12)

	dieoff := csvRows(t, readFile(t, filepath.Join(out, "t2m_dieoff.csv")))
	require.Len(t, dieoff, 2, "the control is not drawn against itself")
	assert.Equal(t, "exp", dieoff[0]["series"])
	assert.Equal(t, "1", dieoff[0]["value"])

	_, err := os.Stat(filepath.Join(out, "broken.csv"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, readFile(t, metricsPath), "metstat_batch_job_failures_total 1")
}

func TestCLI_BatchRejectsUnknownKeys(t *testing.T) {
	fx := setupCLI(t)
	plan := writeLines(t, filepath.Join(fx.dir, "plan.yaml"),
		"jobs:",
		"  - name: x",
		"    kind: summary",
		"    simulatons: [exp]",
	)
	_, err := execute("batch", plan)
	require.Error(t, err)
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	setupCLI(t)
	runCmd(t, "config", "set", "ci_level", "0.9")
	runCmd(t, "config", "set", "match_keys", "FCST_LEAD,FCST_VAR")
	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "ci_level: 0.9\n")
	assert.Contains(t, out, "match_keys: FCST_LEAD,FCST_VAR\n")

	_, err := execute("config", "set", "ci_level", "1.5")
	require.Error(t, err)
	_, err = execute("config", "set", "no_such_key", "1")
	require.Error(t, err)
}

func TestCLI_InvalidConfigBlocksAnalysis(t *testing.T) {
	fx := setupCLI(t)
	cfgPath := writeLines(t, filepath.Join(fx.dir, "bad.yaml"), "line_type: cnt")
	_, err := execute("summary", fx.exp, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	out := runCmd(t, "config", "show", "--config", cfgPath)
	assert.Contains(t, out, "⚠ Warning:")
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
