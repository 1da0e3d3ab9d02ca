package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/metstat-cli/internal/config"
	"github.com/KaramelBytes/metstat-cli/internal/observability"
)

var (
	// Global flags
	cfgFile         string
	debug           bool
	quiet           bool
	flagLogFormat   string
	flagMetricsFile string

	// Loaded configuration and run-wide services
	cfg     *cfgpkg.Global
	logger  *slog.Logger
	metrics *observability.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "metstat",
	Short: "metstat: verification statistics from MET partial sums",
	Long: `metstat reads MET/METplus SL1L2 and VL1L2 output, filters it, and computes
aggregated skill statistics (RMSE, bias, vector RMSE), pairwise differences
against a control run, confidence intervals and vertical averages, plus the
series behind die-off, profile, time series and sawtooth plots.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return flushMetrics() },
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_ = flushMetrics()
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.metstat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress messages")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text|json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus textfile metrics here on exit (overrides config)")
}

// setup loads configuration and builds the logger and metrics for one run.
func setup(cmd *cobra.Command, args []string) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	f := cmd.Root().PersistentFlags()
	if f.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	if f.Changed("metrics-file") {
		c.MetricsFile = flagMetricsFile
	}
	if debug {
		c.LogLevel = "debug"
	}
	if !isConfigCmd(cmd) {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	cfg = c
	logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	metrics = observability.NewMetrics()
	return nil
}

func flushMetrics() error {
	if metrics == nil || cfg == nil || cfg.MetricsFile == "" {
		return nil
	}
	metrics.LastRunTime.SetToCurrentTime()
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Debug("metrics written", "path", cfg.MetricsFile)
	return nil
}

// isConfigCmd reports whether cmd manages the config file itself, so an
// invalid file can still be inspected and repaired.
func isConfigCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

// say prints a progress line unless --quiet is set.
func say(cmd *cobra.Command, format string, a ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", a...)
}
