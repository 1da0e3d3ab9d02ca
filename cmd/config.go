package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/metstat-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set metstat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "line_type: %s\n", cfg.LineType)
		fmt.Fprintf(out, "ci_level: %g\n", cfg.CILevel)
		fmt.Fprintf(out, "ci_method: %s\n", cfg.CIMethod)
		fmt.Fprintf(out, "ci_lag_correlation: %t\n", cfg.CILagCorrelation)
		fmt.Fprintf(out, "ci_mats_stderr: %t\n", cfg.CIMATSStdErr)
		fmt.Fprintf(out, "bootstrap_resamples: %d\n", cfg.BootstrapResamples)
		fmt.Fprintf(out, "bootstrap_seed: %d\n", cfg.BootstrapSeed)
		fmt.Fprintf(out, "match_keys: %s\n", strings.Join(cfg.MatchKeys, ","))
		fmt.Fprintf(out, "vcoord: %s\n", cfg.VCoord)
		fmt.Fprintf(out, "vmin: %g\n", cfg.VMin)
		fmt.Fprintf(out, "vmax: %g\n", cfg.VMax)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		if cfg.MetricsFile != "" {
			fmt.Fprintf(out, "metrics_file: %s\n", cfg.MetricsFile)
		}
		fmt.Fprintf(out, "output_format: %s\n", cfg.OutputFormat)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "⚠ Warning: %v\n", err)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("not saved: %w", err)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
