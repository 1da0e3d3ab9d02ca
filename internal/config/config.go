package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/utils"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".metstat"

// Global configuration structure.
type Global struct {
	LineType string `mapstructure:"line_type" yaml:"line_type"`

	// Confidence intervals
	CILevel            float64 `mapstructure:"ci_level" yaml:"ci_level"`
	CIMethod           string  `mapstructure:"ci_method" yaml:"ci_method"`
	CILagCorrelation   bool    `mapstructure:"ci_lag_correlation" yaml:"ci_lag_correlation"`
	CIMATSStdErr       bool    `mapstructure:"ci_mats_stderr" yaml:"ci_mats_stderr"`
	BootstrapResamples int     `mapstructure:"bootstrap_resamples" yaml:"bootstrap_resamples"`
	// BootstrapSeed 0 seeds from the clock.
	BootstrapSeed uint64 `mapstructure:"bootstrap_seed" yaml:"bootstrap_seed"`

	MatchKeys []string `mapstructure:"match_keys" yaml:"match_keys"`

	// Vertical averaging band
	VCoord string  `mapstructure:"vcoord" yaml:"vcoord"`
	VMin   float64 `mapstructure:"vmin" yaml:"vmin"`
	VMax   float64 `mapstructure:"vmax" yaml:"vmax"`

	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`
	MetricsFile  string `mapstructure:"metrics_file" yaml:"metrics_file"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		LineType:           "sl1l2",
		CILevel:            0.95,
		CIMethod:           "t_dist",
		BootstrapResamples: analysis.DefaultResamples,
		MatchKeys:          analysis.DefaultMatchKeys(),
		VCoord:             "P",
		VMin:               100,
		VMax:               1000,
		LogLevel:           "info",
		LogFormat:          "text",
		OutputFormat:       "markdown",
	}
}

// Path resolves the config file location; an explicit cfgFile wins over
// ~/.metstat/config.yaml.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.metstat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command-line flags are applied by
// the caller on top of the result.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("METSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("line_type", d.LineType)
	v.SetDefault("ci_level", d.CILevel)
	v.SetDefault("ci_method", d.CIMethod)
	v.SetDefault("ci_lag_correlation", d.CILagCorrelation)
	v.SetDefault("ci_mats_stderr", d.CIMATSStdErr)
	v.SetDefault("bootstrap_resamples", d.BootstrapResamples)
	v.SetDefault("bootstrap_seed", d.BootstrapSeed)
	v.SetDefault("match_keys", d.MatchKeys)
	v.SetDefault("vcoord", d.VCoord)
	v.SetDefault("vmin", d.VMin)
	v.SetDefault("vmax", d.VMax)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("output_format", d.OutputFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, DirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate rejects settings the engine cannot act on.
func (c *Global) Validate() error {
	if _, err := verif.ParseLineType(c.LineType); err != nil {
		return err
	}
	if _, err := analysis.ParseCIMethod(c.CIMethod); err != nil {
		return err
	}
	if c.CILevel <= 0 || c.CILevel >= 1 {
		return fmt.Errorf("ci_level %v outside (0, 1)", c.CILevel)
	}
	if c.BootstrapResamples < 0 {
		return fmt.Errorf("bootstrap_resamples must not be negative")
	}
	if len(c.VCoord) != 1 {
		return fmt.Errorf("vcoord %q must be a single character", c.VCoord)
	}
	if c.VMin > c.VMax {
		return fmt.Errorf("vmin %v greater than vmax %v", c.VMin, c.VMax)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q (use text or json)", c.LogFormat)
	}
	switch c.OutputFormat {
	case "markdown", "csv", "json":
	default:
		return fmt.Errorf("output_format %q (use markdown, csv or json)", c.OutputFormat)
	}
	return nil
}

// CIOptions builds fresh confidence interval options from the configuration.
func (c *Global) CIOptions() (analysis.CIOptions, error) {
	m, err := analysis.ParseCIMethod(c.CIMethod)
	if err != nil {
		return analysis.CIOptions{}, err
	}
	return analysis.CIOptions{
		Level:          c.CILevel,
		Method:         m,
		LagCorrelation: c.CILagCorrelation,
		MATSStdErr:     c.CIMATSStdErr,
		Resamples:      c.BootstrapResamples,
		Seed:           c.BootstrapSeed,
	}, nil
}

// Band returns the configured vertical averaging band.
func (c *Global) Band() analysis.Band {
	var coord byte = 'P'
	if c.VCoord != "" {
		coord = c.VCoord[0]
	}
	return analysis.Band{Coord: coord, Min: c.VMin, Max: c.VMax}
}

// Set assigns a single key from its string form, as used by `config set`.
func (c *Global) Set(key, value string) error {
	var err error
	switch key {
	case "line_type":
		c.LineType = value
	case "ci_level":
		c.CILevel, err = strconv.ParseFloat(value, 64)
	case "ci_method":
		c.CIMethod = value
	case "ci_lag_correlation":
		c.CILagCorrelation, err = strconv.ParseBool(value)
	case "ci_mats_stderr":
		c.CIMATSStdErr, err = strconv.ParseBool(value)
	case "bootstrap_resamples":
		c.BootstrapResamples, err = strconv.Atoi(value)
	case "bootstrap_seed":
		c.BootstrapSeed, err = strconv.ParseUint(value, 10, 64)
	case "match_keys":
		var keys []string
		for _, k := range strings.Split(value, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.MatchKeys = keys
	case "vcoord":
		c.VCoord = value
	case "vmin":
		c.VMin, err = strconv.ParseFloat(value, 64)
	case "vmax":
		c.VMax, err = strconv.ParseFloat(value, 64)
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "metrics_file":
		c.MetricsFile = value
	case "output_format":
		c.OutputFormat = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
