package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sl1l2", c.LineType)
	assert.Equal(t, 0.95, c.CILevel)
	assert.Equal(t, "t_dist", c.CIMethod)
	assert.Equal(t, 9999, c.BootstrapResamples)
	assert.Equal(t, analysis.DefaultMatchKeys(), c.MatchKeys)
	assert.Equal(t, "P", c.VCoord)
	assert.Equal(t, 100.0, c.VMin)
	assert.Equal(t, 1000.0, c.VMax)
	require.NoError(t, c.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("line_type: vl1l2\nci_method: bootstrap\nvmin: 250\n"), 0o644))
	t.Setenv("METSTAT_CI_LEVEL", "0.9")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vl1l2", c.LineType)
	assert.Equal(t, "bootstrap", c.CIMethod)
	assert.Equal(t, 250.0, c.VMin)
	assert.Equal(t, 0.9, c.CILevel)

	ci, err := c.CIOptions()
	require.NoError(t, err)
	assert.Equal(t, analysis.Bootstrap, ci.Method)
	assert.Equal(t, analysis.Band{Coord: 'P', Min: 250, Max: 1000}, c.Band())
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c := Defaults()
	require.NoError(t, c.Set("ci_method", "bootstrap"))
	require.NoError(t, c.Set("bootstrap_seed", "42"))
	require.NoError(t, c.Set("match_keys", "FCST_LEAD, FCST_VAR"))
	require.NoError(t, Save(c, ""))

	_, err := os.Stat(filepath.Join(home, DirName, "config.yaml"))
	require.NoError(t, err)

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", got.CIMethod)
	assert.Equal(t, uint64(42), got.BootstrapSeed)
	assert.Equal(t, []string{"FCST_LEAD", "FCST_VAR"}, got.MatchKeys)
}

func TestSet_Errors(t *testing.T) {
	c := Defaults()
	require.Error(t, c.Set("nope", "1"))
	require.Error(t, c.Set("ci_level", "high"))
	require.Error(t, c.Set("ci_lag_correlation", "maybe"))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Global){
		"line type":  func(c *Global) { c.LineType = "cnt" },
		"ci method":  func(c *Global) { c.CIMethod = "jackknife" },
		"ci level":   func(c *Global) { c.CILevel = 1 },
		"vcoord":     func(c *Global) { c.VCoord = "PZ" },
		"band":       func(c *Global) { c.VMin = 2000 },
		"log format": func(c *Global) { c.LogFormat = "xml" },
		"output":     func(c *Global) { c.OutputFormat = "html" },
	}
	for name, mutate := range cases {
		c := Defaults()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}
}
