package parser_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/metstat-cli/internal/parser"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sl1l2Header = "VERSION MODEL DESC FCST_LEAD FCST_VALID_BEG FCST_VAR FCST_UNITS FCST_LEV OBTYPE VX_MASK LINE_TYPE TOTAL FBAR OBAR FOBAR FFBAR OOBAR MAE"

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestReadFile_MetText(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "point_stat_060000L_20220201_060000V_sl1l2.txt",
		sl1l2Header,
		"V11.0.2  ctrl  NA  060000  20220201_060000  TMP  K  Z2  ADPSFC  FULL  SL1L2  120  280.5  281.0  78820.1  78690.3  78961.2  1.2",
		"",
		"V11.0.2  ctrl  NA  060000  20220201_060000  DPT  K  Z2  ADPSFC  FULL  SL1L2  NA  270.1  271.0  NA  NA  NA  NA",
	)
	tbl, err := parser.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, strings.Fields(sl1l2Header), tbl.Columns)

	r := tbl.Records[0]
	assert.Equal(t, "ctrl", r.Model)
	assert.Equal(t, 60000, r.FcstLead)
	assert.Equal(t, "20220201_060000", r.FcstValidBeg)
	assert.Equal(t, "Z2", r.FcstLev)
	assert.Equal(t, 120.0, r.Total)
	assert.Equal(t, 78690.3, r.Sums.FFBar)
	assert.Equal(t, "1.2", r.Extra["MAE"])

	assert.True(t, math.IsNaN(tbl.Records[1].Total))
	assert.True(t, math.IsNaN(tbl.Records[1].Sums.FOBar))
}

func TestReadFile_RaggedRow(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.stat", "FCST_VAR TOTAL", "TMP 10 extra")
	_, err := parser.ReadFile(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadFiles_SkipsMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a_sl1l2.txt", sl1l2Header,
		"V11 ctrl NA 000000 20220201_000000 TMP K Z2 ADPSFC FULL SL1L2 10 1 1 1 1 1 0")
	empty := writeFile(t, dir, "empty_sl1l2.txt", sl1l2Header)
	b := writeFile(t, dir, "b_sl1l2.txt", sl1l2Header,
		"V11 ctrl NA 010000 20220201_010000 TMP K Z2 ADPSFC FULL SL1L2 20 2 2 4 4 4 0",
		"V11 ctrl NA 010000 20220201_010000 DPT K Z2 ADPSFC FULL SL1L2 20 2 2 4 4 4 0")
	missing := filepath.Join(dir, "missing_sl1l2.txt")

	res, err := parser.ReadFiles([]string{a, missing, empty, b}, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, res.Read)
	assert.Equal(t, []string{missing}, res.Missing)
	assert.Equal(t, []string{empty}, res.Empty)
	assert.Equal(t, 3, res.Records)
	require.Equal(t, 3, res.Table.Len())
	assert.True(t, res.Table.HasColumn(verif.ColFcstValidBeg))
}

func TestReadFiles_NothingReadable(t *testing.T) {
	dir := t.TempDir()
	res, err := parser.ReadFiles([]string{filepath.Join(dir, "nope.txt")}, parser.Options{})
	require.True(t, errors.Is(err, parser.ErrNoRecords))
	assert.Len(t, res.Missing, 1)
	assert.Equal(t, 0, res.Table.Len())
}
