package verif

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{ColFcstLead, ColFcstValidBeg, ColFcstVar, ColFcstLev, ColObType, ColVxMask, ColTotal, "FBAR", "OBAR"}

func testTable() *Table {
	return NewTable(testColumns, []Record{
		{FcstLead: 0, FcstValidBeg: "20220201_000000", FcstVar: "TMP", FcstLev: "Z2", ObType: "ADPSFC", VxMask: "FULL", Total: 10},
		{FcstLead: 60000, FcstValidBeg: "20220201_060000", FcstVar: "TMP", FcstLev: "Z2", ObType: "ADPSFC", VxMask: "FULL", Total: 12},
		{FcstLead: 60000, FcstValidBeg: "20220201_060000", FcstVar: "SPFH", FcstLev: "Z2", ObType: "ADPSFC", VxMask: "FULL", Total: 8},
		{FcstLead: 0, FcstValidBeg: "20220201_000000", FcstVar: "TMP", FcstLev: "P500", ObType: "ADPUPA", VxMask: "EAST", Total: 3},
	})
}

func TestSubset_EmptyConditionsCopiesTable(t *testing.T) {
	tbl := testTable()
	out, err := Subset(tbl, nil)
	require.NoError(t, err)
	require.Equal(t, tbl.Records, out.Records)

	out.Records[0].FcstVar = "CHANGED"
	assert.Equal(t, "TMP", tbl.Records[0].FcstVar, "subset must not alias its input")
}

func TestSubset_Conjunction(t *testing.T) {
	cases := []map[string]string{
		{ColFcstLead: "0"},
		{ColFcstVar: "TMP"},
		{ColFcstLead: "0", ColFcstVar: "TMP"},
		{ColFcstLead: "6e4", ColObType: "ADPSFC"},
	}
	for _, m := range cases {
		conds := ParseConditions(m)
		out, err := Subset(testTable(), conds)
		require.NoError(t, err)
		require.NotZero(t, out.Len(), "conditions %v", m)
		for i := range out.Records {
			for k, v := range m {
				got, _ := out.Records[i].Field(k)
				assert.True(t, valuesEqual(got, v), "row %d: %s=%s, want %s", i, k, got, v)
			}
		}
	}
}

func TestSubset_NegatedCondition(t *testing.T) {
	conds := ParseConditions(map[string]string{"not_VX_MASK": "FULL"})
	require.Len(t, conds, 1)
	assert.True(t, conds[0].Negate)
	assert.Equal(t, ColVxMask, conds[0].Column)

	out, err := Subset(testTable(), conds)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "EAST", out.Records[0].VxMask)
}

func TestSubset_PreservesOrder(t *testing.T) {
	out, err := Subset(testTable(), ParseConditions(map[string]string{ColFcstVar: "TMP"}))
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, 10.0, out.Records[0].Total)
	assert.Equal(t, 12.0, out.Records[1].Total)
	assert.Equal(t, 3.0, out.Records[2].Total)
}

func TestSubset_MissingColumn(t *testing.T) {
	_, err := Subset(testTable(), ParseConditions(map[string]string{"OBS_SID": "KDEN"}))
	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "OBS_SID", mc.Column)
}

func TestParseConditionArgs(t *testing.T) {
	conds, err := ParseConditionArgs([]string{"FCST_VAR=TMP", "not_OBTYPE = ADPUPA"})
	require.NoError(t, err)
	require.Len(t, conds, 2)
	assert.Equal(t, Condition{Column: ColFcstVar, Value: "TMP"}, conds[0])
	assert.Equal(t, Condition{Column: ColObType, Value: "ADPUPA", Negate: true}, conds[1])

	_, err = ParseConditionArgs([]string{"FCST_VAR"})
	assert.Error(t, err)
}

func TestConditionsWith(t *testing.T) {
	base := ParseConditions(map[string]string{ColFcstLead: "0", "not_FCST_LEAD": "10000"})
	next := base.With(ColFcstLead, "60000")
	v, ok := next.Get(ColFcstLead)
	require.True(t, ok)
	assert.Equal(t, "60000", v)
	assert.Len(t, next, 2)

	orig, _ := base.Get(ColFcstLead)
	assert.Equal(t, "0", orig)
}
