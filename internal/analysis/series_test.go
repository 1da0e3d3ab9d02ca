package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

func surfaceRuns() *verif.Table {
	// Two cycles (00Z and 01Z), leads 0-2 h; MSE equals 1 + lead.
	var rows []row
	for _, init := range []int{0, 1} {
		for lead := 0; lead <= 2; lead++ {
			valid := time.Date(2022, 2, 1, init+lead, 0, 0, 0, time.UTC).Format(verif.ValidTimeLayout)
			ff := float64(2 + lead)
			rows = append(rows, row{lead: lead, valid: valid, total: 10, sums: sums(1, 1, 1, ff, 1)})
		}
	}
	rows = append(rows, row{v: "DPT", lead: 0, valid: "20220201_000000", total: 10, sums: sums(1, 1, 1, 50, 1)})
	return table(rows...)
}

func tmpInput(t *verif.Table) SeriesInput {
	return SeriesInput{
		Forecast:   t,
		Conditions: verif.Conditions{{Column: verif.ColFcstVar, Value: "TMP"}},
		Stat:       MSE,
		Options:    partialSumOptions(),
	}
}

func TestDieOff(t *testing.T) {
	s, err := DieOff(tmpInput(surfaceRuns()), []int{0, 1, 2, 6})
	require.NoError(t, err)
	require.Len(t, s.Points, 4)
	assert.Equal(t, KindDieOff, s.Kind)
	assert.Equal(t, []string{"0h", "1h", "2h", "6h"}, []string{s.Points[0].Label, s.Points[1].Label, s.Points[2].Label, s.Points[3].Label})

	vals := s.Values()
	assert.InDelta(t, 1.0, vals[0], 1e-12)
	assert.InDelta(t, 2.0, vals[1], 1e-12)
	assert.InDelta(t, 3.0, vals[2], 1e-12)
	assert.True(t, math.IsNaN(vals[3]))
	assert.Equal(t, 1, s.Gaps())
	assert.NotEmpty(t, s.Points[3].Gap)
	assert.InDelta(t, 2.0, s.Mean(), 1e-12)
	assert.Equal(t, 20.0, s.Points[0].Summary.Total)
}

func TestDieOff_Diff(t *testing.T) {
	in := tmpInput(surfaceRuns())
	in.Control = surfaceRuns()
	in.Options.Diff.Stats = []Stat{RMSE}
	s, err := DieOff(in, []int{1})
	require.NoError(t, err)
	require.Len(t, s.Points, 1)
	assert.InDelta(t, 0.0, s.Points[0].Value(MSE), 1e-12)
	assert.Equal(t, []Stat{RMSE}, in.Options.Diff.Stats, "caller options are not modified")
}

func TestDieOff_CIWithOneRowPerLead(t *testing.T) {
	var rows []row
	for lead := 0; lead <= 2; lead++ {
		valid := time.Date(2022, 2, 1, lead, 0, 0, 0, time.UTC).Format(verif.ValidTimeLayout)
		rows = append(rows, row{lead: lead, valid: valid, total: 10, sums: sums(0, 0, 0, float64(1+lead), 0)})
	}
	in := tmpInput(table(rows...))
	ci := DefaultCIOptions()
	in.Options.CI = &ci
	s, err := DieOff(in, []int{0, 1, 2})
	require.NoError(t, err)
	assert.Zero(t, s.Gaps())
	assert.Equal(t, []float64{1, 2, 3}, s.Values())
}

func TestProfile(t *testing.T) {
	tbl := upperAir("exp", 2)
	in := SeriesInput{
		Forecast:   tbl,
		Conditions: verif.Conditions{{Column: verif.ColFcstLead, Value: "120000"}},
		Stat:       RMSE,
		Options:    DefaultOptions(),
	}
	s, err := Profile(in, 'P', []string{"P1000"})
	require.NoError(t, err)
	var labels []string
	for _, p := range s.Points {
		labels = append(labels, p.Label)
		assert.InDelta(t, 1.0, p.Value(RMSE), 1e-12)
	}
	assert.Equal(t, []string{"P50", "P250", "P500", "P850"}, labels)
	assert.Equal(t, 250.0, s.Points[1].X)
}

func TestTimeSeries(t *testing.T) {
	in := tmpInput(surfaceRuns())
	in.Conditions = append(in.Conditions, verif.Condition{Column: verif.ColFcstLead, Value: "10000"})
	s, err := TimeSeries(in)
	require.NoError(t, err)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "20220201_010000", s.Points[0].Label)
	assert.Equal(t, "20220201_020000", s.Points[1].Label)
	assert.Equal(t, float64(time.Date(2022, 2, 1, 1, 0, 0, 0, time.UTC).Unix()), s.Points[0].X)
	assert.InDelta(t, 2.0, s.Mean(), 1e-12)
}

func TestSawtooth(t *testing.T) {
	inits := []time.Time{
		time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 2, 1, 1, 0, 0, 0, time.UTC),
	}
	series, err := Sawtooth(tmpInput(surfaceRuns()), SawtoothOptions{Inits: inits, Leads: []int{0, 1, 2}, Level: "Z2"})
	require.NoError(t, err)
	require.Len(t, series, 2)
	for _, s := range series {
		assert.Equal(t, KindSawtooth, s.Kind)
		require.Len(t, s.Points, 3)
		assert.InDelta(t, 1.0, s.Points[0].Value(MSE), 1e-12)
		assert.InDelta(t, 3.0, s.Points[2].Value(MSE), 1e-12)
	}
	assert.Equal(t, "20220201_010000", series[1].Name)
	assert.Equal(t, float64(inits[1].Add(2*time.Hour).Unix()), series[1].Points[2].X)
}

func TestSawtooth_Band(t *testing.T) {
	in := SeriesInput{Forecast: upperAir("exp", 2), Stat: MSE, Options: partialSumOptions()}
	band := Band{Coord: 'P', Min: 100, Max: 1000}
	init := time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)
	series, err := Sawtooth(in, SawtoothOptions{Inits: []time.Time{init}, Leads: []int{6, 12, 18}, Band: &band})
	require.NoError(t, err)
	require.Len(t, series, 1)
	pts := series[0].Points
	assert.InDelta(t, 2.0, pts[0].Value(MSE), 1e-12)
	assert.InDelta(t, 1.0, pts[1].Value(MSE), 1e-12)
	assert.Nil(t, pts[2].Summary)
}

func TestSeries_UnknownStat(t *testing.T) {
	in := tmpInput(surfaceRuns())
	in.Stat = VectRMSE
	_, err := DieOff(in, []int{0})
	var us *UnknownStatError
	require.ErrorAs(t, err, &us)
}
