package analysis

import (
	"math"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// DerivedRow is an input record together with the statistics derived from it.
type DerivedRow struct {
	Record verif.Record
	Values Values
}

// DerivedTable is the result of Derive. Stats names exactly the columns that
// were added, so callers never have to diff column sets.
type DerivedTable struct {
	LineType verif.LineType
	Columns  []string
	Stats    []Stat
	Rows     []DerivedRow
}

// Len returns the number of rows.
func (d *DerivedTable) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Column returns the per-row values of one statistic in row order.
func (d *DerivedTable) Column(s Stat) []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		if s == Total {
			out[i] = r.Record.Total
			continue
		}
		out[i] = r.Values.Get(s)
	}
	return out
}

// Derive computes the line type's statistics independently for every row of
// t. The input table is not modified; each row carries its own record copy.
func Derive(t *verif.Table, lt verif.LineType) (*DerivedTable, error) {
	stats := StatsFor(lt)
	if stats == nil {
		return nil, &verif.UnknownLineTypeError{Name: lt.String()}
	}
	if err := t.Require(lt.SumColumns()...); err != nil {
		return nil, err
	}
	hasTotal := t.HasColumn(verif.ColTotal)
	out := &DerivedTable{
		LineType: lt,
		Columns:  append([]string(nil), t.Columns...),
		Stats:    stats,
		Rows:     make([]DerivedRow, len(t.Records)),
	}
	for i := range t.Records {
		rec := t.Records[i].Clone()
		total := rec.Total
		if !hasTotal {
			total = math.NaN()
		}
		out.Rows[i] = DerivedRow{Record: rec, Values: DeriveSums(rec.Sums, total, lt)}
	}
	return out, nil
}

// DeriveSums computes the statistics of one set of partial sums. A negative
// MSE, which float cancellation can produce, yields a NaN RMSE.
func DeriveSums(s verif.PartialSums, total float64, lt verif.LineType) Values {
	v := Values{}
	switch lt {
	case verif.Scalar:
		v[MSE] = s.FFBar - 2*s.FOBar + s.OOBar
		v[RMSE] = math.Sqrt(v[MSE])
		v[BiasRatio] = s.FBar / s.OBar
		v[BiasDiff] = s.FBar - s.OBar
		v[FStdev] = StdDevFromSums(s.FBar*total, s.FFBar*total, total)
		v[OStdev] = StdDevFromSums(s.OBar*total, s.OOBar*total, total)
	case verif.Vector:
		v[VectMSE] = s.UVFFBar - 2*s.UVFOBar + s.UVOOBar
		v[VectRMSE] = math.Sqrt(v[VectMSE])
		v[MagBiasRatio] = s.FSpeedBar / s.OSpeedBar
		v[MagBiasDiff] = s.FSpeedBar - s.OSpeedBar
	}
	return v
}

// StdDevFromSums returns the sample standard deviation of n values given
// their sum and sum of squares (METcalcpy calculate_stddev).
func StdDevFromSums(sum, sumSq, n float64) float64 {
	return math.Sqrt((sumSq - sum*sum/n) / (n - 1))
}
