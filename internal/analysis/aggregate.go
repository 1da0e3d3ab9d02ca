package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// ErrNonPositiveTotal is returned when partial sums are combined over rows
// whose TOTAL does not add up to a positive count.
var ErrNonPositiveTotal = errors.New("TOTAL must sum to a positive count")

// Method records how a summary was aggregated.
type Method string

const (
	// MethodPartialSums recombines the *BAR columns weighted by TOTAL, then
	// derives statistics once.
	MethodPartialSums Method = "partial_sums"
	// MethodPostHoc derives statistics per row, then averages them.
	MethodPostHoc Method = "post_hoc"
)

// Options configures Aggregate. Construct a fresh value per call.
type Options struct {
	LineType verif.LineType
	// PartialSums selects partial-sum aggregation. It is ignored when CI is
	// set because intervals need the per-row sample.
	PartialSums bool
	// Diff applies when a second table is passed to Aggregate.
	Diff DiffOptions
	// CI, when non-nil, requests confidence intervals on averaged statistics.
	CI *CIOptions
}

// DefaultOptions returns post-hoc scalar aggregation without intervals.
func DefaultOptions() Options {
	return Options{LineType: verif.Scalar}
}

// Summary is the single-row result of aggregating a table.
type Summary struct {
	LineType verif.LineType
	Method   Method
	// Diff is set when the values are differences against a control table.
	Diff    bool
	Percent bool
	Total   float64
	// N is the number of rows (or matched pairs) behind the summary.
	N      int
	Stats  []Stat
	Values Values
	// CI holds bounds for statistics that vary across rows.
	CI map[Stat]Interval
	// Dropped lists first-table rows without a unique control match.
	Dropped []DroppedRow
}

// Value returns the summary value of s; TOTAL is served from Total.
func (s *Summary) Value(st Stat) float64 {
	if st == Total {
		return s.Total
	}
	return s.Values.Get(st)
}

// Interval returns the confidence interval of st, if one was computed.
func (s *Summary) Interval(st Stat) (Interval, bool) {
	iv, ok := s.CI[st]
	return iv, ok
}

// Aggregate summarizes a into one row of statistics. When b is non-nil the
// same aggregation is applied to both and the result holds a - b (or the
// percent difference). An empty input yields *EmptyInputError.
func Aggregate(a, b *verif.Table, opt Options) (*Summary, error) {
	if StatsFor(opt.LineType) == nil {
		return nil, &verif.UnknownLineTypeError{Name: opt.LineType.String()}
	}
	if a.Len() == 0 {
		return nil, &EmptyInputError{Input: "forecast"}
	}
	if b != nil && b.Len() == 0 {
		return nil, &EmptyInputError{Input: "control"}
	}
	if opt.PartialSums && opt.CI == nil {
		if b == nil {
			return aggregateSums(a, opt.LineType)
		}
		return aggregateSumsDiff(a, b, opt)
	}
	if b == nil {
		return aggregatePostHoc(a, opt)
	}
	return aggregatePostHocDiff(a, b, opt)
}

// CombineSums recombines every partial-sum column of t as the TOTAL-weighted
// mean across rows and returns the combined sums with the summed TOTAL.
func CombineSums(t *verif.Table, lt verif.LineType) (verif.PartialSums, float64, error) {
	var out verif.PartialSums
	if err := t.Require(append(lt.SumColumns(), verif.ColTotal)...); err != nil {
		return out, 0, err
	}
	var total float64
	for i := range t.Records {
		total += t.Records[i].Total
	}
	if !(total > 0) {
		return out, total, ErrNonPositiveTotal
	}
	for _, col := range t.Columns {
		if !verif.IsSumColumn(col) {
			continue
		}
		var weighted float64
		for i := range t.Records {
			v, _ := t.Records[i].Sums.Get(col)
			weighted += v * t.Records[i].Total
		}
		out.Set(col, weighted/total)
	}
	return out, total, nil
}

func aggregateSums(t *verif.Table, lt verif.LineType) (*Summary, error) {
	sums, total, err := CombineSums(t, lt)
	if err != nil {
		return nil, err
	}
	return &Summary{
		LineType: lt,
		Method:   MethodPartialSums,
		Total:    total,
		N:        t.Len(),
		Stats:    StatsFor(lt),
		Values:   DeriveSums(sums, total, lt),
	}, nil
}

func aggregateSumsDiff(a, b *verif.Table, opt Options) (*Summary, error) {
	lt := opt.LineType
	stats := opt.Diff.stats(lt)
	for _, s := range stats {
		if _, err := ParseStat(string(s), lt); err != nil {
			return nil, err
		}
	}
	sa, err := aggregateSums(a, lt)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	sb, err := aggregateSums(b, lt)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	values := make(Values, len(stats))
	for _, s := range stats {
		values[s] = difference(sa.Value(s), sb.Value(s), opt.Diff.Percent)
	}
	return &Summary{
		LineType: lt,
		Method:   MethodPartialSums,
		Diff:     true,
		Percent:  opt.Diff.Percent,
		Total:    sa.Total,
		N:        sa.N,
		Stats:    stats,
		Values:   values,
	}, nil
}

func aggregatePostHoc(t *verif.Table, opt Options) (*Summary, error) {
	if opt.CI != nil && t.HasColumn(verif.ColFcstValidBeg) {
		t = t.SortedByValidTime()
	}
	d, err := Derive(t, opt.LineType)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		LineType: opt.LineType,
		Method:   MethodPostHoc,
		Total:    math.NaN(),
		N:        d.Len(),
		Stats:    d.Stats,
	}
	if t.HasColumn(verif.ColTotal) {
		sum.Total = floats(d.Column(Total)).sum()
	}
	sum.Values, sum.CI, err = averageColumns(d.Stats, d.Column, opt.CI)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func aggregatePostHocDiff(a, b *verif.Table, opt Options) (*Summary, error) {
	dr, err := PairwiseDiff(a, b, opt.LineType, opt.Diff)
	if err != nil {
		return nil, err
	}
	if dr.Len() == 0 {
		return nil, &EmptyInputError{Input: "matched pairs"}
	}
	if opt.CI != nil {
		sort.SliceStable(dr.Rows, func(i, j int) bool { return dr.Rows[i].ValidBeg < dr.Rows[j].ValidBeg })
	}
	sum := &Summary{
		LineType: opt.LineType,
		Method:   MethodPostHoc,
		Diff:     true,
		Percent:  opt.Diff.Percent,
		Total:    floats(dr.Column(Total)).sum(),
		N:        dr.Len(),
		Stats:    dr.Stats,
		Dropped:  dr.Dropped,
	}
	sum.Values, sum.CI, err = averageColumns(dr.Stats, dr.Column, opt.CI)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// averageColumns averages each statistic across rows. Constant columns keep
// their value and get no interval. Intervals are taken over the non-NaN
// values and only when at least two of them differ.
func averageColumns(stats []Stat, column func(Stat) []float64, ci *CIOptions) (Values, map[Stat]Interval, error) {
	values := make(Values, len(stats))
	var intervals map[Stat]Interval
	if ci != nil {
		intervals = make(map[Stat]Interval)
	}
	for _, s := range stats {
		col := column(s)
		if floats(col).constant() {
			values[s] = col[0]
			continue
		}
		values[s] = stat.Mean(col, nil)
		if ci == nil || s == Total {
			continue
		}
		sample := floats(col).finite()
		if len(sample) < 2 || sample.constant() {
			continue
		}
		iv, err := ConfidenceInterval(sample, *ci)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", s, err)
		}
		intervals[s] = iv
	}
	return values, intervals, nil
}

type floats []float64

func (f floats) sum() float64 {
	var s float64
	for _, v := range f {
		s += v
	}
	return s
}

// finite drops NaN values, keeping order.
func (f floats) finite() floats {
	out := make(floats, 0, len(f))
	for _, v := range f {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// constant reports whether every value equals the first. NaN never compares
// equal, so a column holding NaN is treated as varying.
func (f floats) constant() bool {
	if len(f) == 0 {
		return false
	}
	for _, v := range f[1:] {
		if v != f[0] {
			return false
		}
	}
	return !math.IsNaN(f[0])
}
