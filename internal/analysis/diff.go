package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// DefaultMatchKeys are the columns two rows must share to be differenced.
func DefaultMatchKeys() []string {
	return []string{
		verif.ColFcstLead,
		verif.ColFcstVar,
		verif.ColFcstValidBeg,
		verif.ColFcstLev,
		verif.ColFcstUnits,
		verif.ColVxMask,
	}
}

// DiffOptions configures pairwise differences.
type DiffOptions struct {
	// Stats to difference; empty selects every statistic of the line type.
	Stats []Stat
	// Percent reports 100*(a-b)/b instead of a-b.
	Percent bool
	// Match lists the key columns; empty selects DefaultMatchKeys.
	Match []string
}

func (o DiffOptions) matchKeys() []string {
	if len(o.Match) == 0 {
		return DefaultMatchKeys()
	}
	return o.Match
}

func (o DiffOptions) stats(lt verif.LineType) []Stat {
	if len(o.Stats) == 0 {
		return StatsFor(lt)
	}
	return o.Stats
}

// DropReason explains why a row of the first table produced no difference.
type DropReason string

const (
	DropNoMatch   DropReason = "no_match"
	DropAmbiguous DropReason = "ambiguous"
)

// DiffRow is the difference between one record of each table.
type DiffRow struct {
	// Desc joins both DESC values as "a - b".
	Desc string
	// Keys holds the match-key values in DiffResult.Match order.
	Keys     []string
	ValidBeg string
	// Total is the sample count of the first table's row.
	Total  float64
	Values Values
}

// DroppedRow is a first-table record that had zero or several matches.
type DroppedRow struct {
	Record  verif.Record
	Reason  DropReason
	Matches int
}

// DiffResult holds the differences and an account of every dropped row.
type DiffResult struct {
	Match   []string
	Stats   []Stat
	Rows    []DiffRow
	Dropped []DroppedRow
}

// Len returns the number of difference rows.
func (d *DiffResult) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Column returns one statistic across all difference rows.
func (d *DiffResult) Column(s Stat) []float64 {
	out := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		if s == Total {
			out[i] = r.Total
			continue
		}
		out[i] = r.Values.Get(s)
	}
	return out
}

// DroppedBy counts dropped rows with the given reason.
func (d *DiffResult) DroppedBy(reason DropReason) int {
	n := 0
	for _, r := range d.Dropped {
		if r.Reason == reason {
			n++
		}
	}
	return n
}

// PairwiseDiff derives statistics for both tables and, for every row of a
// with exactly one match in b, emits the difference a - b. Rows without a
// unique match are returned in Dropped rather than reported as errors.
func PairwiseDiff(a, b *verif.Table, lt verif.LineType, opt DiffOptions) (*DiffResult, error) {
	match := opt.matchKeys()
	stats := opt.stats(lt)
	for _, s := range stats {
		if _, err := ParseStat(string(s), lt); err != nil {
			return nil, err
		}
	}
	if err := a.Require(match...); err != nil {
		return nil, fmt.Errorf("first table: %w", err)
	}
	if err := b.Require(match...); err != nil {
		return nil, fmt.Errorf("second table: %w", err)
	}
	da, err := Derive(a, lt)
	if err != nil {
		return nil, fmt.Errorf("first table: %w", err)
	}
	db, err := Derive(b, lt)
	if err != nil {
		return nil, fmt.Errorf("second table: %w", err)
	}

	index := make(map[string][]int, db.Len())
	for i := range db.Rows {
		k := joinKey(&db.Rows[i].Record, match)
		index[k] = append(index[k], i)
	}

	res := &DiffResult{Match: append([]string(nil), match...), Stats: stats}
	for i := range da.Rows {
		ra := &da.Rows[i]
		hits := index[joinKey(&ra.Record, match)]
		if len(hits) == 0 {
			res.Dropped = append(res.Dropped, DroppedRow{Record: ra.Record, Reason: DropNoMatch})
			continue
		}
		if len(hits) > 1 {
			res.Dropped = append(res.Dropped, DroppedRow{Record: ra.Record, Reason: DropAmbiguous, Matches: len(hits)})
			continue
		}
		rb := &db.Rows[hits[0]]
		row := DiffRow{
			Desc:     ra.Record.Desc + " - " + rb.Record.Desc,
			Keys:     keyValues(&ra.Record, match),
			ValidBeg: ra.Record.FcstValidBeg,
			Total:    ra.Record.Total,
			Values:   make(Values, len(stats)),
		}
		for _, s := range stats {
			row.Values[s] = difference(statValue(ra, s), statValue(rb, s), opt.Percent)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func statValue(r *DerivedRow, s Stat) float64 {
	if s == Total {
		return r.Record.Total
	}
	return r.Values.Get(s)
}

func difference(a, b float64, pct bool) float64 {
	if pct {
		return 100 * (a - b) / b
	}
	return a - b
}

func keyValues(r *verif.Record, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i], _ = r.Field(c)
	}
	return out
}

func joinKey(r *verif.Record, cols []string) string {
	return strings.Join(keyValues(r, cols), "\x1f")
}
