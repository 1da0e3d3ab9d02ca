package analysis

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// Band selects levels of one vertical coordinate within [Min, Max].
type Band struct {
	Coord byte
	Min   float64
	Max   float64
}

// ParseBand builds a band from two level strings such as "P1000" and "P100".
// The bounds may be given in either order but must share a coordinate.
func ParseBand(lo, hi string) (Band, error) {
	l1, err := verif.ParseLevel(lo)
	if err != nil {
		return Band{}, err
	}
	l2, err := verif.ParseLevel(hi)
	if err != nil {
		return Band{}, err
	}
	if l1.Coord != l2.Coord {
		return Band{}, fmt.Errorf("levels %s and %s use different vertical coordinates", lo, hi)
	}
	b := Band{Coord: l1.Coord, Min: l1.Value, Max: l2.Value}
	if b.Min > b.Max {
		b.Min, b.Max = b.Max, b.Min
	}
	return b, nil
}

func (b Band) String() string {
	return fmt.Sprintf("%c%g-%c%g", b.Coord, b.Min, b.Coord, b.Max)
}

// Filter returns the rows whose FCST_LEV lies in the band. Levels that do not
// parse as a single coordinate value (ranged levels such as P850-500) are
// excluded.
func (b Band) Filter(t *verif.Table) (*verif.Table, error) {
	if err := t.Require(verif.ColFcstLev); err != nil {
		return nil, err
	}
	return t.Filter(func(r *verif.Record) bool {
		lev, err := verif.ParseLevel(r.FcstLev)
		return err == nil && lev.InBand(b.Coord, b.Min, b.Max)
	}), nil
}

// GroupColumns are the independent variables vertical averaging groups by.
var GroupColumns = []string{verif.ColFcstLead, verif.ColFcstValidBeg, verif.ColFcstVar, verif.ColObType}

// GroupKey identifies one vertical-average group.
type GroupKey struct {
	Lead     int
	ValidBeg string
	Var      string
	ObType   string
}

func groupKeyOf(r *verif.Record) GroupKey {
	return GroupKey{Lead: r.FcstLead, ValidBeg: r.FcstValidBeg, Var: r.FcstVar, ObType: r.ObType}
}

func (k GroupKey) less(o GroupKey) bool {
	if k.Lead != o.Lead {
		return k.Lead < o.Lead
	}
	if k.ValidBeg != o.ValidBeg {
		return k.ValidBeg < o.ValidBeg
	}
	if k.Var != o.Var {
		return k.Var < o.Var
	}
	return k.ObType < o.ObType
}

// VerticalRow is the summary of one group.
type VerticalRow struct {
	Key     GroupKey
	Summary *Summary
}

// SkippedGroup is a group that produced no summary.
type SkippedGroup struct {
	Key    GroupKey
	Reason string
}

// VerticalResult holds one row per group, ordered by lead, valid time,
// variable and observation type.
type VerticalResult struct {
	Band    Band
	Rows    []VerticalRow
	Skipped []SkippedGroup
}

// VerticalAverage filters a (and b, when given) to the band, groups the
// remaining rows by lead, valid time, variable and observation type, and
// aggregates each group with opt. Groups are taken from a; a group absent from
// b is skipped and reported.
func VerticalAverage(a, b *verif.Table, band Band, opt Options) (*VerticalResult, error) {
	if err := a.Require(GroupColumns...); err != nil {
		return nil, err
	}
	fa, err := band.Filter(a)
	if err != nil {
		return nil, err
	}
	if fa.Len() == 0 {
		return nil, &EmptyInputError{Input: "forecast " + band.String()}
	}
	groupsA := groupRecords(fa)
	var groupsB map[GroupKey]*verif.Table
	if b != nil {
		if err := b.Require(GroupColumns...); err != nil {
			return nil, fmt.Errorf("control: %w", err)
		}
		fb, err := band.Filter(b)
		if err != nil {
			return nil, err
		}
		groupsB = groupRecords(fb)
	}

	keys := make([]GroupKey, 0, len(groupsA))
	for k := range groupsA {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	res := &VerticalResult{Band: band}
	for _, k := range keys {
		var tb *verif.Table
		if b != nil {
			tb = groupsB[k]
			if tb == nil {
				res.Skipped = append(res.Skipped, SkippedGroup{Key: k, Reason: "no control rows"})
				continue
			}
		}
		s, err := Aggregate(groupsA[k], tb, opt)
		if err != nil {
			if IsEmptyInput(err) {
				res.Skipped = append(res.Skipped, SkippedGroup{Key: k, Reason: err.Error()})
				continue
			}
			return nil, fmt.Errorf("group %+v: %w", k, err)
		}
		res.Rows = append(res.Rows, VerticalRow{Key: k, Summary: s})
	}
	return res, nil
}

func groupRecords(t *verif.Table) map[GroupKey]*verif.Table {
	out := map[GroupKey]*verif.Table{}
	for i := range t.Records {
		k := groupKeyOf(&t.Records[i])
		g, ok := out[k]
		if !ok {
			g = verif.NewTable(append([]string(nil), t.Columns...), nil)
			out[k] = g
		}
		g.Records = append(g.Records, t.Records[i].Clone())
	}
	return out
}
