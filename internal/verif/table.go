package verif

import (
	"sort"
	"strconv"
)

// Table is an ordered collection of records sharing one column schema.
// Row order carries no meaning; operations never modify a table in place.
type Table struct {
	Columns []string
	Records []Record
}

// NewTable builds a table over the given columns and records.
func NewTable(columns []string, records []Record) *Table {
	return &Table{Columns: columns, Records: records}
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether every record in the table carries the column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require returns a *MissingColumnError for the first absent column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return &MissingColumnError{Column: c}
		}
	}
	return nil
}

// Clone returns a deep copy that callers may modify freely.
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	recs := make([]Record, len(t.Records))
	for i, r := range t.Records {
		recs[i] = r.Clone()
	}
	return &Table{Columns: cols, Records: recs}
}

// Filter returns a copy holding the records keep accepts, in input order.
func (t *Table) Filter(keep func(*Record) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for i := range t.Records {
		if keep(&t.Records[i]) {
			out.Records = append(out.Records, t.Records[i].Clone())
		}
	}
	return out
}

// Unique returns the distinct values of a column, sorted numerically when
// every value is a number and lexically otherwise.
func (t *Table) Unique(col string) ([]string, error) {
	if err := t.Require(col); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for i := range t.Records {
		v, _ := t.Records[i].Field(col)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sortValues(out)
	return out, nil
}

// SortedByValidTime returns a copy ordered by FCST_VALID_BEG. The sort is
// stable so rows sharing a valid time keep their relative order.
func (t *Table) SortedByValidTime() *Table {
	out := t.Clone()
	sort.SliceStable(out.Records, func(i, j int) bool {
		return out.Records[i].FcstValidBeg < out.Records[j].FcstValidBeg
	})
	return out
}

// Concat joins tables read from separate files. The resulting schema is the
// set of columns every input shares, in the order of the first table.
func Concat(tables ...*Table) *Table {
	var nonNil []*Table
	for _, t := range tables {
		if t != nil {
			nonNil = append(nonNil, t)
		}
	}
	if len(nonNil) == 0 {
		return &Table{}
	}
	out := &Table{}
	for _, c := range nonNil[0].Columns {
		shared := true
		for _, t := range nonNil[1:] {
			if !t.HasColumn(c) {
				shared = false
				break
			}
		}
		if shared {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, t := range nonNil {
		for _, r := range t.Records {
			out.Records = append(out.Records, r.Clone())
		}
	}
	return out
}

func sortValues(vals []string) {
	numeric := true
	nums := make(map[string]float64, len(vals))
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[v] = f
	}
	if numeric {
		sort.Slice(vals, func(i, j int) bool { return nums[vals[i]] < nums[vals[j]] })
		return
	}
	sort.Strings(vals)
}
