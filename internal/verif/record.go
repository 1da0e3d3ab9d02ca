package verif

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names as written in the header of MET .stat output.
const (
	ColVersion      = "VERSION"
	ColModel        = "MODEL"
	ColDesc         = "DESC"
	ColFcstLead     = "FCST_LEAD"
	ColFcstValidBeg = "FCST_VALID_BEG"
	ColFcstValidEnd = "FCST_VALID_END"
	ColObsLead      = "OBS_LEAD"
	ColObsValidBeg  = "OBS_VALID_BEG"
	ColObsValidEnd  = "OBS_VALID_END"
	ColFcstVar      = "FCST_VAR"
	ColFcstUnits    = "FCST_UNITS"
	ColFcstLev      = "FCST_LEV"
	ColObsVar       = "OBS_VAR"
	ColObsUnits     = "OBS_UNITS"
	ColObsLev       = "OBS_LEV"
	ColObType       = "OBTYPE"
	ColVxMask       = "VX_MASK"
	ColInterpMthd   = "INTERP_MTHD"
	ColLineType     = "LINE_TYPE"
	ColTotal        = "TOTAL"
)

// ValidTimeLayout is the timestamp layout of FCST_VALID_BEG and friends.
const ValidTimeLayout = "20060102_150405"

// Record is one line of MET verification output.
type Record struct {
	Version      string
	Model        string
	Desc         string
	FcstLead     int // HHMMSS, e.g. 60000 for a 6 h forecast
	FcstValidBeg string
	FcstValidEnd string
	ObsLead      int
	ObsValidBeg  string
	ObsValidEnd  string
	FcstVar      string
	FcstUnits    string
	FcstLev      string
	ObsVar       string
	ObsUnits     string
	ObsLev       string
	ObType       string
	VxMask       string
	InterpMthd   string
	LineType     string
	Total        float64
	Sums         PartialSums
	// Extra holds columns without a typed field (INTERP_PNTS, MAE, ...).
	Extra map[string]string
}

// PartialSums are the pre-aggregated moments of SL1L2 and VL1L2 lines.
type PartialSums struct {
	FBar  float64
	OBar  float64
	FOBar float64
	FFBar float64
	OOBar float64

	UFBar     float64
	VFBar     float64
	UOBar     float64
	VOBar     float64
	UVFOBar   float64
	UVFFBar   float64
	UVOOBar   float64
	FSpeedBar float64
	OSpeedBar float64
}

type sumColumn struct {
	name string
	ptr  func(*PartialSums) *float64
}

var sumColumns = []sumColumn{
	{"FBAR", func(p *PartialSums) *float64 { return &p.FBar }},
	{"OBAR", func(p *PartialSums) *float64 { return &p.OBar }},
	{"FOBAR", func(p *PartialSums) *float64 { return &p.FOBar }},
	{"FFBAR", func(p *PartialSums) *float64 { return &p.FFBar }},
	{"OOBAR", func(p *PartialSums) *float64 { return &p.OOBar }},
	{"UFBAR", func(p *PartialSums) *float64 { return &p.UFBar }},
	{"VFBAR", func(p *PartialSums) *float64 { return &p.VFBar }},
	{"UOBAR", func(p *PartialSums) *float64 { return &p.UOBar }},
	{"VOBAR", func(p *PartialSums) *float64 { return &p.VOBar }},
	{"UVFOBAR", func(p *PartialSums) *float64 { return &p.UVFOBar }},
	{"UVFFBAR", func(p *PartialSums) *float64 { return &p.UVFFBar }},
	{"UVOOBAR", func(p *PartialSums) *float64 { return &p.UVOOBar }},
	{"F_SPEED_BAR", func(p *PartialSums) *float64 { return &p.FSpeedBar }},
	{"O_SPEED_BAR", func(p *PartialSums) *float64 { return &p.OSpeedBar }},
}

var sumIndex = func() map[string]int {
	m := make(map[string]int, len(sumColumns))
	for i, c := range sumColumns {
		m[c.name] = i
	}
	return m
}()

// SumColumns lists every partial-sum column name in schema order.
func SumColumns() []string {
	out := make([]string, len(sumColumns))
	for i, c := range sumColumns {
		out[i] = c.name
	}
	return out
}

// IsSumColumn reports whether name is a partial-sum (*BAR) column.
func IsSumColumn(name string) bool {
	_, ok := sumIndex[name]
	return ok
}

// Get returns the named partial sum.
func (p *PartialSums) Get(name string) (float64, bool) {
	i, ok := sumIndex[name]
	if !ok {
		return 0, false
	}
	return *sumColumns[i].ptr(p), true
}

// Set assigns the named partial sum and reports whether the name is known.
func (p *PartialSums) Set(name string, v float64) bool {
	i, ok := sumIndex[name]
	if !ok {
		return false
	}
	*sumColumns[i].ptr(p) = v
	return true
}

type fieldSpec struct {
	get func(*Record) string
	set func(*Record, string) error
}

func stringField(ptr func(*Record) *string) fieldSpec {
	return fieldSpec{
		get: func(r *Record) string { return *ptr(r) },
		set: func(r *Record, v string) error { *ptr(r) = v; return nil },
	}
}

func leadField(ptr func(*Record) *int) fieldSpec {
	return fieldSpec{
		get: func(r *Record) string { return strconv.Itoa(*ptr(r)) },
		set: func(r *Record, v string) error {
			n, err := ParseLead(v)
			if err != nil {
				return err
			}
			*ptr(r) = n
			return nil
		},
	}
}

var fields = map[string]fieldSpec{
	ColVersion:      stringField(func(r *Record) *string { return &r.Version }),
	ColModel:        stringField(func(r *Record) *string { return &r.Model }),
	ColDesc:         stringField(func(r *Record) *string { return &r.Desc }),
	ColFcstLead:     leadField(func(r *Record) *int { return &r.FcstLead }),
	ColFcstValidBeg: stringField(func(r *Record) *string { return &r.FcstValidBeg }),
	ColFcstValidEnd: stringField(func(r *Record) *string { return &r.FcstValidEnd }),
	ColObsLead:      leadField(func(r *Record) *int { return &r.ObsLead }),
	ColObsValidBeg:  stringField(func(r *Record) *string { return &r.ObsValidBeg }),
	ColObsValidEnd:  stringField(func(r *Record) *string { return &r.ObsValidEnd }),
	ColFcstVar:      stringField(func(r *Record) *string { return &r.FcstVar }),
	ColFcstUnits:    stringField(func(r *Record) *string { return &r.FcstUnits }),
	ColFcstLev:      stringField(func(r *Record) *string { return &r.FcstLev }),
	ColObsVar:       stringField(func(r *Record) *string { return &r.ObsVar }),
	ColObsUnits:     stringField(func(r *Record) *string { return &r.ObsUnits }),
	ColObsLev:       stringField(func(r *Record) *string { return &r.ObsLev }),
	ColObType:       stringField(func(r *Record) *string { return &r.ObType }),
	ColVxMask:       stringField(func(r *Record) *string { return &r.VxMask }),
	ColInterpMthd:   stringField(func(r *Record) *string { return &r.InterpMthd }),
	ColLineType:     stringField(func(r *Record) *string { return &r.LineType }),
	ColTotal: {
		get: func(r *Record) string { return formatFloat(r.Total) },
		set: func(r *Record, v string) error {
			f, err := ParseNumber(v)
			if err != nil {
				return err
			}
			r.Total = f
			return nil
		},
	},
}

// Field returns the textual value of a column. Numeric columns are rendered
// with the shortest representation that round-trips.
func (r *Record) Field(name string) (string, bool) {
	if f, ok := fields[name]; ok {
		return f.get(r), true
	}
	if v, ok := r.Sums.Get(name); ok {
		return formatFloat(v), true
	}
	v, ok := r.Extra[name]
	return v, ok
}

// SetField parses raw into the named column.
func (r *Record) SetField(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if f, ok := fields[name]; ok {
		if err := f.set(r, raw); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		return nil
	}
	if IsSumColumn(name) {
		v, err := ParseNumber(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		r.Sums.Set(name, v)
		return nil
	}
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[name] = raw
	return nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Extra != nil {
		extra := make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

// ParseNumber parses a MET numeric cell. "NA" yields NaN.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseLead parses an HHMMSS lead time ("060000", "60000", "6e4").
func ParseLead(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lead %q", s)
	}
	return int(math.Round(f)), nil
}

// LeadFromHours encodes a lead in hours the way MET does (HHMMSS).
func LeadFromHours(h int) int { return h * 10000 }

// LeadHours decodes an HHMMSS lead to whole hours.
func LeadHours(lead int) int { return lead / 10000 }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
