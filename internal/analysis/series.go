package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// SeriesKind names the independent variable of a series.
type SeriesKind string

const (
	KindDieOff     SeriesKind = "dieoff"
	KindProfile    SeriesKind = "profile"
	KindTimeSeries SeriesKind = "timeseries"
	KindSawtooth   SeriesKind = "sawtooth"
)

// SeriesInput is shared by the series builders.
type SeriesInput struct {
	Forecast *verif.Table
	// Control, when set, turns every point into a difference.
	Control    *verif.Table
	Conditions verif.Conditions
	Stat       Stat
	Options    Options
}

// Point is one aggregated value of a series. Summary is nil for a gap.
type Point struct {
	Label   string
	X       float64
	Summary *Summary
	Gap     string
}

// Value returns the plotted statistic, NaN for a gap.
func (p Point) Value(s Stat) float64 {
	if p.Summary == nil {
		return math.NaN()
	}
	return p.Summary.Value(s)
}

// Series is the data behind one curve of a verification plot.
type Series struct {
	Kind   SeriesKind
	Name   string
	Stat   Stat
	Points []Point
}

// Values returns the statistic for every point, NaN for gaps.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value(s.Stat)
	}
	return out
}

// Mean averages the statistic over points that are not gaps.
func (s *Series) Mean() float64 {
	var sum float64
	n := 0
	for _, p := range s.Points {
		if p.Summary == nil {
			continue
		}
		sum += p.Value(s.Stat)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Gaps counts points without a summary.
func (s *Series) Gaps() int {
	n := 0
	for _, p := range s.Points {
		if p.Summary == nil {
			n++
		}
	}
	return n
}

func (in *SeriesInput) validate() error {
	if in.Forecast == nil {
		return &EmptyInputError{Input: "forecast"}
	}
	if _, err := ParseStat(string(in.Stat), in.Options.LineType); err != nil {
		return err
	}
	if in.Control != nil && len(in.Options.Diff.Stats) > 0 {
		for _, s := range in.Options.Diff.Stats {
			if s == in.Stat {
				return nil
			}
		}
		stats := append([]Stat(nil), in.Options.Diff.Stats...)
		in.Options.Diff.Stats = append(stats, in.Stat)
	}
	return nil
}

// point aggregates the rows matching conds; filter, when set, narrows both
// subsets further. Empty subsets become gaps.
func (in *SeriesInput) point(label string, x float64, conds verif.Conditions, filter func(*verif.Table) (*verif.Table, error)) (Point, error) {
	p := Point{Label: label, X: x}
	sa, err := verif.Subset(in.Forecast, conds)
	if err != nil {
		return p, err
	}
	var sb *verif.Table
	if in.Control != nil {
		if sb, err = verif.Subset(in.Control, conds); err != nil {
			return p, fmt.Errorf("control: %w", err)
		}
	}
	if filter != nil {
		if sa, err = filter(sa); err != nil {
			return p, err
		}
		if sb != nil {
			if sb, err = filter(sb); err != nil {
				return p, err
			}
		}
	}
	s, err := Aggregate(sa, sb, in.Options)
	if err != nil {
		if IsEmptyInput(err) {
			p.Gap = err.Error()
			return p, nil
		}
		return p, fmt.Errorf("%s: %w", label, err)
	}
	p.Summary = s
	return p, nil
}

// DieOff aggregates the statistic at each forecast lead (hours).
func DieOff(in SeriesInput, leads []int) (*Series, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	out := &Series{Kind: KindDieOff, Stat: in.Stat}
	for _, h := range leads {
		conds := in.Conditions.With(verif.ColFcstLead, strconv.Itoa(verif.LeadFromHours(h)))
		p, err := in.point(fmt.Sprintf("%dh", h), float64(h), conds, nil)
		if err != nil {
			return nil, err
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

// Profile aggregates the statistic at every level of the given vertical
// coordinate present in the forecast subset, in ascending order of value.
// Levels named in exclude are left out.
func Profile(in SeriesInput, coord byte, exclude []string) (*Series, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	base, err := verif.Subset(in.Forecast, in.Conditions)
	if err != nil {
		return nil, err
	}
	raw, err := base.Unique(verif.ColFcstLev)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var levels []verif.Level
	for _, r := range raw {
		lev, err := verif.ParseLevel(r)
		if err != nil || lev.Coord != coord || skip[r] {
			continue
		}
		levels = append(levels, lev)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Value < levels[j].Value })

	out := &Series{Kind: KindProfile, Stat: in.Stat}
	for _, lev := range levels {
		p, err := in.point(lev.Raw, lev.Value, in.Conditions.With(verif.ColFcstLev, lev.Raw), nil)
		if err != nil {
			return nil, err
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

// TimeSeries aggregates the statistic at every valid time in the forecast
// subset, in chronological order. X is the valid time in Unix seconds.
func TimeSeries(in SeriesInput) (*Series, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	base, err := verif.Subset(in.Forecast, in.Conditions)
	if err != nil {
		return nil, err
	}
	valid, err := base.Unique(verif.ColFcstValidBeg)
	if err != nil {
		return nil, err
	}
	sort.Strings(valid)
	out := &Series{Kind: KindTimeSeries, Stat: in.Stat}
	for _, v := range valid {
		ts, err := time.Parse(verif.ValidTimeLayout, v)
		if err != nil {
			return nil, fmt.Errorf("valid time %q: %w", v, err)
		}
		p, err := in.point(v, float64(ts.Unix()), in.Conditions.With(verif.ColFcstValidBeg, v), nil)
		if err != nil {
			return nil, err
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

// SawtoothOptions selects the cycles and the vertical extent of a sawtooth.
type SawtoothOptions struct {
	Inits []time.Time
	// Leads in hours; each cycle contributes the point valid at init+lead.
	Leads []int
	// Level restricts points to one FCST_LEV. Ignored when Band is set.
	Level string
	// Band averages each point over a layer instead of a single level.
	Band *Band
}

// Sawtooth returns one series per initialization time. Each point is the
// statistic at valid time init+lead for FCST_LEAD = lead.
func Sawtooth(in SeriesInput, opt SawtoothOptions) ([]*Series, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var filter func(*verif.Table) (*verif.Table, error)
	if opt.Band != nil {
		filter = opt.Band.Filter
	}
	var out []*Series
	for _, init := range opt.Inits {
		s := &Series{Kind: KindSawtooth, Name: init.UTC().Format(verif.ValidTimeLayout), Stat: in.Stat}
		for _, h := range opt.Leads {
			valid := init.Add(time.Duration(h) * time.Hour).UTC()
			conds := in.Conditions.
				With(verif.ColFcstLead, strconv.Itoa(verif.LeadFromHours(h))).
				With(verif.ColFcstValidBeg, valid.Format(verif.ValidTimeLayout))
			if opt.Band == nil && opt.Level != "" {
				conds = conds.With(verif.ColFcstLev, opt.Level)
			}
			p, err := in.point(fmt.Sprintf("%s+%dh", s.Name, h), float64(valid.Unix()), conds, filter)
			if err != nil {
				return nil, err
			}
			s.Points = append(s.Points, p)
		}
		out = append(out, s)
	}
	return out, nil
}
