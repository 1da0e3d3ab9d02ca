package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
)

// SeriesReport renders the data behind a die-off, profile, time series or
// sawtooth plot. Each series is one curve; Name distinguishes cycles or runs.
type SeriesReport struct {
	Meta
	Series []*analysis.Series
}

func pointInterval(p analysis.Point, s analysis.Stat) (analysis.Interval, bool) {
	if p.Summary == nil {
		return analysis.Interval{}, false
	}
	return p.Summary.Interval(s)
}

// View returns the JSON document.
func (r *SeriesReport) View() any {
	type pointView struct {
		Label string `json:"label"`
		X     Num    `json:"x"`
		Value Num    `json:"value"`
		Low   *Num   `json:"low,omitempty"`
		High  *Num   `json:"high,omitempty"`
		Total *Num   `json:"total,omitempty"`
		Gap   string `json:"gap,omitempty"`
	}
	type seriesView struct {
		Kind   string      `json:"kind"`
		Name   string      `json:"name,omitempty"`
		Stat   string      `json:"stat"`
		Mean   Num         `json:"mean"`
		Points []pointView `json:"points"`
	}
	out := make([]seriesView, 0, len(r.Series))
	for _, s := range r.Series {
		sv := seriesView{Kind: string(s.Kind), Name: s.Name, Stat: string(s.Stat), Mean: Num(s.Mean())}
		for _, p := range s.Points {
			pv := pointView{Label: p.Label, X: Num(p.X), Value: Num(p.Value(s.Stat)), Gap: p.Gap}
			if p.Summary != nil {
				t := Num(p.Summary.Total)
				pv.Total = &t
			}
			if iv, ok := pointInterval(p, s.Stat); ok {
				lo, hi := Num(iv.Low), Num(iv.High)
				pv.Low, pv.High = &lo, &hi
			}
			sv.Points = append(sv.Points, pv)
		}
		out = append(out, sv)
	}
	return struct {
		Meta
		Series []seriesView `json:"series"`
	}{r.Meta, out}
}

// Markdown renders one table per series with its mean, as plot legends do.
func (r *SeriesReport) Markdown() string {
	var b strings.Builder
	r.markdownHeader(&b, "SERIES")
	for _, s := range r.Series {
		name := string(s.Kind)
		if s.Name != "" {
			name += " " + s.Name
		}
		fmt.Fprintf(&b, "[%s %s] mean = %s", strings.ToUpper(name), s.Stat, num(s.Mean()))
		if g := s.Gaps(); g > 0 {
			fmt.Fprintf(&b, " (%d gap(s))", g)
		}
		b.WriteString("\n")
		writeMarkdownRow(&b, []string{"Point", string(s.Stat), "Low", "High", "TOTAL"})
		writeMarkdownRule(&b, 5)
		for _, p := range s.Points {
			if p.Summary == nil {
				writeMarkdownRow(&b, []string{p.Label, "NA", "", "", "0"})
				continue
			}
			lo, hi := "", ""
			if iv, ok := pointInterval(p, s.Stat); ok {
				lo, hi = num(iv.Low), num(iv.High)
			}
			writeMarkdownRow(&b, []string{p.Label, num(p.Value(s.Stat)), lo, hi, num(p.Summary.Total)})
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteCSV writes one line per point across all series.
func (r *SeriesReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "series", "stat", "label", "x", "value", "low", "high", "total", "gap"}); err != nil {
		return err
	}
	for _, s := range r.Series {
		for _, p := range s.Points {
			lo, hi, total := "", "", ""
			if iv, ok := pointInterval(p, s.Stat); ok {
				lo, hi = cell(iv.Low), cell(iv.High)
			}
			if p.Summary != nil {
				total = cell(p.Summary.Total)
			}
			_ = cw.Write([]string{string(s.Kind), s.Name, string(s.Stat), p.Label, cell(p.X), cell(p.Value(s.Stat)), lo, hi, total, p.Gap})
		}
	}
	cw.Flush()
	return cw.Error()
}
