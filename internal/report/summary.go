package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
)

// SummaryReport renders one aggregated summary.
type SummaryReport struct {
	Meta
	Summary *analysis.Summary
}

type statView struct {
	Name  string `json:"name"`
	Value Num    `json:"value"`
	Low   *Num   `json:"low,omitempty"`
	High  *Num   `json:"high,omitempty"`
}

func statViews(s *analysis.Summary) []statView {
	out := make([]statView, 0, len(s.Stats))
	for _, st := range s.Stats {
		v := statView{Name: string(st), Value: Num(s.Value(st))}
		if iv, ok := s.Interval(st); ok {
			lo, hi := Num(iv.Low), Num(iv.High)
			v.Low, v.High = &lo, &hi
		}
		out = append(out, v)
	}
	return out
}

type summaryView struct {
	LineType string     `json:"line_type"`
	Method   string     `json:"method"`
	Diff     bool       `json:"diff"`
	Percent  bool       `json:"percent,omitempty"`
	Total    Num        `json:"total"`
	N        int        `json:"n"`
	Stats    []statView `json:"stats"`
	Dropped  int        `json:"dropped,omitempty"`
}

func viewOf(s *analysis.Summary) summaryView {
	return summaryView{
		LineType: s.LineType.String(),
		Method:   string(s.Method),
		Diff:     s.Diff,
		Percent:  s.Percent,
		Total:    Num(s.Total),
		N:        s.N,
		Stats:    statViews(s),
		Dropped:  len(s.Dropped),
	}
}

// View returns the JSON document.
func (r *SummaryReport) View() any {
	return struct {
		Meta
		Summary summaryView `json:"summary"`
	}{r.Meta, viewOf(r.Summary)}
}

// Markdown renders the summary as a compact document.
func (r *SummaryReport) Markdown() string {
	var b strings.Builder
	s := r.Summary
	r.markdownHeader(&b, "VERIFICATION SUMMARY")
	fmt.Fprintf(&b, "Line type: %s\n", s.LineType)
	fmt.Fprintf(&b, "Aggregation: %s\n", s.Method)
	if s.Diff {
		mode := "difference"
		if s.Percent {
			mode = "percent difference"
		}
		fmt.Fprintf(&b, "Mode: %s (forecast minus control)\n", mode)
	}
	fmt.Fprintf(&b, "Rows: %d\n", s.N)
	fmt.Fprintf(&b, "TOTAL: %s\n", num(s.Total))
	if len(s.Dropped) > 0 {
		fmt.Fprintf(&b, "Dropped rows: %d\n", len(s.Dropped))
	}
	b.WriteString("\n[STATISTICS]\n")
	writeStatTable(&b, s)
	return b.String()
}

func writeStatTable(b *strings.Builder, s *analysis.Summary) {
	withCI := len(s.CI) > 0
	if withCI {
		b.WriteString("| Statistic | Value | Low | High |\n|---|---|---|---|\n")
	} else {
		b.WriteString("| Statistic | Value |\n|---|---|\n")
	}
	for _, v := range statViews(s) {
		if !withCI {
			fmt.Fprintf(b, "| %s | %s |\n", v.Name, num(float64(v.Value)))
			continue
		}
		lo, hi := "", ""
		if v.Low != nil {
			lo, hi = num(float64(*v.Low)), num(float64(*v.High))
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", v.Name, num(float64(v.Value)), lo, hi)
	}
}

// WriteCSV writes one line per statistic.
func (r *SummaryReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"stat", "value", "low", "high"}); err != nil {
		return err
	}
	_ = cw.Write([]string{string(analysis.Total), cell(r.Summary.Total), "", ""})
	for _, v := range statViews(r.Summary) {
		lo, hi := "", ""
		if v.Low != nil {
			lo, hi = cell(float64(*v.Low)), cell(float64(*v.High))
		}
		_ = cw.Write([]string{v.Name, cell(float64(v.Value)), lo, hi})
	}
	cw.Flush()
	return cw.Error()
}

// CIReport renders a confidence interval computed over a raw sample.
type CIReport struct {
	Meta
	Method   analysis.CIMethod
	Level    float64
	N        int
	Mean     float64
	Interval analysis.Interval
}

// View returns the JSON document.
func (r *CIReport) View() any {
	return struct {
		Meta
		Method string `json:"method"`
		Level  Num    `json:"level"`
		N      int    `json:"n"`
		Mean   Num    `json:"mean"`
		Low    Num    `json:"low"`
		High   Num    `json:"high"`
	}{r.Meta, r.Method.String(), Num(r.Level), r.N, Num(r.Mean), Num(r.Interval.Low), Num(r.Interval.High)}
}

// Markdown renders the interval.
func (r *CIReport) Markdown() string {
	var b strings.Builder
	r.markdownHeader(&b, "CONFIDENCE INTERVAL")
	fmt.Fprintf(&b, "Method: %s\n", r.Method)
	fmt.Fprintf(&b, "Level: %g%%\n", 100*r.Level)
	fmt.Fprintf(&b, "Samples: %d\n", r.N)
	fmt.Fprintf(&b, "Mean: %s\n", num(r.Mean))
	fmt.Fprintf(&b, "Interval: [%s, %s]\n", num(r.Interval.Low), num(r.Interval.High))
	return b.String()
}

// WriteCSV writes a single data line.
func (r *CIReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"method", "level", "n", "mean", "low", "high"})
	_ = cw.Write([]string{r.Method.String(), cell(r.Level), fmt.Sprint(r.N), cell(r.Mean), cell(r.Interval.Low), cell(r.Interval.High)})
	cw.Flush()
	return cw.Error()
}
