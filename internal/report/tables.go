package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/analysis"
	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// DiffReport renders pairwise differences row by row.
type DiffReport struct {
	Meta
	Result  *analysis.DiffResult
	Percent bool
}

// View returns the JSON document.
func (r *DiffReport) View() any {
	type rowView struct {
		Desc   string            `json:"desc"`
		Keys   map[string]string `json:"keys"`
		Total  Num               `json:"total"`
		Values map[string]Num    `json:"values"`
	}
	type dropView struct {
		Keys    map[string]string `json:"keys"`
		Reason  string            `json:"reason"`
		Matches int               `json:"matches,omitempty"`
	}
	res := r.Result
	rows := make([]rowView, 0, len(res.Rows))
	for _, row := range res.Rows {
		rv := rowView{Desc: row.Desc, Keys: map[string]string{}, Total: Num(row.Total), Values: map[string]Num{}}
		for i, k := range res.Match {
			rv.Keys[k] = row.Keys[i]
		}
		for _, s := range res.Stats {
			rv.Values[string(s)] = Num(row.Values.Get(s))
		}
		rows = append(rows, rv)
	}
	drops := make([]dropView, 0, len(res.Dropped))
	for _, d := range res.Dropped {
		dv := dropView{Keys: map[string]string{}, Reason: string(d.Reason), Matches: d.Matches}
		for _, k := range res.Match {
			dv.Keys[k], _ = d.Record.Field(k)
		}
		drops = append(drops, dv)
	}
	return struct {
		Meta
		Percent bool       `json:"percent"`
		Rows    []rowView  `json:"rows"`
		Dropped []dropView `json:"dropped"`
	}{r.Meta, r.Percent, rows, drops}
}

// Markdown renders the differences as a table followed by the dropped rows.
func (r *DiffReport) Markdown() string {
	var b strings.Builder
	res := r.Result
	r.markdownHeader(&b, "PAIRWISE DIFFERENCES")
	fmt.Fprintf(&b, "Matched rows: %d\n", res.Len())
	fmt.Fprintf(&b, "Dropped: %d no match, %d ambiguous\n", res.DroppedBy(analysis.DropNoMatch), res.DroppedBy(analysis.DropAmbiguous))
	if r.Percent {
		b.WriteString("Values: percent of control\n")
	}
	b.WriteString("\n[ROWS]\n")
	header := append(append([]string{}, res.Match...), "DESC")
	for _, s := range res.Stats {
		header = append(header, string(s))
	}
	writeMarkdownRow(&b, header)
	writeMarkdownRule(&b, len(header))
	for _, row := range res.Rows {
		cells := append(append([]string{}, row.Keys...), row.Desc)
		for _, s := range res.Stats {
			cells = append(cells, num(row.Values.Get(s)))
		}
		writeMarkdownRow(&b, cells)
	}
	if len(res.Dropped) > 0 {
		b.WriteString("\n[DROPPED]\n")
		for _, d := range res.Dropped {
			keys := make([]string, len(res.Match))
			for i, k := range res.Match {
				v, _ := d.Record.Field(k)
				keys[i] = k + "=" + v
			}
			fmt.Fprintf(&b, "- %s: %s\n", d.Reason, strings.Join(keys, " "))
		}
	}
	return b.String()
}

// WriteCSV writes one line per difference row.
func (r *DiffReport) WriteCSV(w io.Writer) error {
	res := r.Result
	cw := csv.NewWriter(w)
	header := append(append([]string{}, res.Match...), verif.ColDesc, verif.ColTotal)
	for _, s := range res.Stats {
		header = append(header, string(s))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range res.Rows {
		line := append(append([]string{}, row.Keys...), row.Desc, cell(row.Total))
		for _, s := range res.Stats {
			line = append(line, cell(row.Values.Get(s)))
		}
		_ = cw.Write(line)
	}
	cw.Flush()
	return cw.Error()
}

// VerticalReport renders one summary per vertical-average group.
type VerticalReport struct {
	Meta
	Result *analysis.VerticalResult
}

func (r *VerticalReport) stats() []analysis.Stat {
	if len(r.Result.Rows) == 0 {
		return nil
	}
	return r.Result.Rows[0].Summary.Stats
}

func (r *VerticalReport) hasCI() bool {
	for _, row := range r.Result.Rows {
		if len(row.Summary.CI) > 0 {
			return true
		}
	}
	return false
}

// View returns the JSON document.
func (r *VerticalReport) View() any {
	type groupView struct {
		Lead     int         `json:"fcst_lead"`
		ValidBeg string      `json:"fcst_valid_beg"`
		Var      string      `json:"fcst_var"`
		ObType   string      `json:"obtype"`
		Summary  summaryView `json:"summary"`
	}
	type skipView struct {
		Lead     int    `json:"fcst_lead"`
		ValidBeg string `json:"fcst_valid_beg"`
		Var      string `json:"fcst_var"`
		ObType   string `json:"obtype"`
		Reason   string `json:"reason"`
	}
	groups := make([]groupView, 0, len(r.Result.Rows))
	for _, row := range r.Result.Rows {
		k := row.Key
		groups = append(groups, groupView{k.Lead, k.ValidBeg, k.Var, k.ObType, viewOf(row.Summary)})
	}
	skipped := make([]skipView, 0, len(r.Result.Skipped))
	for _, s := range r.Result.Skipped {
		k := s.Key
		skipped = append(skipped, skipView{k.Lead, k.ValidBeg, k.Var, k.ObType, s.Reason})
	}
	return struct {
		Meta
		Band    string      `json:"band"`
		Groups  []groupView `json:"groups"`
		Skipped []skipView  `json:"skipped"`
	}{r.Meta, r.Result.Band.String(), groups, skipped}
}

// Markdown renders one table row per group.
func (r *VerticalReport) Markdown() string {
	var b strings.Builder
	r.markdownHeader(&b, "VERTICAL AVERAGE")
	fmt.Fprintf(&b, "Band: %s\n", r.Result.Band)
	fmt.Fprintf(&b, "Groups: %d (skipped %d)\n", len(r.Result.Rows), len(r.Result.Skipped))
	b.WriteString("\n[GROUPS]\n")
	header, lines := r.grid(num)
	writeMarkdownRow(&b, header)
	writeMarkdownRule(&b, len(header))
	for _, l := range lines {
		writeMarkdownRow(&b, l)
	}
	if len(r.Result.Skipped) > 0 {
		b.WriteString("\n[SKIPPED]\n")
		for _, s := range r.Result.Skipped {
			fmt.Fprintf(&b, "- lead %dh valid %s %s/%s: %s\n", verif.LeadHours(s.Key.Lead), s.Key.ValidBeg, s.Key.Var, s.Key.ObType, s.Reason)
		}
	}
	return b.String()
}

// WriteCSV writes one line per group with low_/high_ columns when intervals
// were computed.
func (r *VerticalReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header, lines := r.grid(cell)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, l := range lines {
		_ = cw.Write(l)
	}
	cw.Flush()
	return cw.Error()
}

func (r *VerticalReport) grid(format func(float64) string) ([]string, [][]string) {
	stats := r.stats()
	withCI := r.hasCI()
	header := append(append([]string{}, analysis.GroupColumns...), verif.ColTotal)
	for _, s := range stats {
		header = append(header, string(s))
		if withCI {
			header = append(header, "low_"+string(s), "high_"+string(s))
		}
	}
	var lines [][]string
	for _, row := range r.Result.Rows {
		k := row.Key
		line := []string{strconv.Itoa(k.Lead), k.ValidBeg, k.Var, k.ObType, format(row.Summary.Total)}
		for _, s := range stats {
			line = append(line, format(row.Summary.Value(s)))
			if withCI {
				lo, hi := "", ""
				if iv, ok := row.Summary.Interval(s); ok {
					lo, hi = format(iv.Low), format(iv.High)
				}
				line = append(line, lo, hi)
			}
		}
		lines = append(lines, line)
	}
	return header, lines
}

func writeMarkdownRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(safeVal(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func writeMarkdownRule(b *strings.Builder, n int) {
	b.WriteString("|")
	for i := 0; i < n; i++ {
		b.WriteString("---|")
	}
	b.WriteString("\n")
}
