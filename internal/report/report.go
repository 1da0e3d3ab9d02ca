// Package report renders engine results as Markdown, CSV or JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/metstat-cli/internal/utils"
)

// clock stamps GeneratedAt. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Format selects the output encoding.
type Format string

const (
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts markdown (md), csv and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use markdown, csv or json)", s)
	}
}

// Ext is the file extension for the format.
func (f Format) Ext() string {
	switch f {
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	default:
		return ".md"
	}
}

// Meta identifies one rendered report.
type Meta struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Title       string    `json:"title"`
	Inputs      []string  `json:"inputs,omitempty"`
	Conditions  string    `json:"conditions,omitempty"`
}

// NewMeta stamps a report with a fresh run id and the current time.
func NewMeta(title string) Meta {
	return Meta{RunID: uuid.NewString(), GeneratedAt: clock.Now().UTC(), Title: title}
}

func (m Meta) markdownHeader(b *strings.Builder, section string) {
	fmt.Fprintf(b, "[%s]\n", section)
	if m.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", m.Title)
	}
	fmt.Fprintf(b, "Run: %s\n", m.RunID)
	fmt.Fprintf(b, "Generated: %s\n", m.GeneratedAt.Format(time.RFC3339))
	if m.Conditions != "" {
		fmt.Fprintf(b, "Conditions: %s\n", m.Conditions)
	}
	if len(m.Inputs) > 0 {
		fmt.Fprintf(b, "Inputs: %d file(s)\n", len(m.Inputs))
	}
	b.WriteString("\n")
}

// Renderer is implemented by every report type.
type Renderer interface {
	Markdown() string
	WriteCSV(w io.Writer) error
	View() any
}

// Render encodes r in the requested format.
func Render(r Renderer, f Format) ([]byte, error) {
	switch f {
	case Markdown:
		return []byte(r.Markdown()), nil
	case CSV:
		var buf bytes.Buffer
		if err := r.WriteCSV(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case JSON:
		return utils.PrettyJSON(r.View())
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}

// Num is a float that encodes NaN and infinities as JSON null.
type Num float64

func (n Num) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// num renders a value for Markdown; missing values print as NA like MET.
func num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// cell renders a value for CSV at full precision.
func cell(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
