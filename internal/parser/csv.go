package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// delimitedReader reads verification tables exported as CSV or TSV, e.g.
// from METviewer or a previous metstat run.
type delimitedReader struct{}

func (delimitedReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (delimitedReader) Read(f *os.File) (*verif.Table, error) {
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.Comma = sniffDelimiter(f.Name())

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return verif.NewTable(nil, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var records []verif.Record
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s row %d: %w", f.Name(), len(records)+1, err)
		}
		rec, err := recordFromFields(header, row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.Name(), len(records)+1, err)
		}
		records = append(records, rec)
	}
	return verif.NewTable(header, records), nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
