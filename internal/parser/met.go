package parser

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// metReader reads the whitespace-delimited text MET writes for .stat files
// and per-line-type _sl1l2.txt / _vl1l2.txt outputs.
type metReader struct{}

func (metReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".stat")
}

func (metReader) Read(f *os.File) (*verif.Table, error) {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	var header []string
	var records []verif.Record
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if header == nil {
			header = fields
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("%s line %d: %d fields, header has %d", f.Name(), line, len(fields), len(header))
		}
		rec, err := recordFromFields(header, fields)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", f.Name(), line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return verif.NewTable(header, records), nil
}

func recordFromFields(header, fields []string) (verif.Record, error) {
	var rec verif.Record
	for i, name := range header {
		if err := rec.SetField(name, fields[i]); err != nil {
			return verif.Record{}, err
		}
	}
	return rec, nil
}
