package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/KaramelBytes/metstat-cli/internal/verif"
)

// Reader decodes one verification output format into a table.
type Reader interface {
	CanRead(filename string) bool
	Read(f *os.File) (*verif.Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(delimitedReader{})
	Register(metReader{})
}

// ErrNoRecords indicates none of the requested files yielded a data row.
var ErrNoRecords = errors.New("no verification records read")

// ReadFile selects a reader by filename and decodes the file. Files no reader
// claims are read as whitespace-delimited MET text.
func ReadFile(path string) (*verif.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(f)
		}
	}
	return metReader{}.Read(f)
}

// Options controls multi-file reads.
type Options struct {
	// Logger receives a warning for every skipped file; nil reads silently.
	Logger *slog.Logger
}

// Result is the concatenated table plus an account of what was skipped.
type Result struct {
	Table   *verif.Table
	Read    []string
	Missing []string
	Empty   []string
	Records int
}

// ReadFiles reads every path in order and concatenates the tables. A missing
// file is skipped and reported; any other read failure aborts the call. Files
// holding only a header are skipped as well.
func ReadFiles(paths []string, opt Options) (*Result, error) {
	res := &Result{}
	var tables []*verif.Table
	for _, p := range paths {
		t, err := ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				res.Missing = append(res.Missing, p)
				if opt.Logger != nil {
					opt.Logger.Warn("verification file not found", "path", p)
				}
				continue
			}
			return nil, err
		}
		if t.Len() == 0 {
			res.Empty = append(res.Empty, p)
			if opt.Logger != nil {
				opt.Logger.Debug("verification file has no rows", "path", p)
			}
			continue
		}
		res.Read = append(res.Read, p)
		res.Records += t.Len()
		tables = append(tables, t)
	}
	res.Table = verif.Concat(tables...)
	if len(tables) == 0 {
		return res, ErrNoRecords
	}
	return res, nil
}
