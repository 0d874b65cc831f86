package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadCSV reads a CSV or TSV file into a Dataset.
func LoadCSV(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Dataset{Name: filepath.Base(path), Path: path}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	d := &Dataset{Name: filepath.Base(path), Path: path}
	for _, h := range header {
		d.Columns = append(d.Columns, strings.TrimSpace(h))
	}

	maxRows := opt.MaxRows
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(d.Rows)+1, err)
		}
		if maxRows > 0 && len(d.Rows) >= maxRows {
			break
		}
		row := make([]string, len(d.Columns))
		copy(row, rec)
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
