// Package dataset loads tabular files (CSV/TSV, JSON arrays, XLSX) into an
// in-memory table and profiles their shape and column types for the
// analysis pipeline.
package dataset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Column kinds inferred by Summarize.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// Options controls dataset loading.
type Options struct {
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, auto-detects from the file extension.
	Delimiter rune
	// XLSX sheet selection. SheetIndex is 1-based; used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// DefaultOptions returns reasonable defaults for dataset loading.
func DefaultOptions() Options {
	return Options{MaxRows: 100000, SheetIndex: 1}
}

// Dataset is a materialized table of string cells under named columns.
type Dataset struct {
	Name    string
	Path    string
	Columns []string
	Rows    [][]string
}

// Load reads a tabular file chosen by extension.
func Load(path string, opt Options) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return LoadCSV(path, opt)
	case ".json":
		return LoadJSON(path, opt)
	case ".xlsx":
		return LoadXLSX(path, opt)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (want .csv, .tsv, .json, or .xlsx)", filepath.Ext(path))
	}
}

// NumRows returns the number of data rows.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.Columns) }

// ColumnIndex returns the index of a column by case-insensitive name.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// Column returns the raw cells of the named column.
func (d *Dataset) Column(name string) ([]string, bool) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// NumericColumn parses the named column's cells as floats, dropping blanks
// and values that do not parse.
func (d *Dataset) NumericColumn(name string) ([]float64, bool) {
	cells, ok := d.Column(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(cells))
	for _, v := range cells {
		if x, ok := ParseNumeric(v); ok {
			out = append(out, x)
		}
	}
	return out, true
}

// ColumnSummary is the inferred profile of one column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique,omitempty"`
}

// Summary profiles a dataset: shape, inferred column kinds, missing counts.
type Summary struct {
	Name    string          `json:"name"`
	Path    string          `json:"file_path"`
	Rows    int             `json:"rows"`
	Cols    int             `json:"cols"`
	Columns []string        `json:"columns"`
	Schema  []ColumnSummary `json:"schema"`
}

// Summarize infers per-column kinds by predominant parsed type, the way a
// data frame would report dtypes.
func Summarize(d *Dataset) Summary {
	sum := Summary{
		Name:    d.Name,
		Path:    d.Path,
		Rows:    d.NumRows(),
		Cols:    d.NumCols(),
		Columns: append([]string(nil), d.Columns...),
	}
	for j, name := range d.Columns {
		var miss, numCnt, dtCnt, txtCnt int
		uniq := make(map[string]struct{})
		for _, row := range d.Rows {
			v := ""
			if j < len(row) {
				v = strings.TrimSpace(row[j])
			}
			if v == "" {
				miss++
				continue
			}
			uniq[v] = struct{}{}
			if _, ok := ParseNumeric(v); ok {
				numCnt++
			} else if _, ok := ParseTime(v); ok {
				dtCnt++
			} else {
				txtCnt++
			}
		}
		nonNull := sum.Rows - miss
		kind := KindUnknown
		switch {
		case numCnt > 0 && numCnt >= dtCnt && numCnt >= txtCnt:
			kind = KindNumeric
		case dtCnt > 0 && dtCnt >= txtCnt:
			kind = KindDatetime
		case txtCnt > 0 && len(uniq) <= nonNull/2+1:
			kind = KindCategorical
		case txtCnt > 0:
			kind = KindText
		}
		sum.Schema = append(sum.Schema, ColumnSummary{
			Name:    strings.TrimSpace(name),
			Kind:    kind,
			NonNull: nonNull,
			Missing: miss,
			Unique:  len(uniq),
		})
	}
	return sum
}

// NumericColumns returns the names of columns inferred numeric, in order.
func (s Summary) NumericColumns() []string {
	var out []string
	for _, c := range s.Schema {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// ParseNumeric parses a cell as a float, tolerating percent signs and
// comma thousands separators.
func ParseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, " ", " ")
	raw = strings.TrimSpace(raw)
	// Strip comma thousands separators unless the comma is a decimal mark.
	if strings.Count(raw, ",") > 0 {
		if strings.Contains(raw, ".") || strings.Count(raw, ",") > 1 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else if i := strings.Index(raw, ","); len(raw)-i-1 == 3 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.Replace(raw, ",", ".", 1)
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime parses a cell against the date layouts commonly seen in exports.
func ParseTime(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
