package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// LoadJSON reads a JSON array of flat objects into a Dataset. Columns are
// ordered by first appearance across the records.
func LoadJSON(path string, opt Options) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("parse json: expected an array of objects: %w", err)
	}

	d := &Dataset{Name: filepath.Base(path), Path: path}
	seen := make(map[string]int)
	// Column discovery pass keeps insertion order stable even when later
	// records introduce new keys.
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = len(d.Columns)
				d.Columns = append(d.Columns, k)
			}
		}
	}

	maxRows := opt.MaxRows
	for _, rec := range records {
		if maxRows > 0 && len(d.Rows) >= maxRows {
			break
		}
		row := make([]string, len(d.Columns))
		for k, v := range rec {
			row[seen[k]] = cellString(v)
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
