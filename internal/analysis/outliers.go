package analysis

import (
	"sort"
	"strings"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
)

const (
	// iqrFenceFactor widens the interquartile range into outlier fences.
	iqrFenceFactor = 1.5
	// outlierReportShare is the minimum outlier fraction worth reporting.
	outlierReportShare = 0.05
	// maxOutlierColumns caps how many numeric columns get scanned.
	maxOutlierColumns = 5
)

// ColumnOutliers describes IQR outliers in one numeric column.
type ColumnOutliers struct {
	Column     string  `json:"column"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	IQR        float64 `json:"iqr"`
	Median     float64 `json:"median"`
	LowerFence float64 `json:"lower_bound"`
	UpperFence float64 `json:"upper_bound"`
}

// OutlierResult holds per-column outlier findings for the columns whose
// outlier share crosses the reporting threshold.
type OutlierResult struct {
	Columns []ColumnOutliers `json:"columns"`
}

// quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Outliers scans up to maxOutlierColumns numeric columns and reports those
// where more than outlierReportShare of values fall outside the IQR fences.
func Outliers(d *dataset.Dataset) *OutlierResult {
	sum := dataset.Summarize(d)
	numeric := sum.NumericColumns()
	if len(numeric) == 0 {
		return nil
	}
	if len(numeric) > maxOutlierColumns {
		numeric = numeric[:maxOutlierColumns]
	}

	res := &OutlierResult{}
	for _, name := range numeric {
		col := d.ColumnIndex(name)
		if col < 0 {
			continue
		}
		var vals []float64
		for _, row := range d.Rows {
			if col >= len(row) {
				continue
			}
			if x, ok := dataset.ParseNumeric(strings.TrimSpace(row[col])); ok {
				vals = append(vals, x)
			}
		}
		if len(vals) < 4 {
			continue
		}
		sort.Float64s(vals)

		q1 := quantile(vals, 0.25)
		q3 := quantile(vals, 0.75)
		iqr := q3 - q1
		lower := q1 - iqrFenceFactor*iqr
		upper := q3 + iqrFenceFactor*iqr

		count := 0
		for _, x := range vals {
			if x < lower || x > upper {
				count++
			}
		}
		share := float64(count) / float64(len(vals))
		if share <= outlierReportShare {
			continue
		}
		res.Columns = append(res.Columns, ColumnOutliers{
			Column:     name,
			Count:      count,
			Percentage: share * 100,
			Q1:         q1,
			Q3:         q3,
			IQR:        iqr,
			Median:     quantile(vals, 0.5),
			LowerFence: lower,
			UpperFence: upper,
		})
	}
	if len(res.Columns) == 0 {
		return nil
	}
	return res
}
