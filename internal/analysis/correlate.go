// Package analysis computes the statistical building blocks of a report:
// Pearson correlations, IQR outliers, and linear-regression trends.
package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
)

// strongCorrelationThreshold marks a pair worth reporting on its own.
const strongCorrelationThreshold = 0.7

// PairCorr is one correlation pair.
type PairCorr struct {
	A string  `json:"variable_1"`
	B string  `json:"variable_2"`
	R float64 `json:"correlation"`
}

// CorrelationResult holds the symmetric Pearson matrix across numeric
// columns plus the pairs whose |r| exceeds the strong threshold.
type CorrelationResult struct {
	Columns     []string    `json:"columns"`
	Matrix      [][]float64 `json:"matrix"`
	StrongPairs []PairCorr  `json:"strong_correlations"`
}

// pairAcc accumulates pairwise sums so correlations respect per-row
// missingness: a row contributes to a pair only when both cells parse.
type pairAcc struct {
	n     float64
	sumX  float64
	sumY  float64
	sumXX float64
	sumYY float64
	sumXY float64
}

func (p *pairAcc) add(x, y float64) {
	p.n++
	p.sumX += x
	p.sumY += y
	p.sumXX += x * x
	p.sumYY += y * y
	p.sumXY += x * y
}

func (p *pairAcc) r() (float64, bool) {
	if p == nil || p.n < 2 {
		return 0, false
	}
	denom := math.Sqrt((p.n*p.sumXX - p.sumX*p.sumX) * (p.n*p.sumYY - p.sumY*p.sumY))
	if denom == 0 {
		return 0, false
	}
	r := (p.n*p.sumXY - p.sumX*p.sumY) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Correlations computes the Pearson correlation matrix over the dataset's
// numeric columns. Returns nil when fewer than two numeric columns exist.
func Correlations(d *dataset.Dataset) *CorrelationResult {
	sum := dataset.Summarize(d)
	numeric := sum.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}
	idx := make([]int, len(numeric))
	for i, name := range numeric {
		idx[i] = d.ColumnIndex(name)
	}

	n := len(numeric)
	pairs := make(map[int]*pairAcc)
	for _, row := range d.Rows {
		vals := make(map[int]float64)
		for i, col := range idx {
			if col < 0 || col >= len(row) {
				continue
			}
			if x, ok := dataset.ParseNumeric(strings.TrimSpace(row[col])); ok {
				vals[i] = x
			}
		}
		if len(vals) < 2 {
			continue
		}
		keys := make([]int, 0, len(vals))
		for i := range vals {
			keys = append(keys, i)
		}
		sort.Ints(keys)
		for a := 1; a < len(keys); a++ {
			for b := 0; b < a; b++ {
				key := keys[a]*n + keys[b]
				pa := pairs[key]
				if pa == nil {
					pa = &pairAcc{}
					pairs[key] = pa
				}
				pa.add(vals[keys[a]], vals[keys[b]])
			}
		}
	}

	res := &CorrelationResult{Columns: numeric}
	res.Matrix = make([][]float64, n)
	for i := range res.Matrix {
		res.Matrix[i] = make([]float64, n)
		res.Matrix[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := 0; b < a; b++ {
			if r, ok := pairs[a*n+b].r(); ok {
				res.Matrix[a][b] = r
				res.Matrix[b][a] = r
				if math.Abs(r) > strongCorrelationThreshold {
					res.StrongPairs = append(res.StrongPairs, PairCorr{A: numeric[b], B: numeric[a], R: r})
				}
			}
		}
	}
	sort.Slice(res.StrongPairs, func(i, j int) bool {
		ai, aj := math.Abs(res.StrongPairs[i].R), math.Abs(res.StrongPairs[j].R)
		if ai == aj {
			return res.StrongPairs[i].A+res.StrongPairs[i].B < res.StrongPairs[j].A+res.StrongPairs[j].B
		}
		return ai > aj
	})
	return res
}

// TopPairs lists the strongest |r| pairs from the matrix, up to limit.
func (c *CorrelationResult) TopPairs(limit int) []PairCorr {
	if c == nil {
		return nil
	}
	var pairs []PairCorr
	for i := 0; i < len(c.Columns); i++ {
		for j := i + 1; j < len(c.Columns); j++ {
			pairs = append(pairs, PairCorr{A: c.Columns[i], B: c.Columns[j], R: c.Matrix[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
