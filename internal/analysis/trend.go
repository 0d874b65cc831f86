package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendFlat       = "flat"
)

// flatSlopeEpsilon treats near-zero slopes as no trend.
const flatSlopeEpsilon = 1e-9

// TrendResult describes a time series: its least-squares trend over row
// order, summary statistics, and smoothed moving averages.
type TrendResult struct {
	DateColumn    string               `json:"date_column"`
	ValueColumn   string               `json:"value_column"`
	Points        int                  `json:"points"`
	Direction     string               `json:"trend_direction"`
	Slope         float64              `json:"slope"`
	RSquared      float64              `json:"r_squared"`
	Mean          float64              `json:"mean"`
	Std           float64              `json:"std"`
	Min           float64              `json:"min"`
	Max           float64              `json:"max"`
	GrowthRate    *float64             `json:"growth_rate_pct,omitempty"`
	MovingAvgs    map[string][]float64 `json:"moving_averages,omitempty"`
	Dates         []time.Time          `json:"-"`
	Values        []float64            `json:"-"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
}

type seriesPoint struct {
	t time.Time
	v float64
}

// TimeSeries sorts the dataset by dateColumn, regresses valueColumn on row
// index, and reports direction, fit, spread, growth, and moving averages.
func TimeSeries(d *dataset.Dataset, dateColumn, valueColumn string) (*TrendResult, error) {
	dateIdx := d.ColumnIndex(dateColumn)
	if dateIdx < 0 {
		return nil, fmt.Errorf("date column %q not found", dateColumn)
	}
	valIdx := d.ColumnIndex(valueColumn)
	if valIdx < 0 {
		return nil, fmt.Errorf("value column %q not found", valueColumn)
	}

	var points []seriesPoint
	for _, row := range d.Rows {
		if dateIdx >= len(row) || valIdx >= len(row) {
			continue
		}
		t, ok := dataset.ParseTime(strings.TrimSpace(row[dateIdx]))
		if !ok {
			continue
		}
		v, ok := dataset.ParseNumeric(strings.TrimSpace(row[valIdx]))
		if !ok {
			continue
		}
		points = append(points, seriesPoint{t: t, v: v})
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 parseable points in %q/%q, got %d", dateColumn, valueColumn, len(points))
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].t.Before(points[j].t) })

	res := &TrendResult{
		DateColumn:  dateColumn,
		ValueColumn: valueColumn,
		Points:      len(points),
		StartDate:   points[0].t,
		EndDate:     points[len(points)-1].t,
	}
	res.Dates = make([]time.Time, len(points))
	res.Values = make([]float64, len(points))
	for i, p := range points {
		res.Dates[i] = p.t
		res.Values[i] = p.v
	}

	fitTrend(res)
	summarize(res)
	res.MovingAvgs = movingAverages(res.Values)
	return res, nil
}

// fitTrend computes the least-squares slope of value on row index and r².
func fitTrend(res *TrendResult) {
	n := float64(len(res.Values))
	var sumX, sumY, sumXX, sumXY float64
	for i, v := range res.Values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXX += x * x
		sumXY += x * v
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		res.Direction = TrendFlat
		return
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	res.Slope = slope

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, v := range res.Values {
		fit := intercept + slope*float64(i)
		ssTot += (v - meanY) * (v - meanY)
		ssRes += (v - fit) * (v - fit)
	}
	if ssTot > 0 {
		res.RSquared = 1 - ssRes/ssTot
	}

	switch {
	case math.Abs(slope) < flatSlopeEpsilon:
		res.Direction = TrendFlat
	case slope > 0:
		res.Direction = TrendIncreasing
	default:
		res.Direction = TrendDecreasing
	}
}

func summarize(res *TrendResult) {
	vals := res.Values
	res.Min = vals[0]
	res.Max = vals[0]
	var sum float64
	for _, v := range vals {
		sum += v
		if v < res.Min {
			res.Min = v
		}
		if v > res.Max {
			res.Max = v
		}
	}
	res.Mean = sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - res.Mean) * (v - res.Mean)
	}
	res.Std = math.Sqrt(sq / float64(len(vals)))

	if first := vals[0]; first != 0 {
		g := (vals[len(vals)-1] - first) / first * 100
		res.GrowthRate = &g
	}
}

// movingAverages returns trailing means over windows of min(7, n) and
// min(30, n) points, keyed "ma_<window>".
func movingAverages(vals []float64) map[string][]float64 {
	out := make(map[string][]float64)
	for _, w := range []int{7, 30} {
		win := w
		if win > len(vals) {
			win = len(vals)
		}
		if win < 1 {
			continue
		}
		key := fmt.Sprintf("ma_%d", win)
		if _, done := out[key]; done {
			continue
		}
		out[key] = rolling(vals, win)
	}
	return out
}

func rolling(vals []float64, win int) []float64 {
	out := make([]float64, 0, len(vals)-win+1)
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= win {
			sum -= vals[i-win]
		}
		if i >= win-1 {
			out = append(out, sum/float64(win))
		}
	}
	return out
}
