// Package viz renders PNG charts for analysis results.
package viz

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/DataLoomHQ/dataloom-cli/internal/analysis"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

const (
	chartWidth  = 1024
	chartHeight = 512
	defaultBins = 10
)

// Renderer writes charts under a single output directory.
type Renderer struct {
	OutputDir string
}

// NewRenderer creates the output directory if needed.
func NewRenderer(outputDir string) (*Renderer, error) {
	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("create chart directory: %w", err)
	}
	return &Renderer{OutputDir: outputDir}, nil
}

// TimeSeriesChart renders a dated line chart and returns the written path.
func (r *Renderer) TimeSeriesChart(name string, title, valueLabel string, dates []time.Time, values []float64) (string, error) {
	if len(dates) < 2 || len(dates) != len(values) {
		return "", errors.New("time series chart needs at least 2 matched points")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{Name: valueLabel},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    valueLabel,
				XValues: dates,
				YValues: values,
			},
		},
	}
	return r.render(name, graph.Render)
}

// HistogramChart bins a numeric column into a bar chart.
func (r *Renderer) HistogramChart(name string, column string, values []float64) (string, error) {
	if len(values) == 0 {
		return "", errors.New("histogram needs values")
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return "", fmt.Errorf("column %s is constant, nothing to bin", column)
	}

	bins := defaultBins
	counts := make([]int, bins)
	width := (max - min) / float64(bins)
	for _, v := range values {
		i := int((v - min) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	bars := make([]chart.Value, bins)
	peak := 0.0
	for i, c := range counts {
		lo := min + float64(i)*width
		bars[i] = chart.Value{
			Value: float64(c),
			Label: fmt.Sprintf("%.4g", lo+width/2),
		}
		if float64(c) > peak {
			peak = float64(c)
		}
	}
	graph := chart.BarChart{
		Title:    fmt.Sprintf("Distribution of %s", column),
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: (chartWidth - 100) / bins,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: peak * 1.1},
		},
		Bars: bars,
	}
	return r.render(name, graph.Render)
}

// CorrelationChart shows the strongest column pairs by |r| as a bar chart.
func (r *Renderer) CorrelationChart(name string, pairs []analysis.PairCorr) (string, error) {
	if len(pairs) == 0 {
		return "", errors.New("correlation chart needs pairs")
	}
	bars := make([]chart.Value, 0, len(pairs))
	for _, p := range pairs {
		bars = append(bars, chart.Value{
			Value: math.Abs(p.R),
			Label: fmt.Sprintf("%s~%s (r=%.2f)", p.A, p.B, p.R),
		})
	}
	graph := chart.BarChart{
		Title:    "Strongest correlations",
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 80,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: bars,
	}
	return r.render(name, graph.Render)
}

func (r *Renderer) render(name string, render func(chart.RendererProvider, io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render chart %s: %w", name, err)
	}
	path := filepath.Join(r.OutputDir, name+".png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	return path, nil
}
