package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/analysis"
	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
)

// Analyst runs statistical analysis over a dataset and asks the model to
// narrate the findings.
type Analyst struct {
	base
}

func NewAnalyst(opts Options) *Analyst {
	return &Analyst{base: newBase(
		"Data Analyst Agent",
		"Expert in statistical analysis, pattern recognition, and data quality assessment",
		opts,
	)}
}

// DatasetAnalysis bundles comprehensive analysis output.
type DatasetAnalysis struct {
	Timestamp    time.Time                   `json:"timestamp"`
	Correlations *analysis.CorrelationResult `json:"correlation_analysis,omitempty"`
	Outliers     *analysis.OutlierResult     `json:"outlier_analysis,omitempty"`
	AIInsights   string                      `json:"ai_insights,omitempty"`
}

// TimeSeriesAnalysis is a trend analysis plus its narrative.
type TimeSeriesAnalysis struct {
	*analysis.TrendResult
	AIInsights string `json:"ai_insights,omitempty"`
}

// AnalyzeDataset computes correlations and outliers, then narrates them.
// A generation failure degrades to statistics-only output.
func (a *Analyst) AnalyzeDataset(ctx context.Context, d *dataset.Dataset, sum dataset.Summary) *DatasetAnalysis {
	res := &DatasetAnalysis{
		Timestamp:    time.Now(),
		Correlations: analysis.Correlations(d),
		Outliers:     analysis.Outliers(d),
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this dataset and provide key insights:\n\n")
	fmt.Fprintf(&sb, "Dataset Summary:\n- Rows: %d\n- Columns: %d\n- Column names: %s\n\n",
		sum.Rows, sum.Cols, strings.Join(sum.Columns, ", "))
	if n := a.opts.SampleRows; n > 0 && len(d.Rows) > 0 {
		if n > len(d.Rows) {
			n = len(d.Rows)
		}
		fmt.Fprintf(&sb, "Sample Data (first %d rows):\n%s\n", n, strings.Join(d.Columns, ", "))
		for _, row := range d.Rows[:n] {
			sb.WriteString(strings.Join(row, ", "))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if res.Correlations != nil {
		fmt.Fprintf(&sb, "Correlation Analysis:\nStrong correlations found: %d\n", len(res.Correlations.StrongPairs))
		for _, p := range res.Correlations.StrongPairs {
			fmt.Fprintf(&sb, "- %s and %s: r=%.3f\n", p.A, p.B, p.R)
		}
		sb.WriteString("\n")
	}
	if res.Outliers != nil {
		sb.WriteString("Outliers Detected:\n")
		for _, c := range res.Outliers.Columns {
			fmt.Fprintf(&sb, "- %s: %d outliers (%.1f%%)\n", c.Column, c.Count, c.Percentage)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Provide 3-5 key insights about this data, including:
1. Overall data quality and completeness
2. Notable patterns or correlations
3. Potential data issues or anomalies
4. Recommendations for further analysis`)

	if text, err := a.respond(ctx, sb.String()); err == nil {
		res.AIInsights = text
	}
	return res
}

// AnalyzeTimeSeries runs trend analysis on a date/value column pair.
func (a *Analyst) AnalyzeTimeSeries(ctx context.Context, d *dataset.Dataset, dateColumn, valueColumn string) (*TimeSeriesAnalysis, error) {
	trend, err := analysis.TimeSeries(d, dateColumn, valueColumn)
	if err != nil {
		return nil, err
	}
	res := &TimeSeriesAnalysis{TrendResult: trend}

	growth := "N/A"
	if trend.GrowthRate != nil {
		growth = fmt.Sprintf("%.2f", *trend.GrowthRate)
	}
	prompt := fmt.Sprintf(`Analyze this time series trend:

Metric: %s
Trend Direction: %s
Growth Rate: %s%%
R-squared: %.4f

Statistics:
- Mean: %.4f
- Std Dev: %.4f
- Min: %.4f
- Max: %.4f

Provide insights on:
1. Strength and reliability of the trend
2. Business implications
3. Potential forecasting considerations`,
		valueColumn, trend.Direction, growth, trend.RSquared,
		trend.Mean, trend.Std, trend.Min, trend.Max)

	if text, err := a.respond(ctx, prompt); err == nil {
		res.AIInsights = text
	}
	return res, nil
}
