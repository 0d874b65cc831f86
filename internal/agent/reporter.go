package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
)

// maxInsights caps how many insights one run records.
const maxInsights = 7

// Reporter distills analysis findings into stakeholder insights.
type Reporter struct {
	base
}

func NewReporter(opts Options) *Reporter {
	return &Reporter{base: newBase(
		"Report Generator Agent",
		"Expert in synthesizing analysis results into clear, actionable business reports",
		opts,
	)}
}

// Findings is everything the reporter can draw from.
type Findings struct {
	Summary dataset.Summary
	Dataset *DatasetAnalysis
	Trend   *TimeSeriesAnalysis
	Memory  *memory.Context
}

// GenerateInsights produces up to maxInsights business insights. Model
// failures and the no-model case fall back to insights derived directly
// from the statistics.
func (r *Reporter) GenerateInsights(ctx context.Context, f Findings) []string {
	narrative := ""
	if f.Dataset != nil {
		narrative = f.Dataset.AIInsights
	} else if f.Trend != nil {
		narrative = f.Trend.AIInsights
	}
	if narrative == "" {
		narrative = "No AI insights available"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `Based on the following analysis, generate 5-7 key business insights
that would be valuable to stakeholders:

Dataset: %d rows, %d columns

Analysis Summary:
%s
`, f.Summary.Rows, f.Summary.Cols, narrative)
	if f.Memory != nil && (len(f.Memory.SimilarAnalyses) > 0 || len(f.Memory.RelevantInsights) > 0) {
		fmt.Fprintf(&sb, "\nPrevious Context:\n")
		for _, sa := range f.Memory.SimilarAnalyses {
			fmt.Fprintf(&sb, "- similar session %s (%.0f%% column overlap)\n", sa.SessionID, sa.Similarity*100)
		}
		for _, ins := range f.Memory.RelevantInsights {
			fmt.Fprintf(&sb, "- prior insight: %s\n", ins)
		}
	}
	sb.WriteString(`
Provide insights that are:
1. Actionable - suggest what to do
2. Specific - include numbers and details
3. Business-focused - explain the impact
4. Clear - easy to understand

Format each insight as a complete sentence starting with a bullet point.`)

	text, err := r.respond(ctx, sb.String())
	if err != nil || text == "" {
		return fallbackInsights(f)
	}
	insights := parseInsights(text)
	if len(insights) == 0 {
		return fallbackInsights(f)
	}
	return insights
}

// parseInsights strips bullet and numbering prefixes and drops headings.
func parseInsights(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimLeft(line, "•-* \t")
		// strip "1." style numbering
		if i := strings.IndexByte(line, '.'); i > 0 && i <= 3 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxInsights {
			break
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// fallbackInsights derives insights from the statistics alone.
func fallbackInsights(f Findings) []string {
	var out []string
	if f.Summary.Rows > 0 {
		out = append(out, fmt.Sprintf("The dataset %s contains %d rows across %d columns.",
			f.Summary.Name, f.Summary.Rows, f.Summary.Cols))
	}
	if f.Dataset != nil {
		if c := f.Dataset.Correlations; c != nil {
			for _, p := range c.StrongPairs {
				out = append(out, fmt.Sprintf("%s and %s are strongly correlated (r=%.2f); changes in one likely track the other.", p.A, p.B, p.R))
			}
		}
		if o := f.Dataset.Outliers; o != nil {
			for _, c := range o.Columns {
				out = append(out, fmt.Sprintf("Column %s has %d outliers (%.1f%% of values); review them before drawing conclusions.", c.Column, c.Count, c.Percentage))
			}
		}
	}
	if f.Trend != nil {
		msg := fmt.Sprintf("%s shows a %s trend (r²=%.2f", f.Trend.ValueColumn, f.Trend.Direction, f.Trend.RSquared)
		if f.Trend.GrowthRate != nil {
			msg += fmt.Sprintf(", %.1f%% growth over the period", *f.Trend.GrowthRate)
		}
		out = append(out, msg+").")
	}
	if f.Memory != nil && len(f.Memory.SimilarAnalyses) > 0 {
		out = append(out, fmt.Sprintf("%d prior sessions analyzed datasets with overlapping columns; compare results for consistency.", len(f.Memory.SimilarAnalyses)))
	}
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}
