package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
	"github.com/DataLoomHQ/dataloom-cli/internal/observe"
	"github.com/DataLoomHQ/dataloom-cli/internal/report"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
	"github.com/DataLoomHQ/dataloom-cli/internal/viz"
)

// maxHistogramColumns limits distribution charts per run.
const maxHistogramColumns = 3

// Coordinator orchestrates a full analysis run: load, analyze, visualize,
// distill insights, write the report, and persist the session.
type Coordinator struct {
	store    *memory.Store
	sessions *memory.SessionService
	analyst  *Analyst
	reporter *Reporter
	renderer *viz.Renderer
	reports  *report.Generator
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// Result is what one coordinated run produced.
type Result struct {
	SessionID      string                 `json:"session_id"`
	ReportPath     string                 `json:"report_path"`
	Visualizations []string               `json:"visualizations"`
	Insights       []string               `json:"insights"`
	Summary        dataset.Summary        `json:"data_summary"`
	Dataset        *DatasetAnalysis       `json:"analysis_results,omitempty"`
	Trend          *TimeSeriesAnalysis    `json:"trend_results,omitempty"`
	Context        memory.Context         `json:"-"`
}

// NewCoordinator wires the agents against a session store.
func NewCoordinator(store *memory.Store, renderer *viz.Renderer, reports *report.Generator, opts Options) *Coordinator {
	opts.normalize()
	return &Coordinator{
		store:    store,
		sessions: memory.NewSessionService(store),
		analyst:  NewAnalyst(opts),
		reporter: NewReporter(opts),
		renderer: renderer,
		reports:  reports,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// AnalyzeFile runs the comprehensive pipeline on a data file. Insights are
// promoted to the global pool. Chart failures are logged and skipped.
func (c *Coordinator) AnalyzeFile(ctx context.Context, filePath string, loadOpts dataset.Options, reportPath string) (*Result, error) {
	var d *dataset.Dataset
	err := c.metrics.Timed(c.logger, "load_dataset", func() error {
		var err error
		d, err = dataset.Load(filePath, loadOpts)
		return err
	})
	if err != nil {
		return nil, err
	}
	sum := dataset.Summarize(d)

	// Context comes from sessions persisted before this run.
	memCtx := c.store.RelevantContext(sum.Columns)

	sess, err := c.sessions.Start(memory.DatasetInfo{
		Name:     sum.Name,
		FilePath: filePath,
		Rows:     sum.Rows,
		Cols:     sum.Cols,
		Columns:  sum.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	sess.SetMetadata("analysis_type", "comprehensive")
	c.logger.Info("analysis started",
		slog.String(observe.FieldSessionID, sess.SessionID),
		slog.String(observe.FieldDataset, filePath),
	)

	var da *DatasetAnalysis
	if err := c.metrics.Timed(c.logger, "statistical_analysis", func() error {
		da = c.analyst.AnalyzeDataset(ctx, d, sum)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := c.store.AddAnalysisResult(sess, "statistical_analysis", da); err != nil {
		return nil, fmt.Errorf("record analysis: %w", err)
	}
	if da.Correlations != nil && len(da.Correlations.StrongPairs) > 0 {
		if err := c.store.LearnPattern("strong_correlation", da.Correlations.StrongPairs); err != nil {
			c.logger.Warn("pattern not recorded", slog.String(observe.FieldError, err.Error()))
		}
	}

	visualizations := c.renderDatasetCharts(sess, d, sum, da)

	insights := c.reporter.GenerateInsights(ctx, Findings{
		Summary: sum,
		Dataset: da,
		Memory:  &memCtx,
	})
	for _, insight := range insights {
		if err := c.store.AddInsight(sess, insight, true); err != nil {
			return nil, fmt.Errorf("record insight: %w", err)
		}
	}

	detail, err := utils.PrettyJSON(da)
	if err != nil {
		return nil, fmt.Errorf("encode analysis detail: %w", err)
	}
	written, err := c.reports.Write(report.Data{
		SessionID:      sess.SessionID,
		Summary:        sum,
		Insights:       insights,
		Visualizations: visualizations,
		DetailJSON:     string(detail),
	}, reportPath)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	c.logger.Info("report generated", slog.String("path", written))

	if err := c.sessions.Persist(sess.SessionID); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	c.metrics.LogSummary(c.logger)

	return &Result{
		SessionID:      sess.SessionID,
		ReportPath:     written,
		Visualizations: visualizations,
		Insights:       insights,
		Summary:        sum,
		Dataset:        da,
		Context:        memCtx,
	}, nil
}

// AnalyzeTimeSeries runs the trend pipeline on a date/value column pair.
// Insights stay local to the session.
func (c *Coordinator) AnalyzeTimeSeries(ctx context.Context, filePath, dateColumn, valueColumn string, loadOpts dataset.Options, reportPath string) (*Result, error) {
	var d *dataset.Dataset
	err := c.metrics.Timed(c.logger, "load_dataset", func() error {
		var err error
		d, err = dataset.Load(filePath, loadOpts)
		return err
	})
	if err != nil {
		return nil, err
	}
	sum := dataset.Summarize(d)
	memCtx := c.store.RelevantContext(sum.Columns)

	sess, err := c.sessions.Start(memory.DatasetInfo{
		Name:     sum.Name,
		FilePath: filePath,
		Rows:     sum.Rows,
		Cols:     sum.Cols,
		Columns:  sum.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	sess.SetMetadata("analysis_type", "time_series")
	c.logger.Info("time series analysis started",
		slog.String(observe.FieldSessionID, sess.SessionID),
		slog.String(observe.FieldDataset, filePath),
	)

	var trend *TimeSeriesAnalysis
	if err := c.metrics.Timed(c.logger, "trend_analysis", func() error {
		var err error
		trend, err = c.analyst.AnalyzeTimeSeries(ctx, d, dateColumn, valueColumn)
		return err
	}); err != nil {
		return nil, err
	}
	if err := c.store.AddAnalysisResult(sess, "time_series", trend); err != nil {
		return nil, fmt.Errorf("record analysis: %w", err)
	}
	if err := c.store.LearnPattern("trend", map[string]any{
		"value_column": valueColumn,
		"direction":    trend.Direction,
		"r_squared":    trend.RSquared,
	}); err != nil {
		c.logger.Warn("pattern not recorded", slog.String(observe.FieldError, err.Error()))
	}

	var visualizations []string
	if path, err := c.renderer.TimeSeriesChart(
		sess.SessionID+"_timeseries",
		fmt.Sprintf("%s over %s", valueColumn, dateColumn),
		valueColumn, trend.Dates, trend.Values,
	); err != nil {
		c.logger.Warn("chart skipped", slog.String(observe.FieldError, err.Error()))
	} else {
		visualizations = append(visualizations, path)
		if err := c.store.AddVisualization(sess, path); err != nil {
			return nil, fmt.Errorf("record visualization: %w", err)
		}
	}

	insights := c.reporter.GenerateInsights(ctx, Findings{
		Summary: sum,
		Trend:   trend,
		Memory:  &memCtx,
	})
	for _, insight := range insights {
		if err := c.store.AddInsight(sess, insight, false); err != nil {
			return nil, fmt.Errorf("record insight: %w", err)
		}
	}

	detail, err := utils.PrettyJSON(trend)
	if err != nil {
		return nil, fmt.Errorf("encode analysis detail: %w", err)
	}
	written, err := c.reports.Write(report.Data{
		SessionID:      sess.SessionID,
		Summary:        sum,
		Insights:       insights,
		Visualizations: visualizations,
		DetailJSON:     string(detail),
	}, reportPath)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	if err := c.sessions.Persist(sess.SessionID); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	c.metrics.LogSummary(c.logger)

	return &Result{
		SessionID:      sess.SessionID,
		ReportPath:     written,
		Visualizations: visualizations,
		Insights:       insights,
		Summary:        sum,
		Trend:          trend,
		Context:        memCtx,
	}, nil
}

// renderDatasetCharts draws distribution charts for the leading numeric
// columns and a bar chart of the strongest correlations.
func (c *Coordinator) renderDatasetCharts(sess *memory.Session, d *dataset.Dataset, sum dataset.Summary, da *DatasetAnalysis) []string {
	var out []string
	record := func(path string, err error) {
		if err != nil {
			c.logger.Warn("chart skipped", slog.String(observe.FieldError, err.Error()))
			return
		}
		if err := c.store.AddVisualization(sess, path); err != nil {
			c.logger.Warn("visualization not recorded", slog.String(observe.FieldError, err.Error()))
			return
		}
		out = append(out, path)
	}

	numeric := sum.NumericColumns()
	if len(numeric) > maxHistogramColumns {
		numeric = numeric[:maxHistogramColumns]
	}
	for _, col := range numeric {
		vals, ok := d.NumericColumn(col)
		if !ok || len(vals) == 0 {
			continue
		}
		name := sess.SessionID + "_hist_" + safeFileLabel(col)
		record(c.renderer.HistogramChart(name, col, vals))
	}

	if da.Correlations != nil {
		pairs := da.Correlations.StrongPairs
		if len(pairs) == 0 {
			pairs = da.Correlations.TopPairs(5)
		}
		if len(pairs) > 0 {
			record(c.renderer.CorrelationChart(sess.SessionID+"_correlations", pairs))
		}
	}
	return out
}

func safeFileLabel(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
