// Package evaluate scores finished analysis runs on quality, performance,
// and memory utilization, and keeps a durable score history so quality can
// be tracked across runs.
package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
	"github.com/DataLoomHQ/dataloom-cli/internal/observe"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

// Scoring targets. A run meeting all of them scores 1.0 on the
// corresponding dimension.
const (
	targetInsights     = 5
	targetInsightChars = 100
	targetCharts       = 3
	targetRunSeconds   = 60.0
	memoryItemsForFull = 10
)

// Run describes one finished analysis for scoring.
type Run struct {
	SessionID       string
	ReportPath      string
	Insights        []string
	Visualizations  []string
	DatasetColumns  int
	AnalyzedColumns int
	HasSummary      bool
	Succeeded       bool
	Duration        time.Duration
}

// QualityScores rate analysis output on a 0-1 scale.
type QualityScores struct {
	Completeness   float64 `json:"completeness"`
	InsightQuality float64 `json:"insight_quality"`
	ChartCoverage  float64 `json:"visualization_coverage"`
	DataCoverage   float64 `json:"data_coverage"`
	Overall        float64 `json:"overall_quality"`
}

// Performance rates run speed and reliability on a 0-1 scale, alongside the
// raw counters they were derived from.
type Performance struct {
	ExecutionSecs  float64 `json:"execution_time_seconds"`
	AgentCalls     int64   `json:"agent_calls"`
	ToolExecutions int64   `json:"tool_executions"`
	AvgToolSecs    float64 `json:"avg_tool_time"`
	Errors         int64   `json:"errors"`
	ErrorRate      float64 `json:"error_rate"`
	SpeedScore     float64 `json:"speed_score"`
	Efficiency     float64 `json:"efficiency_score"`
	Reliability    float64 `json:"reliability_score"`
	Overall        float64 `json:"overall_performance"`
}

// MemoryMetrics report how much the run contributed to the session store.
type MemoryMetrics struct {
	InsightsStored  int     `json:"insights_stored"`
	ChartsStored    int     `json:"visualizations_stored"`
	HistoryLength   int     `json:"analysis_history_length"`
	GlobalInsights  int     `json:"global_insights_total"`
	LearnedPatterns int     `json:"learned_patterns_count"`
	Effectiveness   float64 `json:"memory_effectiveness"`
}

// Evaluation is the complete scorecard for one run.
type Evaluation struct {
	Timestamp    time.Time     `json:"timestamp"`
	SessionID    string        `json:"session_id"`
	Quality      QualityScores `json:"quality_scores"`
	Performance  Performance   `json:"performance_metrics"`
	Memory       MemoryMetrics `json:"memory_metrics"`
	OverallScore float64       `json:"overall_score"`
	Grade        string        `json:"grade"`
}

// Evaluator scores runs and appends each scorecard to a history file.
type Evaluator struct {
	path    string
	history []Evaluation
}

// NewEvaluator opens the score history at path, which need not exist yet.
func NewEvaluator(path string) (*Evaluator, error) {
	e := &Evaluator{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read evaluation history: %w", err)
	}
	if err := json.Unmarshal(b, &e.history); err != nil {
		return nil, fmt.Errorf("parse evaluation history: %w", err)
	}
	return e, nil
}

// History returns the recorded evaluations, oldest first.
func (e *Evaluator) History() []Evaluation {
	out := make([]Evaluation, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Evaluator) save() error {
	b, err := json.MarshalIndent(e.history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evaluation history: %w", err)
	}
	return utils.SafeWriteFile(e.path, b)
}

// Evaluate scores one run and appends the scorecard to the history file.
func (e *Evaluator) Evaluate(run Run, snap observe.Snapshot, sess *memory.Session, store *memory.Store) (*Evaluation, error) {
	ev := &Evaluation{
		Timestamp:   time.Now(),
		SessionID:   run.SessionID,
		Quality:     scoreQuality(run),
		Performance: scorePerformance(run, snap),
		Memory:      scoreMemory(sess, store),
	}
	ev.OverallScore = (ev.Quality.Overall*0.5 +
		ev.Performance.Overall*0.3 +
		ev.Memory.Effectiveness*0.2) * 100
	ev.Grade = grade(ev.OverallScore)

	e.history = append(e.history, *ev)
	if err := e.save(); err != nil {
		return nil, err
	}
	return ev, nil
}

func scoreQuality(run Run) QualityScores {
	var q QualityScores

	present := 0
	if len(run.Insights) > 0 {
		present++
	}
	if len(run.Visualizations) > 0 {
		present++
	}
	if run.ReportPath != "" {
		present++
	}
	if run.HasSummary {
		present++
	}
	q.Completeness = float64(present) / 4

	countScore := clamp01(float64(len(run.Insights)) / targetInsights)
	depthScore := 0.0
	if len(run.Insights) > 0 {
		total := 0
		for _, ins := range run.Insights {
			total += len(ins)
		}
		avg := float64(total) / float64(len(run.Insights))
		depthScore = clamp01(avg / targetInsightChars)
	}
	q.InsightQuality = (countScore + depthScore) / 2

	q.ChartCoverage = clamp01(float64(len(run.Visualizations)) / targetCharts)

	if run.DatasetColumns > 0 {
		q.DataCoverage = clamp01(float64(run.AnalyzedColumns) / float64(run.DatasetColumns))
	}

	q.Overall = (q.Completeness + q.InsightQuality + q.ChartCoverage + q.DataCoverage) / 4
	return q
}

func scorePerformance(run Run, snap observe.Snapshot) Performance {
	p := Performance{
		ExecutionSecs:  run.Duration.Seconds(),
		AgentCalls:     snap.AgentCalls,
		ToolExecutions: snap.ToolExecutions,
		Errors:         snap.Errors,
	}
	if snap.ToolExecutions > 0 {
		p.AvgToolSecs = snap.TotalProcessingSecs / float64(snap.ToolExecutions)
		p.ErrorRate = float64(snap.Errors) / float64(snap.ToolExecutions)
	}
	p.SpeedScore = clamp01(1 - p.ExecutionSecs/targetRunSeconds)
	p.Efficiency = clamp01(1 - p.ErrorRate)
	if run.Succeeded {
		p.Reliability = 1
	}
	p.Overall = (p.SpeedScore + p.Efficiency + p.Reliability) / 3
	return p
}

func scoreMemory(sess *memory.Session, store *memory.Store) MemoryMetrics {
	var m MemoryMetrics
	if sess != nil {
		m.InsightsStored = len(sess.Insights)
		m.ChartsStored = len(sess.Visualizations)
		m.HistoryLength = len(sess.AnalysisHistory)
	}
	if store != nil {
		m.GlobalInsights = len(store.GlobalInsights())
		m.LearnedPatterns = store.PatternCount()
	}
	m.Effectiveness = clamp01(
		float64(m.InsightsStored+m.ChartsStored+m.HistoryLength) / memoryItemsForFull)
	return m
}

func grade(score float64) string {
	switch {
	case score >= 90:
		return "A - Excellent"
	case score >= 80:
		return "B - Good"
	case score >= 70:
		return "C - Satisfactory"
	case score >= 60:
		return "D - Needs Improvement"
	default:
		return "F - Poor"
	}
}

// Recommendations suggests concrete follow-ups for the dimensions a run
// scored low on.
func Recommendations(ev *Evaluation) []string {
	var recs []string
	if ev.Quality.Completeness < 0.8 {
		recs = append(recs, "Improve completeness: ensure all analysis components are generated")
	}
	if ev.Quality.InsightQuality < 0.7 {
		recs = append(recs, "Enhance insight quality: generate more detailed and actionable insights")
	}
	if ev.Quality.ChartCoverage < 0.7 {
		recs = append(recs, "Increase visualization coverage: create more diverse charts")
	}
	if ev.Performance.ExecutionSecs > targetRunSeconds {
		recs = append(recs, fmt.Sprintf(
			"Optimize execution time: currently %.1fs, target < %.0fs",
			ev.Performance.ExecutionSecs, targetRunSeconds))
	}
	if ev.Performance.ErrorRate > 0.1 {
		recs = append(recs, fmt.Sprintf(
			"Reduce error rate: currently %.0f%%, target < 10%%", ev.Performance.ErrorRate*100))
	}
	if ev.Memory.Effectiveness < 0.5 {
		recs = append(recs, "Improve memory utilization: store more insights and patterns for context")
	}
	if len(recs) == 0 {
		recs = append(recs, "System is performing well, continue monitoring")
	}
	return recs
}

// Report formats one scorecard for terminal output.
func Report(ev *Evaluation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Evaluation for %s\n", ev.SessionID)
	fmt.Fprintf(&sb, "Overall score: %.1f/100 (%s)\n\n", ev.OverallScore, ev.Grade)

	fmt.Fprintf(&sb, "Quality\n")
	fmt.Fprintf(&sb, "  completeness:           %.0f%%\n", ev.Quality.Completeness*100)
	fmt.Fprintf(&sb, "  insight quality:        %.0f%%\n", ev.Quality.InsightQuality*100)
	fmt.Fprintf(&sb, "  visualization coverage: %.0f%%\n", ev.Quality.ChartCoverage*100)
	fmt.Fprintf(&sb, "  data coverage:          %.0f%%\n\n", ev.Quality.DataCoverage*100)

	fmt.Fprintf(&sb, "Performance\n")
	fmt.Fprintf(&sb, "  execution time: %.2fs\n", ev.Performance.ExecutionSecs)
	fmt.Fprintf(&sb, "  agent calls:    %d\n", ev.Performance.AgentCalls)
	fmt.Fprintf(&sb, "  tool runs:      %d (avg %.3fs)\n", ev.Performance.ToolExecutions, ev.Performance.AvgToolSecs)
	fmt.Fprintf(&sb, "  error rate:     %.0f%%\n\n", ev.Performance.ErrorRate*100)

	fmt.Fprintf(&sb, "Memory\n")
	fmt.Fprintf(&sb, "  session insights: %d, charts: %d, history: %d\n",
		ev.Memory.InsightsStored, ev.Memory.ChartsStored, ev.Memory.HistoryLength)
	fmt.Fprintf(&sb, "  global insights:  %d, learned patterns: %d\n\n",
		ev.Memory.GlobalInsights, ev.Memory.LearnedPatterns)

	fmt.Fprintf(&sb, "Recommendations\n")
	for i, rec := range Recommendations(ev) {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, rec)
	}
	return sb.String()
}

// Trends summarizes the score history.
type Trends struct {
	TotalEvaluations int     `json:"total_evaluations"`
	AvgQuality       float64 `json:"average_quality_score"`
	AvgPerformance   float64 `json:"average_performance_score"`
	AvgScore         float64 `json:"average_overall_score"`
	Direction        string  `json:"trend"`
	BestScore        float64 `json:"best_score"`
	WorstScore       float64 `json:"worst_score"`
}

// HistoricalTrends aggregates the recorded evaluations. The direction
// compares the two most recent scores.
func (e *Evaluator) HistoricalTrends() Trends {
	t := Trends{TotalEvaluations: len(e.history)}
	if len(e.history) == 0 {
		t.Direction = "insufficient data"
		return t
	}
	t.BestScore = e.history[0].OverallScore
	t.WorstScore = e.history[0].OverallScore
	for _, ev := range e.history {
		t.AvgQuality += ev.Quality.Overall
		t.AvgPerformance += ev.Performance.Overall
		t.AvgScore += ev.OverallScore
		if ev.OverallScore > t.BestScore {
			t.BestScore = ev.OverallScore
		}
		if ev.OverallScore < t.WorstScore {
			t.WorstScore = ev.OverallScore
		}
	}
	n := float64(len(e.history))
	t.AvgQuality /= n
	t.AvgPerformance /= n
	t.AvgScore /= n

	switch {
	case len(e.history) < 2:
		t.Direction = "insufficient data"
	case e.history[len(e.history)-1].OverallScore > e.history[len(e.history)-2].OverallScore:
		t.Direction = "improving"
	case e.history[len(e.history)-1].OverallScore < e.history[len(e.history)-2].OverallScore:
		t.Direction = "declining"
	default:
		t.Direction = "stable"
	}
	return t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
