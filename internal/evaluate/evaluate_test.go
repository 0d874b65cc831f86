package evaluate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/evaluate"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
	"github.com/DataLoomHQ/dataloom-cli/internal/observe"
)

func historyPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "evaluation_metrics.json")
}

// fullRun meets every scoring target.
func fullRun() evaluate.Run {
	long := strings.Repeat("x", 120)
	return evaluate.Run{
		SessionID:       "session_20240506_070809_abcd1234",
		ReportPath:      "/tmp/report.html",
		Insights:        []string{long, long, long, long, long},
		Visualizations:  []string{"a.png", "b.png", "c.png"},
		DatasetColumns:  4,
		AnalyzedColumns: 4,
		HasSummary:      true,
		Succeeded:       true,
		Duration:        2 * time.Second,
	}
}

func fullSession() *memory.Session {
	return &memory.Session{
		Insights:       []string{"a", "b", "c", "d"},
		Visualizations: []string{"a.png", "b.png", "c.png"},
		AnalysisHistory: []memory.AnalysisRecord{
			{AnalysisType: "statistical_analysis"},
			{AnalysisType: "statistical_analysis"},
			{AnalysisType: "time_series"},
		},
	}
}

func TestEvaluatePerfectRunGradesA(t *testing.T) {
	path := historyPath(t)
	ev, err := evaluate.NewEvaluator(path)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	card, err := ev.Evaluate(fullRun(), observe.Snapshot{}, fullSession(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if card.Quality.Overall != 1 {
		t.Errorf("quality = %v, want 1", card.Quality)
	}
	if card.Performance.Overall <= 0.98 {
		t.Errorf("performance = %v", card.Performance)
	}
	if card.Memory.Effectiveness != 1 {
		t.Errorf("memory effectiveness = %v, want 1", card.Memory.Effectiveness)
	}
	if card.OverallScore < 99 || !strings.HasPrefix(card.Grade, "A") {
		t.Errorf("score %.1f grade %q", card.OverallScore, card.Grade)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("history not persisted: %v", err)
	}
}

func TestEvaluateEmptyRunGradesPoorly(t *testing.T) {
	ev, err := evaluate.NewEvaluator(historyPath(t))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	run := evaluate.Run{SessionID: "s", Duration: 2 * time.Minute}
	card, err := ev.Evaluate(run, observe.Snapshot{ToolExecutions: 4, Errors: 4}, nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if card.Quality.Overall != 0 {
		t.Errorf("quality = %v, want 0", card.Quality.Overall)
	}
	if card.Performance.SpeedScore != 0 || card.Performance.Efficiency != 0 || card.Performance.Reliability != 0 {
		t.Errorf("performance = %+v", card.Performance)
	}
	if !strings.HasPrefix(card.Grade, "F") {
		t.Errorf("grade = %q, want F", card.Grade)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := historyPath(t)
	ev, err := evaluate.NewEvaluator(path)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if _, err := ev.Evaluate(fullRun(), observe.Snapshot{}, fullSession(), nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, err := ev.Evaluate(evaluate.Run{SessionID: "s2", Duration: 2 * time.Minute},
		observe.Snapshot{}, nil, nil); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	reopened, err := evaluate.NewEvaluator(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	hist := reopened.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	trends := reopened.HistoricalTrends()
	if trends.TotalEvaluations != 2 {
		t.Errorf("total = %d", trends.TotalEvaluations)
	}
	if trends.Direction != "declining" {
		t.Errorf("direction = %q, want declining", trends.Direction)
	}
	if trends.BestScore != hist[0].OverallScore || trends.WorstScore != hist[1].OverallScore {
		t.Errorf("best/worst = %.1f/%.1f", trends.BestScore, trends.WorstScore)
	}
}

func TestHistoricalTrendsEmpty(t *testing.T) {
	ev, err := evaluate.NewEvaluator(historyPath(t))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	trends := ev.HistoricalTrends()
	if trends.TotalEvaluations != 0 || trends.Direction != "insufficient data" {
		t.Errorf("trends = %+v", trends)
	}
}

func TestRecommendations(t *testing.T) {
	ev, err := evaluate.NewEvaluator(historyPath(t))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	good, err := ev.Evaluate(fullRun(), observe.Snapshot{}, fullSession(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	recs := evaluate.Recommendations(good)
	if len(recs) != 1 || !strings.Contains(recs[0], "performing well") {
		t.Errorf("recs for good run = %v", recs)
	}

	bad, err := ev.Evaluate(evaluate.Run{SessionID: "s", Duration: 2 * time.Minute},
		observe.Snapshot{ToolExecutions: 4, Errors: 2}, nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	joined := strings.Join(evaluate.Recommendations(bad), "\n")
	for _, want := range []string{"completeness", "insight quality", "visualization coverage",
		"execution time", "error rate", "memory utilization"} {
		if !strings.Contains(joined, want) {
			t.Errorf("recommendations missing %q:\n%s", want, joined)
		}
	}
}

func TestReportSections(t *testing.T) {
	ev, err := evaluate.NewEvaluator(historyPath(t))
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	card, err := ev.Evaluate(fullRun(), observe.Snapshot{}, fullSession(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	out := evaluate.Report(card)
	for _, want := range []string{"Overall score:", "Quality", "Performance", "Memory", "Recommendations"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
