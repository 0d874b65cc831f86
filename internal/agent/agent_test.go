package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
	"github.com/DataLoomHQ/dataloom-cli/internal/report"
	"github.com/DataLoomHQ/dataloom-cli/internal/viz"
)

type fakeGen struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGen) Complete(ctx context.Context, model, system, user string, maxTokens int, temperature float64) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func writeCSV(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCoordinator(t *testing.T, gen Generator) (*Coordinator, *memory.Store) {
	t.Helper()
	store, err := memory.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := viz.NewRenderer(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reports, err := report.NewGenerator(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewCoordinator(store, renderer, reports, Options{Generator: gen, Model: "test-model"}), store
}

func salesCSV(t *testing.T) string {
	lines := []string{"date,units,revenue,region"}
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("2024-01-%02d,%d,%d,north", i+1, 10+i, (10+i)*5))
	}
	return writeCSV(t, "sales.csv", lines...)
}

func TestParseInsights(t *testing.T) {
	text := `# Key findings
• Revenue grew 12% month over month.
- Units and revenue are tightly coupled.
* Region north dominates sales.
1. Investigate the outliers in week 3.

2. Expand the date range for confirmation.`
	got := parseInsights(text)
	want := []string{
		"Revenue grew 12% month over month.",
		"Units and revenue are tightly coupled.",
		"Region north dominates sales.",
		"Investigate the outliers in week 3.",
		"Expand the date range for confirmation.",
	}
	if len(got) != len(want) {
		t.Fatalf("parsed %d insights, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("insight[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseInsightsLimit(t *testing.T) {
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, fmt.Sprintf("- insight %d", i))
	}
	got := parseInsights(strings.Join(lines, "\n"))
	if len(got) != maxInsights {
		t.Errorf("parsed %d insights, want cap of %d", len(got), maxInsights)
	}
}

func TestAnalyzeFileWithoutModel(t *testing.T) {
	coord, store := newCoordinator(t, nil)

	res, err := coord.AnalyzeFile(context.Background(), salesCSV(t), dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if res.SessionID == "" {
		t.Error("missing session id")
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Errorf("report not written: %v", err)
	}
	if len(res.Insights) == 0 {
		t.Error("expected deterministic fallback insights")
	}
	// units and revenue are perfectly correlated in the fixture
	found := false
	for _, ins := range res.Insights {
		if strings.Contains(ins, "units") && strings.Contains(ins, "revenue") {
			found = true
		}
	}
	if !found {
		t.Errorf("no correlation insight in %v", res.Insights)
	}

	sess, err := store.LoadSession(res.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("persisted session missing: %v", err)
	}
	if len(sess.AnalysisHistory) != 1 || sess.AnalysisHistory[0].AnalysisType != "statistical_analysis" {
		t.Errorf("analysis history = %+v", sess.AnalysisHistory)
	}
	if len(sess.Insights) != len(res.Insights) {
		t.Errorf("session has %d insights, result has %d", len(sess.Insights), len(res.Insights))
	}
	if len(store.GlobalInsights()) == 0 {
		t.Error("comprehensive run should promote insights to the global pool")
	}
	if len(store.Patterns("strong_correlation")) == 0 {
		t.Error("strong correlations should be learned as a pattern")
	}
	if len(res.Visualizations) == 0 {
		t.Error("expected at least one chart")
	}
	for _, v := range res.Visualizations {
		if _, err := os.Stat(v); err != nil {
			t.Errorf("chart missing: %v", err)
		}
	}
}

func TestAnalyzeFileUsesGeneratorInsights(t *testing.T) {
	gen := &fakeGen{response: "• Model insight one.\n• Model insight two."}
	coord, _ := newCoordinator(t, gen)

	res, err := coord.AnalyzeFile(context.Background(), salesCSV(t), dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if len(res.Insights) != 2 || res.Insights[0] != "Model insight one." {
		t.Errorf("insights = %v", res.Insights)
	}
	// one analyst narration plus one reporter distillation
	if len(gen.prompts) != 2 {
		t.Errorf("generator called %d times, want 2", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Column names: date, units, revenue, region") {
		t.Errorf("analyst prompt missing dataset summary: %s", gen.prompts[0])
	}
	if !strings.Contains(gen.prompts[0], "Sample Data (first 5 rows):") {
		t.Errorf("analyst prompt missing sample rows: %s", gen.prompts[0])
	}
}

func TestAnalyzeFileGeneratorFailureFallsBack(t *testing.T) {
	gen := &fakeGen{err: errors.New("provider down")}
	coord, _ := newCoordinator(t, gen)

	res, err := coord.AnalyzeFile(context.Background(), salesCSV(t), dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatalf("AnalyzeFile should survive generation failure: %v", err)
	}
	if len(res.Insights) == 0 {
		t.Error("expected fallback insights after generator failure")
	}
}

func TestAnalyzeTimeSeriesKeepsInsightsLocal(t *testing.T) {
	coord, store := newCoordinator(t, nil)

	res, err := coord.AnalyzeTimeSeries(context.Background(), salesCSV(t), "date", "revenue", dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatalf("AnalyzeTimeSeries: %v", err)
	}
	if res.Trend == nil || res.Trend.Direction != "increasing" {
		t.Fatalf("trend = %+v", res.Trend)
	}
	if len(res.Insights) == 0 {
		t.Error("expected insights")
	}
	if got := store.GlobalInsights(); len(got) != 0 {
		t.Errorf("time series insights leaked to global pool: %v", got)
	}
	sess, err := store.LoadSession(res.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("persisted session missing: %v", err)
	}
	if len(sess.Insights) != len(res.Insights) {
		t.Errorf("session insights = %d, want %d", len(sess.Insights), len(res.Insights))
	}
	if len(res.Visualizations) != 1 {
		t.Errorf("expected one time series chart, got %v", res.Visualizations)
	}
	if len(store.Patterns("trend")) != 1 {
		t.Errorf("trend pattern not learned: %v", store.Patterns("trend"))
	}
}

func TestAnalyzeTimeSeriesUnknownColumn(t *testing.T) {
	coord, _ := newCoordinator(t, nil)
	if _, err := coord.AnalyzeTimeSeries(context.Background(), salesCSV(t), "nope", "revenue", dataset.DefaultOptions(), ""); err == nil {
		t.Error("expected error for unknown date column")
	}
}

func TestAnalyzeFileMissingFile(t *testing.T) {
	coord, _ := newCoordinator(t, nil)
	if _, err := coord.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), dataset.DefaultOptions(), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRelevantContextFlowsBetweenRuns(t *testing.T) {
	coord, _ := newCoordinator(t, nil)
	ctx := context.Background()

	first, err := coord.AnalyzeFile(ctx, salesCSV(t), dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := coord.AnalyzeFile(ctx, salesCSV(t), dataset.DefaultOptions(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Context.SimilarAnalyses) == 0 {
		t.Fatal("second run should see the first session as similar")
	}
	if second.Context.SimilarAnalyses[0].SessionID != first.SessionID {
		t.Errorf("similar session = %s, want %s", second.Context.SimilarAnalyses[0].SessionID, first.SessionID)
	}
	if len(second.Context.RelevantInsights) == 0 {
		t.Error("second run should see the first run's global insights")
	}
}
