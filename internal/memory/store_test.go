package memory_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
)

func openStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestCreateSessionPersistsImmediately(t *testing.T) {
	s := openStore(t)
	sess, err := s.CreateSession(memory.DatasetInfo{Name: "sales.csv", Rows: 10, Cols: 3, Columns: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("empty session id")
	}
	loaded, err := s.LoadSession(sess.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if loaded == nil {
		t.Fatal("created session not persisted")
	}
	if loaded.DatasetInfo.Name != "sales.csv" {
		t.Fatalf("dataset name = %q", loaded.DatasetInfo.Name)
	}
	if loaded.LastUpdated.Before(loaded.CreatedAt) {
		t.Fatalf("last_updated %v before created_at %v", loaded.LastUpdated, loaded.CreatedAt)
	}
}

func TestSessionIDsUniqueWithinSameSecond(t *testing.T) {
	s := openStore(t)
	a, err := s.CreateSession(memory.DatasetInfo{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateSession(memory.DatasetInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if a.SessionID == b.SessionID {
		t.Fatalf("two sessions share id %s", a.SessionID)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	sess, err := s.CreateSession(memory.DatasetInfo{Name: "orders", Columns: []string{"id", "total"}})
	if err != nil {
		t.Fatal(err)
	}
	sess.Insights = append(sess.Insights, "revenue is seasonal")
	sess.Visualizations = append(sess.Visualizations, "/tmp/chart.png")
	sess.SetMetadata("source", "unit-test")
	before := sess.LastUpdated
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.LoadSession(sess.SessionID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("session missing after save")
	}
	if loaded.SessionID != sess.SessionID {
		t.Fatalf("id mismatch: %s vs %s", loaded.SessionID, sess.SessionID)
	}
	if len(loaded.Insights) != 1 || loaded.Insights[0] != "revenue is seasonal" {
		t.Fatalf("insights = %v", loaded.Insights)
	}
	if len(loaded.Visualizations) != 1 || loaded.Visualizations[0] != "/tmp/chart.png" {
		t.Fatalf("visualizations = %v", loaded.Visualizations)
	}
	if loaded.Metadata["source"] != "unit-test" {
		t.Fatalf("metadata = %v", loaded.Metadata)
	}
	if loaded.LastUpdated.Before(before) {
		t.Fatalf("last_updated went backwards: %v < %v", loaded.LastUpdated, before)
	}
}

func TestLoadSessionAbsentIsNotAnError(t *testing.T) {
	s := openStore(t)
	sess, err := s.LoadSession("session_19990101_000000_deadbeef")
	if err != nil {
		t.Fatalf("unexpected error for absent session: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %+v", sess)
	}
}

func TestAppendOnlyHistoryAndInsights(t *testing.T) {
	s := openStore(t)
	sess, err := s.CreateSession(memory.DatasetInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddAnalysisResult(sess, "statistical_analysis", map[string]any{"strong": 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddInsight(sess, "first", false); err != nil {
		t.Fatal(err)
	}
	if err := s.AddInsight(sess, "second", false); err != nil {
		t.Fatal(err)
	}
	if err := s.AddVisualization(sess, "a.png"); err != nil {
		t.Fatal(err)
	}
	if len(sess.AnalysisHistory) != 1 {
		t.Fatalf("history length = %d", len(sess.AnalysisHistory))
	}
	if sess.AnalysisHistory[0].AnalysisType != "statistical_analysis" {
		t.Fatalf("analysis type = %s", sess.AnalysisHistory[0].AnalysisType)
	}
	if len(sess.Insights) != 2 || sess.Insights[0] != "first" || sess.Insights[1] != "second" {
		t.Fatalf("insights order broken: %v", sess.Insights)
	}
	loaded, err := s.LoadSession(sess.SessionID)
	if err != nil || loaded == nil {
		t.Fatalf("load after appends: %v", err)
	}
	if len(loaded.Insights) != 2 || len(loaded.Visualizations) != 1 || len(loaded.AnalysisHistory) != 1 {
		t.Fatalf("persisted lists wrong: %d insights, %d viz, %d history",
			len(loaded.Insights), len(loaded.Visualizations), len(loaded.AnalysisHistory))
	}
}

func TestGlobalInsightDedup(t *testing.T) {
	s := openStore(t)
	sess, err := s.CreateSession(memory.DatasetInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddInsight(sess, "X", true); err != nil {
		t.Fatal(err)
	}
	if err := s.AddInsight(sess, "X", true); err != nil {
		t.Fatal(err)
	}
	if got := s.GlobalInsights(); len(got) != 1 || got[0] != "X" {
		t.Fatalf("global insights = %v, want exactly one X", got)
	}
	// the session's own list keeps both occurrences
	if len(sess.Insights) != 2 {
		t.Fatalf("session insights = %v", sess.Insights)
	}
}

func TestGlobalInsightsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := memory.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := s.CreateSession(memory.DatasetInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddInsight(sess, "durable", true); err != nil {
		t.Fatal(err)
	}

	s2, err := memory.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.GlobalInsights(); len(got) != 1 || got[0] != "durable" {
		t.Fatalf("reloaded insights = %v", got)
	}
}

func TestLearnPatternAccumulatesAndReloads(t *testing.T) {
	dir := t.TempDir()
	s, err := memory.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LearnPattern("correlation", map[string]any{"a": "b", "r": 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := s.LearnPattern("correlation", map[string]any{"a": "c", "r": -0.8}); err != nil {
		t.Fatal(err)
	}
	if err := s.LearnPattern("range", map[string]any{"col": "total"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Patterns("correlation"); len(got) != 2 {
		t.Fatalf("correlation patterns = %d", len(got))
	}

	s2, err := memory.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := s2.Patterns("correlation"); len(got) != 2 {
		t.Fatalf("reloaded correlation patterns = %d", len(got))
	}
	if got := s2.Patterns("range"); len(got) != 1 {
		t.Fatalf("reloaded range patterns = %d", len(got))
	}
	if got := s2.PatternCount(); got != 3 {
		t.Fatalf("pattern count = %d, want 3", got)
	}
}

func TestListSessionsOrderedByLastUpdated(t *testing.T) {
	s := openStore(t)
	first, err := s.CreateSession(memory.DatasetInfo{Name: "first"})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := s.CreateSession(memory.DatasetInfo{Name: "second"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d", len(list))
	}
	if list[0].Dataset != "second" {
		t.Fatalf("expected most recent first, got %s", list[0].Dataset)
	}

	// Touching the oldest session moves it to the front.
	time.Sleep(10 * time.Millisecond)
	if err := s.SaveSession(first); err != nil {
		t.Fatal(err)
	}
	list, err = s.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Dataset != "first" {
		t.Fatalf("expected touched session first, got %s", list[0].Dataset)
	}
}

func TestListSessionsSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	s, err := memory.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSession(memory.DatasetInfo{Name: "good"}); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "sessions", "session_20200101_000000_ffffffff.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions()
	if err != nil {
		t.Fatalf("listing failed on corrupt record: %v", err)
	}
	if len(list) != 1 || list[0].Dataset != "good" {
		t.Fatalf("list = %+v", list)
	}
}
