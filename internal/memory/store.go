// Package memory implements the durable session and cross-run memory store:
// per-run analysis sessions persisted as JSON records, a deduplicated global
// insight pool, a learned-pattern table, and schema-similarity retrieval of
// relevant prior context.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

const (
	sessionsDirName  = "sessions"
	insightsFileName = "insights.json"
	patternsFileName = "patterns.json"

	// similarityThreshold is the minimum Jaccard similarity between column
	// sets for a past session to count as a similar analysis.
	similarityThreshold = 0.3
	// recentInsightCount bounds relevant_insights in a context bundle.
	recentInsightCount = 5
)

// PatternRecord is one timestamped entry in the learned-pattern table.
type PatternRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// SimilarAnalysis references a past session whose dataset schema overlaps
// the queried one.
type SimilarAnalysis struct {
	SessionID     string   `json:"session_id"`
	Similarity    float64  `json:"similarity"`
	CommonColumns []string `json:"common_columns"`
}

// Context is the bundle of historical context retrieved before a new
// analysis begins. SuggestedAnalyses is reserved and currently always empty.
type Context struct {
	SimilarAnalyses   []SimilarAnalysis `json:"similar_analyses"`
	RelevantInsights  []string          `json:"relevant_insights"`
	SuggestedAnalyses []string          `json:"suggested_analyses"`
}

// Store is the durable memory bank. It persists sessions one JSON file per
// record and keeps two process-wide aggregates (the global insight pool and
// the learned-pattern table) that are loaded at Open and flushed on every
// mutation. A Store assumes a single writer per base directory; concurrent
// writers race with last-writer-wins semantics.
type Store struct {
	baseDir      string
	sessionsDir  string
	insightsPath string
	patternsPath string

	globalInsights []string
	patterns       map[string][]PatternRecord
}

// Open initializes a Store rooted at baseDir, creating the directory layout
// and loading the persisted aggregates.
func Open(baseDir string) (*Store, error) {
	s := &Store{
		baseDir:      baseDir,
		sessionsDir:  filepath.Join(baseDir, sessionsDirName),
		insightsPath: filepath.Join(baseDir, insightsFileName),
		patternsPath: filepath.Join(baseDir, patternsFileName),
		patterns:     make(map[string][]PatternRecord),
	}
	if err := utils.EnsureDir(s.sessionsDir); err != nil {
		return nil, fmt.Errorf("ensure memory dir: %w", err)
	}
	if err := s.loadInsights(); err != nil {
		return nil, err
	}
	if err := s.loadPatterns(); err != nil {
		return nil, err
	}
	return s, nil
}

// BaseDir returns the on-disk root of the store.
func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) loadInsights() error {
	b, err := os.ReadFile(s.insightsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read insights: %w", err)
	}
	if err := json.Unmarshal(b, &s.globalInsights); err != nil {
		return fmt.Errorf("parse insights: %w", err)
	}
	return nil
}

func (s *Store) saveInsights() error {
	b, err := utils.PrettyJSON(s.globalInsights)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(s.insightsPath, b)
}

func (s *Store) loadPatterns() error {
	b, err := os.ReadFile(s.patternsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read patterns: %w", err)
	}
	if err := json.Unmarshal(b, &s.patterns); err != nil {
		return fmt.Errorf("parse patterns: %w", err)
	}
	return nil
}

func (s *Store) savePatterns() error {
	b, err := utils.PrettyJSON(s.patterns)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(s.patternsPath, b)
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.sessionsDir, sessionID+".json")
}

// CreateSession constructs a new session for the given dataset, persists it
// immediately, and returns it.
func (s *Store) CreateSession(info DatasetInfo) (*Session, error) {
	now := time.Now()
	sess := &Session{
		SessionID:   newSessionID(now),
		CreatedAt:   now,
		LastUpdated: now,
		DatasetInfo: info,
		Metadata:    make(map[string]any),
	}
	if err := s.SaveSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveSession refreshes last_updated and writes the full session record,
// overwriting any prior record with the same id.
func (s *Store) SaveSession(sess *Session) error {
	sess.LastUpdated = time.Now()
	b, err := utils.PrettyJSON(sess)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(s.sessionPath(sess.SessionID), b); err != nil {
		return fmt.Errorf("save session %s: %w", sess.SessionID, err)
	}
	return nil
}

// LoadSession returns the persisted session, or (nil, nil) when no record
// exists for the id.
func (s *Store) LoadSession(sessionID string) (*Session, error) {
	b, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// ListSessions returns summaries of all persisted sessions ordered by
// last_updated descending. Unreadable or malformed records are skipped so a
// single corrupt file cannot abort the listing.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []SessionSummary
	for _, e := range entries {
		sess, ok := s.readSessionEntry(e.Name())
		if !ok {
			continue
		}
		dataset := sess.DatasetInfo.Name
		if dataset == "" {
			dataset = "Unknown"
		}
		out = append(out, SessionSummary{
			SessionID:   sess.SessionID,
			CreatedAt:   sess.CreatedAt,
			LastUpdated: sess.LastUpdated,
			Dataset:     dataset,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

// readSessionEntry loads one session file by name. Non-session files and
// records that fail to read or parse report ok=false.
func (s *Store) readSessionEntry(name string) (*Session, bool) {
	if !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
		return nil, false
	}
	b, err := os.ReadFile(filepath.Join(s.sessionsDir, name))
	if err != nil {
		return nil, false
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, false
	}
	return &sess, true
}

// AddAnalysisResult appends a timestamped result to the session's analysis
// history and persists the session.
func (s *Store) AddAnalysisResult(sess *Session, analysisType string, result any) error {
	sess.AnalysisHistory = append(sess.AnalysisHistory, AnalysisRecord{
		Timestamp:    time.Now(),
		AnalysisType: analysisType,
		Result:       result,
	})
	return s.SaveSession(sess)
}

// AddInsight appends the insight to the session. When global is true the
// insight also joins the cross-session pool, deduplicated by exact string
// equality; the pool is flushed before the session record is persisted.
func (s *Store) AddInsight(sess *Session, insight string, global bool) error {
	sess.Insights = append(sess.Insights, insight)
	if global && !containsString(s.globalInsights, insight) {
		s.globalInsights = append(s.globalInsights, insight)
		if err := s.saveInsights(); err != nil {
			return err
		}
	}
	return s.SaveSession(sess)
}

// AddVisualization records a rendered chart path in the session and persists it.
func (s *Store) AddVisualization(sess *Session, path string) error {
	sess.Visualizations = append(sess.Visualizations, path)
	return s.SaveSession(sess)
}

// GlobalInsights returns a copy of the cross-session insight pool in
// insertion order.
func (s *Store) GlobalInsights() []string {
	out := make([]string, len(s.globalInsights))
	copy(out, s.globalInsights)
	return out
}

// LearnPattern files a timestamped data record under the given pattern type
// and flushes the pattern table.
func (s *Store) LearnPattern(patternType string, data any) error {
	s.patterns[patternType] = append(s.patterns[patternType], PatternRecord{
		Timestamp: time.Now(),
		Data:      data,
	})
	return s.savePatterns()
}

// Patterns returns the learned records filed under the given type.
func (s *Store) Patterns(patternType string) []PatternRecord {
	recs := s.patterns[patternType]
	out := make([]PatternRecord, len(recs))
	copy(out, recs)
	return out
}

// PatternCount returns the total number of learned records across all types.
func (s *Store) PatternCount() int {
	n := 0
	for _, recs := range s.patterns {
		n += len(recs)
	}
	return n
}

// RelevantContext scans all persisted sessions and assembles the context
// bundle for a dataset with the given columns: past sessions whose column
// sets exceed the Jaccard similarity threshold (in scan order), plus the
// most recent global insights. Records that fail to read or parse are
// skipped; the call never fails because of one bad record.
func (s *Store) RelevantContext(columns []string) Context {
	ctx := Context{
		SimilarAnalyses:   []SimilarAnalysis{},
		RelevantInsights:  []string{},
		SuggestedAnalyses: []string{},
	}

	query := toSet(columns)
	if len(query) > 0 {
		if entries, err := os.ReadDir(s.sessionsDir); err == nil {
			for _, e := range entries {
				sess, ok := s.readSessionEntry(e.Name())
				if !ok {
					continue
				}
				candidate := toSet(sess.DatasetInfo.Columns)
				common := intersect(query, candidate)
				if len(common) == 0 {
					continue
				}
				sim := float64(len(common)) / float64(unionSize(query, candidate))
				if sim > similarityThreshold {
					sort.Strings(common)
					ctx.SimilarAnalyses = append(ctx.SimilarAnalyses, SimilarAnalysis{
						SessionID:     sess.SessionID,
						Similarity:    sim,
						CommonColumns: common,
					})
				}
			}
		}
	}

	insights := s.globalInsights
	if len(insights) > recentInsightCount {
		insights = insights[len(insights)-recentInsightCount:]
	}
	ctx.RelevantInsights = append(ctx.RelevantInsights, insights...)
	return ctx
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for v := range a {
		if _, ok := b[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func unionSize(a, b map[string]struct{}) int {
	n := len(a)
	for v := range b {
		if _, ok := a[v]; !ok {
			n++
		}
	}
	return n
}
