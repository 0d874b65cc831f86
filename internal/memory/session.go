package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one durable record of a single analysis run: the dataset it
// covered, the analysis steps taken, the insights produced, and the
// visualizations rendered. List-valued fields are append-only for the
// lifetime of the session; there is no delete operation.
type Session struct {
	SessionID       string           `json:"session_id"`
	CreatedAt       time.Time        `json:"created_at"`
	LastUpdated     time.Time        `json:"last_updated"`
	DatasetInfo     DatasetInfo      `json:"dataset_info"`
	AnalysisHistory []AnalysisRecord `json:"analysis_history"`
	Insights        []string         `json:"insights"`
	Visualizations  []string         `json:"visualizations"`
	Metadata        map[string]any   `json:"metadata"`
}

// DatasetInfo describes the dataset a session analyzed. Columns holds the
// ordered column names and doubles as the similarity-retrieval key.
type DatasetInfo struct {
	Name     string   `json:"name,omitempty"`
	FilePath string   `json:"file_path,omitempty"`
	Rows     int      `json:"rows"`
	Cols     int      `json:"cols"`
	Columns  []string `json:"columns"`
}

// AnalysisRecord is one entry in a session's analysis history.
type AnalysisRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	AnalysisType string    `json:"analysis_type"`
	Result       any       `json:"result"`
}

// SessionSummary is the listing view of a persisted session.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Dataset     string    `json:"dataset"`
}

// newSessionID builds an id with a wall-clock prefix for readable,
// roughly chronological filenames and a uuid fragment so two sessions
// created within the same second cannot collide.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// SetDatasetInfo replaces the session's dataset description.
func (s *Session) SetDatasetInfo(info DatasetInfo) {
	s.DatasetInfo = info
}

// SetMetadata sets one free-form metadata key.
func (s *Session) SetMetadata(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}
