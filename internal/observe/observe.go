// Package observe provides structured logging and lightweight run metrics
// for the analysis pipeline.
package observe

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Structured log field names shared across the pipeline.
const (
	FieldSessionID = "session_id"
	FieldAgent     = "agent"
	FieldTool      = "tool"
	FieldDuration  = "duration_ms"
	FieldDataset   = "dataset"
	FieldError     = "error"
)

// NewLogger builds a slog.Logger writing to w at the given level.
// jsonOutput selects JSON records over human-oriented text.
func NewLogger(w io.Writer, level string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Metrics counts agent calls, tool executions, and errors for one run.
type Metrics struct {
	agentCalls     atomic.Int64
	toolExecutions atomic.Int64
	errors         atomic.Int64

	mu         sync.Mutex
	processing time.Duration
}

// NewMetrics returns an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordAgentCall counts one agent invocation.
func (m *Metrics) RecordAgentCall() {
	m.agentCalls.Add(1)
}

// RecordToolExecution counts one tool run and folds its duration into the
// processing total. Failed runs also count as errors.
func (m *Metrics) RecordToolExecution(d time.Duration, success bool) {
	m.toolExecutions.Add(1)
	if !success {
		m.errors.Add(1)
	}
	m.mu.Lock()
	m.processing += d
	m.mu.Unlock()
}

// RecordError counts an error outside of tool execution.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.agentCalls.Store(0)
	m.toolExecutions.Store(0)
	m.errors.Store(0)
	m.mu.Lock()
	m.processing = 0
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	AgentCalls          int64   `json:"agent_calls"`
	ToolExecutions      int64   `json:"tool_executions"`
	Errors              int64   `json:"errors"`
	TotalProcessingSecs float64 `json:"total_processing_time"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	proc := m.processing
	m.mu.Unlock()
	return Snapshot{
		AgentCalls:          m.agentCalls.Load(),
		ToolExecutions:      m.toolExecutions.Load(),
		Errors:              m.errors.Load(),
		TotalProcessingSecs: proc.Seconds(),
	}
}

// SuccessRate returns the share of tool executions that succeeded, 0-100.
func (s Snapshot) SuccessRate() float64 {
	if s.ToolExecutions == 0 {
		return 100.0
	}
	ok := s.ToolExecutions - s.Errors
	if ok < 0 {
		ok = 0
	}
	return float64(ok) / float64(s.ToolExecutions) * 100.0
}

// LogSummary emits the run counters as one structured record.
func (m *Metrics) LogSummary(logger *slog.Logger) {
	s := m.Snapshot()
	logger.Info("run summary",
		slog.Int64("agent_calls", s.AgentCalls),
		slog.Int64("tool_executions", s.ToolExecutions),
		slog.Int64("errors", s.Errors),
		slog.Float64("total_processing_time", s.TotalProcessingSecs),
		slog.Float64("success_rate", s.SuccessRate()),
	)
}

// Timed runs fn, records it as a tool execution, and logs the outcome.
func (m *Metrics) Timed(logger *slog.Logger, tool string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	m.RecordToolExecution(d, err == nil)
	if err != nil {
		logger.Error("tool execution failed",
			slog.String(FieldTool, tool),
			slog.Int64(FieldDuration, d.Milliseconds()),
			slog.String(FieldError, err.Error()),
		)
		return err
	}
	logger.Debug("tool execution",
		slog.String(FieldTool, tool),
		slog.Int64(FieldDuration, d.Milliseconds()),
	)
	return nil
}
