// Package agent implements the analysis workflow: a data analyst that runs
// the statistics, a reporter that turns findings into insights, and a
// coordinator that drives a full run against the session store.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DataLoomHQ/dataloom-cli/internal/observe"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

// maxPromptTokens bounds what one agent call sends to the model.
const maxPromptTokens = 6000

// Generator produces narrative text from a system+user prompt pair.
// *ai.Client satisfies it; tests substitute a canned implementation.
type Generator interface {
	Complete(ctx context.Context, model, system, user string, maxTokens int, temperature float64) (string, error)
}

// Options configures model access shared by all agents. A nil Generator
// switches every agent to its deterministic fallback.
type Options struct {
	Generator   Generator
	Model       string
	MaxTokens   int
	Temperature float64
	SampleRows  int
	Logger      *slog.Logger
	Metrics     *observe.Metrics
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = observe.NewMetrics()
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	if o.SampleRows <= 0 {
		o.SampleRows = 5
	}
}

type base struct {
	name    string
	role    string
	opts    Options
	logger  *slog.Logger
	metrics *observe.Metrics
}

func newBase(name, role string, opts Options) base {
	opts.normalize()
	return base{
		name:    name,
		role:    role,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// respond asks the model for narrative text. Returns "" without error when
// no generator is configured; callers fall back to deterministic output.
func (b *base) respond(ctx context.Context, prompt string) (string, error) {
	if b.opts.Generator == nil {
		return "", nil
	}
	b.metrics.RecordAgentCall()
	prompt = utils.TruncateToTokenLimit(prompt, maxPromptTokens)
	b.logger.Debug("agent call",
		slog.String(observe.FieldAgent, b.name),
		slog.Int("prompt_tokens", utils.CountTokens(prompt)),
	)
	system := fmt.Sprintf(`You are %s, a specialized AI agent for business intelligence.
Your role: %s

You provide clear, actionable insights based on data analysis. Be specific,
use numbers, and explain your reasoning. When analyzing data, consider:
- Trends and patterns
- Outliers and anomalies
- Correlations and relationships
- Business implications`, b.name, b.role)
	out, err := b.opts.Generator.Complete(ctx, b.opts.Model, system, prompt, b.opts.MaxTokens, b.opts.Temperature)
	if err != nil {
		b.metrics.RecordError()
		b.logger.Error("generation failed",
			slog.String(observe.FieldAgent, b.name),
			slog.String(observe.FieldError, err.Error()),
		)
		return "", err
	}
	return strings.TrimSpace(out), nil
}
