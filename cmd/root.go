package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataLoomHQ/dataloom-cli/internal/agent"
	"github.com/DataLoomHQ/dataloom-cli/internal/ai"
	cfgpkg "github.com/DataLoomHQ/dataloom-cli/internal/config"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
	"github.com/DataLoomHQ/dataloom-cli/internal/observe"
	"github.com/DataLoomHQ/dataloom-cli/internal/report"
	"github.com/DataLoomHQ/dataloom-cli/internal/viz"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global

	logger  *slog.Logger
	metrics = observe.NewMetrics()
)

var rootCmd = &cobra.Command{
	Use:   "dataloom",
	Short: "DataLoom CLI: AI-assisted business intelligence for tabular data",
	Long: `DataLoom analyzes CSV, TSV, JSON, and XLSX datasets: it computes
correlations, outliers, and trends, renders charts, asks an AI model for
narrative insights, and remembers every analysis session so later runs can
draw on earlier ones.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dataloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger = observe.NewLogger(os.Stderr, level, cfg.LogJSON)
}

// openStore opens the session store at the configured memory directory.
func openStore() (*memory.Store, error) {
	return memory.Open(cfg.MemoryDir)
}

// apiKey resolves the OpenRouter key from config or environment.
func apiKey() string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return os.Getenv("OPENROUTER_API_KEY")
}

// newGenerator builds the AI client, or nil when noLLM is set.
func newGenerator(noLLM bool) agent.Generator {
	if noLLM {
		return nil
	}
	client := ai.NewClientWithBaseURL(
		apiKey(),
		time.Duration(cfg.HTTPTimeoutSec)*time.Second,
		cfg.RetryMaxAttempts,
		time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
		cfg.BaseURL,
	)
	return client
}

// newCoordinator wires the full pipeline from the loaded configuration. The
// backing store is returned too so callers can score the finished run.
func newCoordinator(noLLM bool, sampleRows int) (*agent.Coordinator, *memory.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	renderer, err := viz.NewRenderer(cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	reports, err := report.NewGenerator(cfg.ReportsDir)
	if err != nil {
		return nil, nil, err
	}
	coord := agent.NewCoordinator(store, renderer, reports, agent.Options{
		Generator:   newGenerator(noLLM),
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		SampleRows:  sampleRows,
		Logger:      logger,
		Metrics:     metrics,
	})
	return coord, store, nil
}

// evaluationPath is where run scorecards accumulate, beside the session data.
func evaluationPath() string {
	return filepath.Join(cfg.MemoryDir, "evaluation_metrics.json")
}
