package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataLoomHQ/dataloom-cli/internal/agent"
	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/evaluate"
	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
)

var (
	anaType        string
	anaDateColumn  string
	anaValueColumn string
	anaOutputPath  string
	anaNoLLM       bool
	anaDelimiter   string
	anaMaxRows     int
	anaSheetName   string
	anaSheetIndex  int
	anaSampleRows  int
	anaEvaluate    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run a full analysis on a data file",
	Long: `Analyze loads a CSV/TSV/JSON/XLSX file, runs statistical analysis,
renders charts, generates insights, and writes an HTML report. Each run is
recorded as a session that later runs can retrieve as context.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		opt := dataset.DefaultOptions()
		if anaMaxRows > 0 {
			opt.MaxRows = anaMaxRows
		}
		if anaDelimiter != "" {
			switch anaDelimiter {
			case ",":
				opt.Delimiter = ','
			case "\t", "tab":
				opt.Delimiter = '\t'
			case ";":
				opt.Delimiter = ';'
			default:
				return fmt.Errorf("unsupported --delimiter: %s", anaDelimiter)
			}
		}
		if anaSheetName != "" {
			opt.SheetName = anaSheetName
		}
		if anaSheetIndex > 0 {
			opt.SheetIndex = anaSheetIndex
		}

		coord, store, err := newCoordinator(anaNoLLM, anaSampleRows)
		if err != nil {
			return err
		}

		start := time.Now()
		var res *agent.Result
		switch anaType {
		case "comprehensive":
			res, err = coord.AnalyzeFile(cmd.Context(), path, opt, anaOutputPath)
			if err != nil {
				return err
			}
			printResult(res.SessionID, res.ReportPath, res.Visualizations, res.Insights)
		case "timeseries":
			if anaDateColumn == "" || anaValueColumn == "" {
				return fmt.Errorf("--date-column and --value-column are required for --type timeseries")
			}
			res, err = coord.AnalyzeTimeSeries(cmd.Context(), path, anaDateColumn, anaValueColumn, opt, anaOutputPath)
			if err != nil {
				return err
			}
			fmt.Printf("Trend: %s (r²=%.3f)\n", res.Trend.Direction, res.Trend.RSquared)
			if res.Trend.GrowthRate != nil {
				fmt.Printf("Growth: %.1f%% over the period\n", *res.Trend.GrowthRate)
			}
			printResult(res.SessionID, res.ReportPath, res.Visualizations, res.Insights)
		default:
			return fmt.Errorf("unsupported --type: %s (use comprehensive or timeseries)", anaType)
		}

		if anaEvaluate {
			return scoreRun(res, store, time.Since(start))
		}
		return nil
	},
}

// scoreRun evaluates a finished analysis and prints the scorecard.
func scoreRun(res *agent.Result, store *memory.Store, elapsed time.Duration) error {
	ev, err := evaluate.NewEvaluator(evaluationPath())
	if err != nil {
		return err
	}
	run := evaluate.Run{
		SessionID:      res.SessionID,
		ReportPath:     res.ReportPath,
		Insights:       res.Insights,
		Visualizations: res.Visualizations,
		DatasetColumns: res.Summary.Cols,
		HasSummary:     res.Summary.Rows > 0,
		Succeeded:      true,
		Duration:       elapsed,
	}
	if res.Dataset != nil && res.Dataset.Correlations != nil {
		run.AnalyzedColumns = len(res.Dataset.Correlations.Columns)
	} else if res.Trend != nil {
		run.AnalyzedColumns = 1
	}
	sess, err := store.LoadSession(res.SessionID)
	if err != nil {
		return err
	}
	card, err := ev.Evaluate(run, metrics.Snapshot(), sess, store)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(evaluate.Report(card))
	return nil
}

func printResult(sessionID, reportPath string, visualizations, insights []string) {
	fmt.Printf("Session: %s\n", sessionID)
	if len(insights) > 0 {
		fmt.Println("\nKey insights:")
		for _, ins := range insights {
			fmt.Printf("  • %s\n", ins)
		}
	}
	if len(visualizations) > 0 {
		fmt.Println("\nCharts:")
		for _, v := range visualizations {
			fmt.Printf("  %s\n", v)
		}
	}
	fmt.Printf("\n✓ Report written to %s\n", reportPath)
}

func init() {
	analyzeCmd.Flags().StringVar(&anaType, "type", "comprehensive", "analysis type: comprehensive or timeseries")
	analyzeCmd.Flags().StringVar(&anaDateColumn, "date-column", "", "date column for time series analysis")
	analyzeCmd.Flags().StringVar(&anaValueColumn, "value-column", "", "value column for time series analysis")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "report output path (default under reports dir)")
	analyzeCmd.Flags().BoolVar(&anaNoLLM, "no-llm", false, "skip AI narration; insights come from statistics only")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',', ';', or 'tab'")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "cap rows loaded from the file")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "data rows included in the AI prompt")
	analyzeCmd.Flags().BoolVar(&anaEvaluate, "evaluate", false, "score the run and record it in the evaluation history")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet", "", "XLSX sheet name")
	analyzeCmd.Flags().IntVar(&anaSheetIndex, "sheet-index", 0, "XLSX sheet index (1-based)")
	rootCmd.AddCommand(analyzeCmd)
}
