package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DataLoomHQ/dataloom-cli/internal/evaluate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Show the run quality history",
	Long: `Evaluate summarizes the scorecards recorded by 'analyze --evaluate':
average scores, the best and worst run, and whether quality is trending
up or down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := evaluate.NewEvaluator(evaluationPath())
		if err != nil {
			return err
		}
		trends := ev.HistoricalTrends()
		if trends.TotalEvaluations == 0 {
			fmt.Println("(no evaluations recorded; run 'dataloom analyze --evaluate')")
			return nil
		}
		fmt.Printf("Evaluations: %d\n", trends.TotalEvaluations)
		fmt.Printf("Average score: %.1f/100\n", trends.AvgScore)
		fmt.Printf("Average quality: %.0f%%  performance: %.0f%%\n",
			trends.AvgQuality*100, trends.AvgPerformance*100)
		fmt.Printf("Best: %.1f  Worst: %.1f\n", trends.BestScore, trends.WorstScore)
		fmt.Printf("Trend: %s\n", trends.Direction)

		history := ev.History()
		last := history[len(history)-1]
		fmt.Println()
		fmt.Print(evaluate.Report(&last))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}
