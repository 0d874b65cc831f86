package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "List the global insight pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		insights := store.GlobalInsights()
		if len(insights) == 0 {
			fmt.Println("(no insights)")
			return nil
		}
		for _, ins := range insights {
			fmt.Printf("• %s\n", ins)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
