package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

var contextCmd = &cobra.Command{
	Use:   "context <file | column,column,...>",
	Short: "Show what memory would contribute for a dataset with these columns",
	Long: `Context lists past sessions whose datasets share enough columns with
the given set, plus the most recent global insights. This is the same
bundle the analyze command feeds to the AI model. The argument is either
a data file, whose header supplies the columns, or the column names
themselves.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, err := contextColumns(args)
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		ctx := store.RelevantContext(columns)
		b, err := utils.PrettyJSON(ctx)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

// contextColumns resolves the argument list to column names, reading the
// header of a data file when one is given.
func contextColumns(args []string) ([]string, error) {
	if len(args) == 1 {
		if fi, err := os.Stat(args[0]); err == nil && !fi.IsDir() {
			d, err := dataset.Load(args[0], dataset.DefaultOptions())
			if err != nil {
				return nil, err
			}
			return d.Columns, nil
		}
	}
	var columns []string
	for _, a := range args {
		for _, c := range strings.Split(a, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				columns = append(columns, c)
			}
		}
	}
	return columns, nil
}

func init() {
	rootCmd.AddCommand(contextCmd)
}
