package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/KaramelBytes/medflow-cli/internal/ai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models with context size and pricing used for cost estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
		for _, name := range ai.ModelNames() {
			mi, _ := ai.LookupModel(name)
			fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\n", mi.Name, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
