package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/medflow-cli/internal/export"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaFlags      reportFlags
	anaOutputPath string
	anaFormat     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Summarize a delivery CSV/XLSX: totals, top lists, flows and data quality",
	Example: `  medflow analyze deliveries.csv
  medflow analyze deliveries.csv --supplier S1 --from 2024-01-01 --to 2024-03-31
  medflow analyze deliveries.csv --format json
  medflow analyze deliveries.xlsx --sheet-name Q1 -o q1.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := anaFlags.options(cmd.Flags())
		if err != nil {
			return err
		}
		rep, err := anaFlags.load(path, opt)
		if err != nil {
			return err
		}
		logger.Debug("dataset analyzed", "file", path, "parsed", rep.Parsed, "rows", rep.Summary.Rows, "skipped", rep.Quality.SkippedLines)
		if rep.Parsed == 0 {
			fmt.Fprintf(os.Stderr, "⚠ Warning: no data rows found in %s (need a header plus at least one row)\n", path)
		}

		format := export.FormatMarkdown
		if anaFormat != "" {
			if format, err = export.ParseFormat(anaFormat); err != nil {
				return err
			}
		} else if anaOutputPath != "" {
			format = export.FormatFromPath(anaOutputPath)
		}

		if anaOutputPath != "" {
			if err := export.Write(anaOutputPath, format, rep); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote %s analysis to %s\n", format, anaOutputPath)
			return nil
		}
		switch format {
		case export.FormatJSON:
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		case export.FormatXLSX:
			return fmt.Errorf("--format xlsx requires --output")
		default:
			fmt.Println(rep.Markdown())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaFlags.register(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis (format inferred from extension)")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "", "output format: markdown|json|xlsx")
}
