package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/KaramelBytes/medflow-cli/internal/export"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abFlags  reportFlags
	abOutDir string
	abFormat string
	abJobs   int
	abQuiet  bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple delivery files concurrently",
	Example: `  medflow analyze-batch 'exports/*.csv' --out-dir summaries
  medflow analyze-batch a.csv b.xlsx --format json --out-dir out --jobs 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		opt, err := abFlags.options(cmd.Flags())
		if err != nil {
			return err
		}
		format := export.FormatMarkdown
		if abFormat != "" {
			if format, err = export.ParseFormat(abFormat); err != nil {
				return err
			}
		}
		if format == export.FormatXLSX && abOutDir == "" {
			return fmt.Errorf("--format xlsx requires --out-dir")
		}
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return fmt.Errorf("create out dir: %w", err)
			}
		}

		reports := make([]*analysis.Report, len(files))
		var (
			mu   sync.Mutex
			done int
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		jobs := abJobs
		if jobs <= 0 {
			jobs = 4
		}
		g.SetLimit(jobs)
		total := len(files)
		for i, path := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				rep, err := abFlags.load(path, opt)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				reports[i] = rep
				mu.Lock()
				done++
				if !abQuiet {
					fmt.Printf("[%d/%d] Processed %s (%d rows)\n", done, total, filepath.Base(path), rep.Summary.Rows)
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Writes happen in input order so name collisions resolve deterministically
		for i, rep := range reports {
			if abOutDir == "" {
				if !abQuiet {
					fmt.Println(rep.Markdown())
				}
				continue
			}
			out := utils.UniquePath(abOutDir, utils.BaseName(files[i]), ".summary"+format.Ext())
			if err := export.Write(out, format, rep); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			if !abQuiet {
				fmt.Printf("✓ Wrote %s\n", out)
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, dropping duplicates, sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abFlags.register(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for <name>.summary.<ext> files (prints Markdown when empty)")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "", "output format: markdown|json|xlsx")
	analyzeBatchCmd.Flags().IntVar(&abJobs, "jobs", 4, "number of files analyzed concurrently")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
