package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/spf13/pflag"
)

// reportFlags are shared by every command that builds a report.
type reportFlags struct {
	suppliers  []string
	customers  []string
	categories []string
	from       string
	to         string
	flowLimit  int
	sheetName  string
	sheetIndex int
}

func (rf *reportFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&rf.suppliers, "supplier", nil, "only include these SupplierIDs (repeatable or comma-separated)")
	fs.StringSliceVar(&rf.customers, "customer", nil, "only include these CustomerIDs (repeatable or comma-separated)")
	fs.StringSliceVar(&rf.categories, "category", nil, "only include these categories (repeatable or comma-separated)")
	fs.StringVar(&rf.from, "from", "", "earliest delivery date, inclusive (YYYY-MM-DD or YYYYMMDD)")
	fs.StringVar(&rf.to, "to", "", "latest delivery date, inclusive (YYYY-MM-DD or YYYYMMDD)")
	fs.IntVar(&rf.flowLimit, "flow-limit", 0, "number of supplier->customer flows to keep (default from config; -1 keeps all)")
	fs.StringVar(&rf.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&rf.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// options resolves the flags against the config defaults.
func (rf *reportFlags) options(fs *pflag.FlagSet) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if cfg != nil && cfg.FlowLimit > 0 {
		opt.FlowLimit = cfg.FlowLimit
	}
	if fs.Changed("flow-limit") {
		opt.FlowLimit = rf.flowLimit
	}
	from, err := analysis.ParseDay(strings.TrimSpace(rf.from))
	if err != nil {
		return opt, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := analysis.ParseDay(strings.TrimSpace(rf.to))
	if err != nil {
		return opt, fmt.Errorf("invalid --to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return opt, fmt.Errorf("--to (%s) is before --from (%s)", rf.to, rf.from)
	}
	opt.Filter = analysis.Filter{
		Suppliers:  rf.suppliers,
		Customers:  rf.customers,
		Categories: rf.categories,
		From:       from,
		To:         to,
	}
	return opt, nil
}

// load analyzes a CSV or XLSX file.
func (rf *reportFlags) load(path string, opt analysis.Options) (*analysis.Report, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return analysis.AnalyzeXLSX(path, opt, rf.sheetName, rf.sheetIndex)
	}
	return analysis.AnalyzeFile(path, opt)
}
