package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Options controls report assembly around the core summary.
type Options struct {
	// Filter narrows the records before anything is aggregated.
	Filter Filter
	// FlowLimit caps the number of supplier->customer flows; <= 0 keeps all.
	FlowLimit int
}

// DefaultOptions returns the defaults used by the CLI and server.
func DefaultOptions() Options {
	return Options{FlowLimit: 10}
}

// Report bundles the summary with the derived views consumed by exporters,
// the HTTP API and the insights pipeline.
type Report struct {
	Name     string       `json:"name,omitempty"`
	Headers  []string     `json:"headers"`
	Filter   string       `json:"filter,omitempty"`
	Parsed   int          `json:"parsed_rows"`
	Summary  Summary      `json:"summary"`
	Quality  Quality      `json:"quality"`
	Network  Network      `json:"network"`
	Trend    []MonthPoint `json:"monthly"`
	Filtered bool         `json:"filtered"`
}

// Analyze parses text and builds a Report over the filtered records.
func Analyze(name, text string, opt Options) *Report {
	res := ParseDetailed(text)
	records := res.Records
	rep := &Report{Name: name, Headers: res.Headers, Parsed: len(records)}
	if rep.Headers == nil {
		rep.Headers = []string{}
	}
	if !opt.Filter.IsZero() {
		records = opt.Filter.Apply(records)
		rep.Filtered = true
		rep.Filter = opt.Filter.String()
	}
	rep.Summary = Summarize(records)
	rep.Quality = Assess(records)
	rep.Quality.SkippedLines = res.Skipped
	rep.Network = BuildNetwork(records, opt.FlowLimit)
	rep.Trend = MonthlyUnits(records)
	return rep
}

// AnalyzeFile reads a dataset from disk and analyzes it. Workbooks
// (.xlsx) are read from their first sheet.
func AnalyzeFile(path string, opt Options) (*Report, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return AnalyzeXLSX(path, opt, "", 1)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Analyze(filepath.Base(path), string(b), opt), nil
}

// SummaryJSON returns the indented Summary, the payload sent to AI runtimes.
func (r *Report) SummaryJSON() (string, error) {
	b, err := json.MarshalIndent(r.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(b), nil
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *Report) Markdown() string {
	s := r.Summary
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Filtered {
		b.WriteString(fmt.Sprintf("Filter: %s (%d of %d rows)\n", r.Filter, s.Rows, r.Parsed))
	}
	b.WriteString(fmt.Sprintf("Rows: %s\n", humanize.Comma(int64(s.Rows))))
	b.WriteString(fmt.Sprintf("Total units: %s\n", humanize.Comma(int64(s.TotalUnits))))
	b.WriteString(fmt.Sprintf("Unique: suppliers %d, customers %d, categories %d\n",
		s.Unique.Suppliers, s.Unique.Customers, s.Unique.Categories))
	if s.DateRange.Min != nil {
		b.WriteString(fmt.Sprintf("Delivery dates: %s to %s\n", *s.DateRange.Min, *s.DateRange.Max))
	} else {
		b.WriteString("Delivery dates: (none)\n")
	}

	writeTop(&b, "TOP SUPPLIERS", s.TopSuppliers)
	writeTop(&b, "TOP CUSTOMERS", s.TopCustomers)
	writeTop(&b, "TOP CATEGORIES", s.TopCategories)

	if len(r.Network.Flows) > 0 {
		b.WriteString("\n[TOP FLOWS]\n")
		for _, f := range r.Network.Flows {
			b.WriteString(fmt.Sprintf("- %s -> %s: %s units in %d shipments\n",
				safeVal(safeName(f.Supplier)), safeVal(safeName(f.Customer)), humanize.Comma(int64(f.Units)), f.Shipments))
		}
	}
	if len(r.Trend) > 0 {
		b.WriteString("\n[MONTHLY UNITS]\n")
		for _, p := range r.Trend {
			b.WriteString(fmt.Sprintf("- %s: %s (%d shipments)\n", p.Month, humanize.Comma(int64(p.Units)), p.Shipments))
		}
	}

	q := r.Quality
	b.WriteString("\n[DATA QUALITY]\n")
	if q.Clean() {
		b.WriteString("- no issues detected\n")
	} else {
		b.WriteString(fmt.Sprintf("- undated rows: %d\n", q.Undated))
		b.WriteString(fmt.Sprintf("- zero-unit rows: %d\n", q.ZeroUnits))
		b.WriteString(fmt.Sprintf("- missing customer: %d\n", q.MissingCustomer))
		b.WriteString(fmt.Sprintf("- missing category: %d\n", q.MissingCategory))
		b.WriteString(fmt.Sprintf("- skipped short lines: %d\n", q.SkippedLines))
	}

	if len(s.SampleRows) > 0 {
		cols := s.SampleRows[0].Keys()
		b.WriteString("\n[SAMPLE ROWS]\n| ")
		b.WriteString(strings.Join(cols, " | "))
		b.WriteString(" |\n|")
		b.WriteString(strings.Repeat(" --- |", len(cols)))
		b.WriteString("\n")
		for _, row := range s.SampleRows {
			b.WriteString("| ")
			for i, c := range cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := row.Get(c)
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func writeTop(b *strings.Builder, title string, rows []KeyUnits) {
	if len(rows) == 0 {
		return
	}
	b.WriteString("\n[" + title + "]\n")
	for i, kv := range rows {
		b.WriteString(fmt.Sprintf("%d. %s: %s units\n", i+1, safeVal(safeName(kv.Key)), humanize.Comma(int64(kv.Units))))
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(blank)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
