package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
)

// Sheet names written by WriteXLSX, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetSuppliers  = "Top Suppliers"
	SheetCustomers  = "Top Customers"
	SheetCategories = "Top Categories"
	SheetFlows      = "Flows"
	SheetMonthly    = "Monthly"
	SheetSamples    = "Samples"
)

// WriteXLSX writes the report as a workbook with one sheet per view.
func WriteXLSX(path string, rep *analysis.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	s := rep.Summary
	dateMin, dateMax := "", ""
	if s.DateRange.Min != nil {
		dateMin = *s.DateRange.Min
	}
	if s.DateRange.Max != nil {
		dateMax = *s.DateRange.Max
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"File", rep.Name},
		{"Filter", rep.Filter},
		{"Parsed rows", rep.Parsed},
		{"Rows", s.Rows},
		{"Total units", s.TotalUnits},
		{"Unique suppliers", s.Unique.Suppliers},
		{"Unique customers", s.Unique.Customers},
		{"Unique categories", s.Unique.Categories},
		{"First delivery", dateMin},
		{"Last delivery", dateMax},
		{"Undated rows", rep.Quality.Undated},
		{"Zero unit rows", rep.Quality.ZeroUnits},
		{"Skipped lines", rep.Quality.SkippedLines},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	for _, top := range []struct {
		sheet string
		label string
		rows  []analysis.KeyUnits
	}{
		{SheetSuppliers, "SupplierID", s.TopSuppliers},
		{SheetCustomers, "CustomerID", s.TopCustomers},
		{SheetCategories, "Category", s.TopCategories},
	} {
		rows := [][]any{{"Rank", top.label, "Units"}}
		for i, ku := range top.rows {
			rows = append(rows, []any{i + 1, ku.Key, ku.Units})
		}
		if err := addSheet(f, top.sheet, rows); err != nil {
			return err
		}
	}

	flows := [][]any{{"SupplierID", "CustomerID", "Units", "Shipments"}}
	for _, fl := range rep.Network.Flows {
		flows = append(flows, []any{fl.Supplier, fl.Customer, fl.Units, fl.Shipments})
	}
	if err := addSheet(f, SheetFlows, flows); err != nil {
		return err
	}

	monthly := [][]any{{"Month", "Units", "Shipments"}}
	for _, m := range rep.Trend {
		monthly = append(monthly, []any{m.Month, m.Units, m.Shipments})
	}
	if err := addSheet(f, SheetMonthly, monthly); err != nil {
		return err
	}

	samples := [][]any{toAny(rep.Headers)}
	for _, r := range s.SampleRows {
		// Keys carry the SupplierID rename of column 0; Headers stay the labels
		keys := r.Keys()
		row := make([]any, len(keys))
		for i, k := range keys {
			row[i] = r.Get(k)
		}
		samples = append(samples, row)
	}
	if err := addSheet(f, SheetSamples, samples); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode xlsx: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
