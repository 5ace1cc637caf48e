package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// AnalyzeXLSX reads one sheet of a workbook and analyzes it as if it were
// the equivalent CSV text. With an empty sheetName the 1-based sheetIndex
// selects the sheet; values <= 0 select the first one.
func AnalyzeXLSX(path string, opt Options, sheetName string, sheetIndex int) (*Report, error) {
	text, err := XLSXText(path, sheetName, sheetIndex)
	if err != nil {
		return nil, err
	}
	return Analyze(filepath.Base(path), text, opt), nil
}

// XLSXText renders a sheet as comma separated lines. Rows are padded to the
// header width, quote characters are dropped and cells containing a comma are
// wrapped in quotes so the row parser keeps them whole.
func XLSXText(path, sheetName string, sheetIndex int) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook '%s' has no sheets", filepath.Base(path))
	}
	target := ""
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, sheetName) {
				target = s
				break
			}
		}
		if target == "" {
			return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := sheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
		}
		target = sheets[idx-1]
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", target, err)
	}
	var b strings.Builder
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		// GetRows drops trailing empty cells
		for len(row) < width {
			row = append(row, "")
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			cell = strings.ReplaceAll(strings.ReplaceAll(cell, "\n", " "), `"`, "")
			if strings.Contains(cell, ",") {
				b.WriteByte('"')
				b.WriteString(cell)
				b.WriteByte('"')
				continue
			}
			b.WriteString(cell)
		}
	}
	return b.String(), nil
}
