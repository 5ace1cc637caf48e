// Package export writes analysis reports to disk as Markdown, JSON or XLSX.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/medflow-cli/internal/analysis"
	"github.com/KaramelBytes/medflow-cli/internal/utils"
)

// Format is an output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat accepts markdown|md, json and xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format: %s (use markdown|json|xlsx)", s)
}

// FormatFromPath infers the format from a file extension, defaulting to Markdown.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	}
	return FormatMarkdown
}

// Ext returns the file extension used for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	}
	return ".md"
}

// Write dispatches to the writer for f.
func Write(path string, f Format, rep *analysis.Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(path, rep)
	case FormatXLSX:
		return WriteXLSX(path, rep)
	case FormatMarkdown:
		return WriteMarkdown(path, rep)
	}
	return fmt.Errorf("unsupported format: %s", f)
}

// WriteMarkdown writes the rendered report.
func WriteMarkdown(path string, rep *analysis.Report) error {
	return utils.SafeWriteFile(path, []byte(rep.Markdown()))
}

// WriteJSON writes any value as indented JSON.
func WriteJSON(path string, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, append(b, '\n'))
}
