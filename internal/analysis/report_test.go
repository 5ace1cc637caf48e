package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Markdown(t *testing.T) {
	rep := Analyze("flows.csv", viewsFixture, DefaultOptions())
	assert.Equal(t, 5, rep.Parsed)
	assert.False(t, rep.Filtered)

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: flows.csv",
		"Rows: 5",
		"Total units: 46",
		"Unique: suppliers 3, customers 3, categories 3",
		"Delivery dates: 2024-01-05 to 2024-02-10",
		"[TOP SUPPLIERS]\n1. S2: 30 units\n2. S1: 16 units",
		"[TOP FLOWS]",
		"- S2 -> C1: 30 units in 1 shipments",
		"- S3 -> (blank): 0 units in 1 shipments",
		"[MONTHLY UNITS]\n- 2024-01: 15 (2 shipments)",
		"- skipped short lines: 1",
		"[SAMPLE ROWS]\n| SupplierID | CustomerID | Category | Number | Deliverdate |",
		"| S1 | C1 | Med | 10 | 20240105 |",
	} {
		assert.Contains(t, md, want)
	}
}

func TestAnalyze_Filtered(t *testing.T) {
	opt := DefaultOptions()
	opt.Filter = Filter{Suppliers: []string{"S1"}}
	rep := Analyze("flows.csv", viewsFixture, opt)

	assert.True(t, rep.Filtered)
	assert.Equal(t, 3, rep.Summary.Rows)
	assert.Equal(t, 16, rep.Summary.TotalUnits)
	assert.Equal(t, 5, rep.Parsed)
	assert.Contains(t, rep.Markdown(), "Filter: supplier=S1 (3 of 5 rows)")
}

func TestAnalyze_EmptyInput(t *testing.T) {
	rep := Analyze("", "", DefaultOptions())
	assert.Equal(t, 0, rep.Summary.Rows)
	md := rep.Markdown()
	assert.Contains(t, md, "Delivery dates: (none)")
	assert.Contains(t, md, "- no issues detected")
	assert.NotContains(t, md, "[SAMPLE ROWS]")

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"headers":[]`)
	assert.Contains(t, string(b), `"monthly":[]`)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "medflow.csv")
	require.NoError(t, os.WriteFile(p, []byte(viewsFixture), 0o644))

	rep, err := AnalyzeFile(p, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "medflow.csv", rep.Name)

	_, err = AnalyzeFile(filepath.Join(dir, "missing.csv"), DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReport_SummaryJSON(t *testing.T) {
	rep := Analyze("x.csv", viewsFixture, DefaultOptions())
	payload, err := rep.SummaryJSON()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, float64(5), got["rows"])
	assert.Equal(t, float64(46), got["total_units"])
	assert.Contains(t, payload, `"top_categories"`)
}
