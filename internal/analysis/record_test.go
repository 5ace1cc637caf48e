package analysis

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "SupplierID,CustomerID,Category,Number,Deliverdate"

func TestParse_TooFewLines(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "  \n\t "},
		{name: "header only", text: "OnlyHeaderLine"},
		{name: "header with trailing newline", text: header + "\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			require.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestParse_FirstColumnIsAlwaysSupplierID(t *testing.T) {
	// Column 0 is keyed SupplierID whatever its header says.
	records := Parse("VendorCode,CustomerID,Category,Number,Deliverdate\nV1,C1,Med,5,20240101")
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "V1", r.SupplierID())
	assert.Equal(t, "C1", r.CustomerID())
	assert.Equal(t, "Med", r.Category())
	assert.Equal(t, 5, r.Number)
	require.True(t, r.HasDate)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), r.ParsedDate)
	_, hasVendor := r.Fields["VendorCode"]
	assert.False(t, hasVendor)
	assert.Len(t, r.Fields, 5)
	assert.Equal(t, []string{"SupplierID", "CustomerID", "Category", "Number", "Deliverdate"}, r.Keys())
}

func TestParse_NumberCoercion(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"5", 5},
		{"abc", 0},
		{"", 0},
		{"12abc", 12},
		{"3.7", 3},
		{"-4", -4},
		{"+8", 8},
		{"-", 0},
		{"99999999999999999999999", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			records := Parse(header + "\nS1,C1,Med," + tt.raw + ",20240101")
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0].Number)
		})
	}
}

func TestParse_NumberMissingColumn(t *testing.T) {
	records := Parse("SupplierID,CustomerID\nS1,C1")
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Number)
	assert.False(t, records[0].HasDate)
}

func TestParse_Deliverdate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantSet bool
		want    time.Time
	}{
		{name: "valid", raw: "20240115", wantSet: true, want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "seven chars", raw: "2024011"},
		{name: "nine chars", raw: "202401150"},
		{name: "empty", raw: ""},
		{name: "non numeric", raw: "2024ab01"},
		{name: "month overflow normalizes", raw: "20241301", wantSet: true, want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Parse(header + "\nS1,C1,Med,1," + tt.raw)
			require.Len(t, records, 1)
			r := records[0]
			assert.Equal(t, tt.raw, r.Deliverdate())
			assert.Equal(t, tt.wantSet, r.HasDate)
			if tt.wantSet {
				assert.Equal(t, tt.want, r.ParsedDate)
			}
		})
	}
}

func TestParse_QuotedFields(t *testing.T) {
	text := strings.Join([]string{
		`"SupplierID","CustomerID","Category","Number","Deliverdate"`,
		`S1,"Clinic, North","Med",7,"20240301"`,
	}, "\n")
	res := ParseDetailed(text)
	assert.Equal(t, []string{"SupplierID", "CustomerID", "Category", "Number", "Deliverdate"}, res.Headers)
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, "Clinic, North", r.CustomerID())
	assert.Equal(t, "Med", r.Category())
	assert.Equal(t, 7, r.Number)
	assert.True(t, r.HasDate)
}

func TestParse_EscapedQuotesAreNotSupported(t *testing.T) {
	// The scanner toggles on every quote, so "" does not escape.
	records := Parse("SupplierID,Note\n" + `S1,"say ""hi"", ok"`)
	require.Len(t, records, 1)
	assert.Equal(t, `say ""hi"", ok`, records[0].Get("Note"))
}

func TestParse_ShortLinesSkipped(t *testing.T) {
	text := strings.Join([]string{
		header,
		"S1,C1,Med,5,20240101",
		"S2,C2",
		"",
		"S3,C3,Lab,2,20240102,extra",
	}, "\n")
	res := ParseDetailed(text)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "S1", res.Records[0].SupplierID())
	assert.Equal(t, "S3", res.Records[1].SupplierID())
	assert.Len(t, res.Records[1].Fields, 5)
}

func TestParse_CRLFAndWhitespace(t *testing.T) {
	text := "  " + header + "\r\n S1 , C1 ,Med, 5 ,20240101\r\n"
	records := Parse(text)
	require.Len(t, records, 1)
	assert.Equal(t, "S1", records[0].SupplierID())
	assert.Equal(t, "C1", records[0].CustomerID())
	assert.Equal(t, 5, records[0].Number)
	assert.True(t, records[0].HasDate)
}

func TestParse_PreservesOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	ids := []string{"Z", "A", "M", "B"}
	for _, id := range ids {
		b.WriteString("\n" + id + ",C,Med,1,20240101")
	}
	records := Parse(b.String())
	require.Len(t, records, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, records[i].SupplierID())
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	records := Parse(header + "\nS1,C1,Med,abc,20240115\nS2,C2,Lab,3,bad")
	require.Len(t, records, 2)

	b, err := json.Marshal(records[0])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "S1", got["SupplierID"])
	assert.Equal(t, float64(0), got["Number"])
	assert.Equal(t, "2024-01-15", got["parsedDate"])
	assert.Equal(t, "20240115", got["Deliverdate"])

	b, err = json.Marshal(records[1])
	require.NoError(t, err)
	got = map[string]any{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.NotContains(t, got, "parsedDate")
	assert.Equal(t, float64(3), got["Number"])
}
