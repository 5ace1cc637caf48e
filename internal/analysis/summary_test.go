package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(supplier, customer, category string, units int) Record {
	return Record{
		Fields: map[string]string{
			KeySupplierID: supplier,
			KeyCustomerID: customer,
			KeyCategory:   category,
		},
		Number: units,
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Rows)
	assert.Equal(t, 0, s.TotalUnits)
	assert.Equal(t, UniqueCounts{}, s.Unique)
	assert.Nil(t, s.DateRange.Min)
	assert.Nil(t, s.DateRange.Max)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"rows": 0,
		"total_units": 0,
		"unique": {"suppliers": 0, "customers": 0, "categories": 0},
		"date_range": {"min": null, "max": null},
		"top_suppliers": [],
		"top_customers": [],
		"top_categories": [],
		"sample_rows": []
	}`, string(b))
}

func TestSummarize_TopCategoriesOrdering(t *testing.T) {
	records := []Record{
		rec("S1", "C1", "A", 10),
		rec("S2", "C1", "B", 30),
		rec("S1", "C2", "A", 5),
	}
	s := Summarize(records)
	assert.Equal(t, []KeyUnits{{Key: "B", Units: 30}, {Key: "A", Units: 15}}, s.TopCategories)
	assert.Equal(t, 45, s.TotalUnits)
	assert.Equal(t, UniqueCounts{Suppliers: 2, Customers: 2, Categories: 2}, s.Unique)
}

func TestTopN_TiesKeepEncounterOrder(t *testing.T) {
	records := []Record{
		rec("S1", "", "X", 5),
		rec("S2", "", "Y", 5),
		rec("S3", "", "Z", 9),
		rec("S4", "", "W", 5),
	}
	got := TopN(records, KeyCategory, 3)
	assert.Equal(t, []KeyUnits{{"Z", 9}, {"X", 5}, {"Y", 5}}, got)
}

func TestTopN_TruncatesToFive(t *testing.T) {
	var records []Record
	for i := 0; i < 8; i++ {
		records = append(records, rec(fmt.Sprintf("S%d", i), "C", "Med", i))
	}
	s := Summarize(records)
	require.Len(t, s.TopSuppliers, 5)
	assert.Equal(t, "S7", s.TopSuppliers[0].Key)
	assert.Equal(t, "S3", s.TopSuppliers[4].Key)
	assert.Equal(t, []KeyUnits{{Key: "C", Units: 28}}, s.TopCustomers)
}

func TestSummarize_MissingFieldsCountAsOneValue(t *testing.T) {
	records := []Record{
		{Fields: map[string]string{KeySupplierID: "S1"}, Number: 1},
		{Fields: map[string]string{KeySupplierID: "S2", KeyCustomerID: ""}, Number: 2},
	}
	s := Summarize(records)
	assert.Equal(t, 1, s.Unique.Customers)
	assert.Equal(t, 1, s.Unique.Categories)
	assert.Equal(t, []KeyUnits{{Key: "", Units: 3}}, s.TopCustomers)
}

func TestSummarize_DateRange(t *testing.T) {
	text := strings.Join([]string{
		header,
		"S1,C1,Med,1,20240315",
		"S1,C1,Med,1,2024031",
		"S2,C1,Med,1,20231201",
		"S3,C1,Med,1,20240102",
	}, "\n")
	s := Summarize(Parse(text))
	require.NotNil(t, s.DateRange.Min)
	require.NotNil(t, s.DateRange.Max)
	assert.Equal(t, "2023-12-01", *s.DateRange.Min)
	assert.Equal(t, "2024-03-15", *s.DateRange.Max)
}

func TestSummarize_SampleRows(t *testing.T) {
	for _, n := range []int{0, 1, 5, 6, 40} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			records := make([]Record, n)
			for i := range records {
				records[i] = rec(fmt.Sprintf("S%d", i), "C", "Med", 1)
			}
			s := Summarize(records)
			assert.LessOrEqual(t, len(s.SampleRows), 5)
			if n <= 5 {
				assert.Equal(t, records, s.SampleRows)
			} else {
				assert.Equal(t, records[:5], s.SampleRows)
			}
		})
	}
}

func TestSummarize_IdentityFilterIsIdempotent(t *testing.T) {
	text := strings.Join([]string{
		header,
		"S1,C1,Med,4,20240101",
		"S2,C2,Lab,7,20240202",
		"S1,C3,Med,abc,bad",
	}, "\n")
	records := Parse(text)
	before := Summarize(records)
	after := Summarize(Filter{}.Apply(records))
	assert.Equal(t, before, after)
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	records := []Record{rec("S2", "C", "B", 1), rec("S1", "C", "A", 9)}
	_ = Summarize(records)
	assert.Equal(t, "S2", records[0].SupplierID())
	assert.Equal(t, "S1", records[1].SupplierID())
}
