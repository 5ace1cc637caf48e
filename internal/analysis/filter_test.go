package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filterFixture = strings.Join([]string{
	header,
	"S1,C1,Med,4,20240101",
	"S2,C2,Lab,7,20240215",
	"S1,C2,Lab,2,20240301",
	"S3,C1,Med,9,",
}, "\n")

func day(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func supplierIDs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.SupplierID()
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	records := Parse(filterFixture)
	require.Len(t, records, 4)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "identity", filter: Filter{}, want: []string{"S1", "S2", "S1", "S3"}},
		{name: "supplier", filter: Filter{Suppliers: []string{"S1"}}, want: []string{"S1", "S1"}},
		{name: "customer and category", filter: Filter{Customers: []string{"C2"}, Categories: []string{"Lab"}}, want: []string{"S2", "S1"}},
		{name: "from inclusive", filter: Filter{From: day("2024-02-15")}, want: []string{"S2", "S1"}},
		{name: "to inclusive", filter: Filter{To: day("20240215")}, want: []string{"S1", "S2"}},
		{name: "window excludes undated", filter: Filter{From: day("2023-01-01"), To: day("2025-01-01")}, want: []string{"S1", "S2", "S1"}},
		{name: "no match", filter: Filter{Suppliers: []string{"nobody"}}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(records)
			assert.Equal(t, tt.want, supplierIDs(got))
		})
	}
	assert.Len(t, records, 4, "input must not be modified")
}

func TestFilter_IsZeroAndString(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.Equal(t, "(none)", Filter{}.String())

	f := Filter{Suppliers: []string{"S1", "S2"}, From: day("2024-01-01")}
	assert.False(t, f.IsZero())
	assert.Equal(t, "supplier=S1|S2, from=2024-01-01", f.String())
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDay("20240115")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDay("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseDay("15/01/2024")
	assert.Error(t, err)
}
