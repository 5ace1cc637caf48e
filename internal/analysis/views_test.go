package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var viewsFixture = strings.Join([]string{
	header,
	"S1,C1,Med,10,20240105",
	"S1,C1,Med,5,20240120",
	"S2,C1,Lab,30,20240203",
	"S1,C2,Med,1,bad",
	"S3,,,0,20240210",
	"S4",
}, "\n")

func TestBuildNetwork(t *testing.T) {
	records := Parse(viewsFixture)

	net := BuildNetwork(records, 0)
	assert.Equal(t, []Flow{
		{Supplier: "S2", Customer: "C1", Units: 30, Shipments: 1},
		{Supplier: "S1", Customer: "C1", Units: 15, Shipments: 2},
		{Supplier: "S1", Customer: "C2", Units: 1, Shipments: 1},
		{Supplier: "S3", Customer: "", Units: 0, Shipments: 1},
	}, net.Flows)
	assert.Equal(t, []string{"S2", "S1", "S3"}, net.Suppliers)
	assert.Equal(t, []string{"C1", "C2", ""}, net.Customers)

	top := BuildNetwork(records, 2)
	require.Len(t, top.Flows, 2)
	assert.Equal(t, []string{"S2", "S1"}, top.Suppliers)
	assert.Equal(t, []string{"C1"}, top.Customers)
}

func TestBuildNetwork_Empty(t *testing.T) {
	net := BuildNetwork(nil, 5)
	assert.NotNil(t, net.Flows)
	assert.Empty(t, net.Flows)
	assert.Empty(t, net.Suppliers)
}

func TestMonthlyUnits(t *testing.T) {
	got := MonthlyUnits(Parse(viewsFixture))
	assert.Equal(t, []MonthPoint{
		{Month: "2024-01", Units: 15, Shipments: 2},
		{Month: "2024-02", Units: 30, Shipments: 2},
	}, got)
	assert.Empty(t, MonthlyUnits(nil))
}

func TestAssess(t *testing.T) {
	res := ParseDetailed(viewsFixture)
	q := res.Quality()
	assert.Equal(t, Quality{
		Rows:            5,
		Undated:         1,
		ZeroUnits:       1,
		MissingCustomer: 1,
		MissingCategory: 1,
		SkippedLines:    1,
	}, q)
	assert.False(t, q.Clean())
	assert.True(t, Assess(nil).Clean())
}
