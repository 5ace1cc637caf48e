package analysis

import "sort"

const (
	topLimit    = 5
	sampleLimit = 5
)

// KeyUnits is one group of a top-N ranking.
type KeyUnits struct {
	Key   string `json:"key"`
	Units int    `json:"units"`
}

// UniqueCounts holds distinct-value counts for the identity columns.
type UniqueCounts struct {
	Suppliers  int `json:"suppliers"`
	Customers  int `json:"customers"`
	Categories int `json:"categories"`
}

// DateRange holds the earliest and latest delivery dates as YYYY-MM-DD;
// both are nil when no record carries a date.
type DateRange struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

// Summary is the aggregate view over a set of records.
type Summary struct {
	Rows          int          `json:"rows"`
	TotalUnits    int          `json:"total_units"`
	Unique        UniqueCounts `json:"unique"`
	DateRange     DateRange    `json:"date_range"`
	TopSuppliers  []KeyUnits   `json:"top_suppliers"`
	TopCustomers  []KeyUnits   `json:"top_customers"`
	TopCategories []KeyUnits   `json:"top_categories"`
	SampleRows    []Record     `json:"sample_rows"`
}

// Summarize aggregates records. An empty input yields a zeroed summary with
// empty lists.
func Summarize(records []Record) Summary {
	s := Summary{
		Rows:          len(records),
		TopSuppliers:  TopN(records, KeySupplierID, topLimit),
		TopCustomers:  TopN(records, KeyCustomerID, topLimit),
		TopCategories: TopN(records, KeyCategory, topLimit),
	}
	suppliers := map[string]struct{}{}
	customers := map[string]struct{}{}
	categories := map[string]struct{}{}
	var first, last *Record
	for i := range records {
		r := &records[i]
		s.TotalUnits += r.Number
		suppliers[r.SupplierID()] = struct{}{}
		customers[r.CustomerID()] = struct{}{}
		categories[r.Category()] = struct{}{}
		if !r.HasDate {
			continue
		}
		if first == nil || r.ParsedDate.Before(first.ParsedDate) {
			first = r
		}
		if last == nil || r.ParsedDate.After(last.ParsedDate) {
			last = r
		}
	}
	s.Unique.Suppliers = len(suppliers)
	s.Unique.Customers = len(customers)
	s.Unique.Categories = len(categories)
	if first != nil {
		lo := first.ParsedDate.Format(dayLayout)
		hi := last.ParsedDate.Format(dayLayout)
		s.DateRange = DateRange{Min: &lo, Max: &hi}
	}

	n := len(records)
	if n > sampleLimit {
		n = sampleLimit
	}
	s.SampleRows = make([]Record, n)
	copy(s.SampleRows, records[:n])
	return s
}

// TopN groups records by the value of field, sums Number per group and
// returns the n largest groups. Ties keep the order in which keys were first
// seen.
func TopN(records []Record, field string, n int) []KeyUnits {
	var order []string
	sums := map[string]int{}
	for _, r := range records {
		k := r.Get(field)
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += r.Number
	}
	out := make([]KeyUnits, len(order))
	for i, k := range order {
		out[i] = KeyUnits{Key: k, Units: sums[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Units > out[j].Units })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
