package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects a subset of records. Empty value lists match anything; From
// and To are inclusive calendar-day bounds on ParsedDate and exclude undated
// records whenever either one is set.
type Filter struct {
	Suppliers  []string
	Customers  []string
	Categories []string
	From       time.Time
	To         time.Time
}

// IsZero reports whether the filter is the identity filter.
func (f Filter) IsZero() bool {
	return len(f.Suppliers) == 0 && len(f.Customers) == 0 && len(f.Categories) == 0 &&
		f.From.IsZero() && f.To.IsZero()
}

// Match reports whether r passes every configured criterion.
func (f Filter) Match(r Record) bool {
	if !matchAny(f.Suppliers, r.SupplierID()) ||
		!matchAny(f.Customers, r.CustomerID()) ||
		!matchAny(f.Categories, r.Category()) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	if !r.HasDate {
		return false
	}
	day := truncateDay(r.ParsedDate)
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	return true
}

// Apply returns the matching records in their original order. The input slice
// is never modified.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// String renders the active criteria for report headers.
func (f Filter) String() string {
	if f.IsZero() {
		return "(none)"
	}
	var parts []string
	if len(f.Suppliers) > 0 {
		parts = append(parts, "supplier="+strings.Join(f.Suppliers, "|"))
	}
	if len(f.Customers) > 0 {
		parts = append(parts, "customer="+strings.Join(f.Customers, "|"))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, "category="+strings.Join(f.Categories, "|"))
	}
	if !f.From.IsZero() {
		parts = append(parts, "from="+f.From.Format(dayLayout))
	}
	if !f.To.IsZero() {
		parts = append(parts, "to="+f.To.Format(dayLayout))
	}
	return strings.Join(parts, ", ")
}

// ParseDay accepts YYYY-MM-DD or the dataset's YYYYMMDD token. An empty
// string yields the zero time.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{dayLayout, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or YYYYMMDD)", s)
}

func matchAny(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
