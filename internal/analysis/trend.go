package analysis

import "sort"

// MonthPoint is one bucket of the monthly delivery series.
type MonthPoint struct {
	Month     string `json:"month"` // YYYY-MM
	Units     int    `json:"units"`
	Shipments int    `json:"shipments"`
}

// MonthlyUnits buckets dated records by calendar month in ascending order.
// Undated records are left out.
func MonthlyUnits(records []Record) []MonthPoint {
	buckets := map[string]*MonthPoint{}
	for _, r := range records {
		if !r.HasDate {
			continue
		}
		key := r.ParsedDate.Format("2006-01")
		p := buckets[key]
		if p == nil {
			p = &MonthPoint{Month: key}
			buckets[key] = p
		}
		p.Units += r.Number
		p.Shipments++
	}
	out := make([]MonthPoint, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
