package analysis

import "strings"

// Quality counts records that parsed but carry incomplete data.
type Quality struct {
	Rows            int `json:"rows"`
	Undated         int `json:"undated"`
	ZeroUnits       int `json:"zero_units"`
	MissingCustomer int `json:"missing_customer"`
	MissingCategory int `json:"missing_category"`
	SkippedLines    int `json:"skipped_lines"`
}

// Assess counts quality issues across records.
func Assess(records []Record) Quality {
	q := Quality{Rows: len(records)}
	for _, r := range records {
		if !r.HasDate {
			q.Undated++
		}
		if r.Number == 0 {
			q.ZeroUnits++
		}
		if strings.TrimSpace(r.CustomerID()) == "" {
			q.MissingCustomer++
		}
		if strings.TrimSpace(r.Category()) == "" {
			q.MissingCategory++
		}
	}
	return q
}

// Quality assesses the parsed records and includes the skipped-line count.
func (p ParseResult) Quality() Quality {
	q := Assess(p.Records)
	q.SkippedLines = p.Skipped
	return q
}

// Clean reports whether no issue was found.
func (q Quality) Clean() bool {
	return q.Undated == 0 && q.ZeroUnits == 0 && q.MissingCustomer == 0 &&
		q.MissingCategory == 0 && q.SkippedLines == 0
}
