package analysis

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known column keys of the MedFlow dataset.
const (
	KeySupplierID  = "SupplierID"
	KeyCustomerID  = "CustomerID"
	KeyCategory    = "Category"
	KeyNumber      = "Number"
	KeyDeliverdate = "Deliverdate"
)

// dayLayout is the calendar-date format used for parsedDate and date ranges.
const dayLayout = "2006-01-02"

// Record is one parsed row of the dataset.
type Record struct {
	// Fields holds every column keyed by its header text. Column 0 is always
	// stored under SupplierID, whatever its header says.
	Fields map[string]string
	// Number is the quantity coerced from the Number column (0 when invalid).
	Number int
	// ParsedDate is derived from an 8-character Deliverdate; HasDate reports
	// whether it was set.
	ParsedDate time.Time
	HasDate    bool

	keys []string
}

// Get returns the raw value stored under key, or "" when absent.
func (r Record) Get(key string) string { return r.Fields[key] }

func (r Record) SupplierID() string  { return r.Fields[KeySupplierID] }
func (r Record) CustomerID() string  { return r.Fields[KeyCustomerID] }
func (r Record) Category() string    { return r.Fields[KeyCategory] }
func (r Record) Deliverdate() string { return r.Fields[KeyDeliverdate] }

// Keys returns the record's columns in header order. Records built by hand
// fall back to sorted keys.
func (r Record) Keys() []string {
	if len(r.keys) > 0 {
		out := make([]string, len(r.keys))
		copy(out, r.keys)
		return out
	}
	out := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the record as a flat object: raw string fields, Number
// as an integer and parsedDate as YYYY-MM-DD when set.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[KeyNumber] = r.Number
	if r.HasDate {
		m["parsedDate"] = r.ParsedDate.Format(dayLayout)
	}
	return json.Marshal(m)
}

// ParseResult carries parsed records together with the header line and the
// number of data lines dropped for having too few fields.
type ParseResult struct {
	Headers []string
	Records []Record
	Skipped int
}

// Parse converts delimited text into records. It never fails: input with
// fewer than two lines yields no records and short lines are dropped.
func Parse(text string) []Record {
	return ParseDetailed(text).Records
}

// ParseDetailed is Parse plus the header line and a skipped-line count.
func ParseDetailed(text string) ParseResult {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return ParseResult{Records: []Record{}}
	}
	rawHeaders := strings.Split(lines[0], ",")
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = stripQuotes(strings.TrimSpace(h))
	}
	keys := make([]string, len(headers))
	copy(keys, headers)
	keys[0] = KeySupplierID

	res := ParseResult{Headers: headers, Records: make([]Record, 0, len(lines)-1)}
	for _, line := range lines[1:] {
		values := splitLine(line)
		if len(values) < len(headers) {
			res.Skipped++
			continue
		}
		rec := Record{Fields: make(map[string]string, len(keys)), keys: keys}
		for i, k := range keys {
			rec.Fields[k] = stripQuotes(values[i])
		}
		rec.Number = parseLeadingInt(rec.Fields[KeyNumber])
		if t, ok := parseDeliverdate(rec.Fields[KeyDeliverdate]); ok {
			rec.ParsedDate = t
			rec.HasDate = true
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// splitLine is a minimal quoted-field scanner. Quotes toggle the in-quote
// state and stay in the buffer; "" escapes and embedded newlines are not
// supported.
func splitLine(line string) []string {
	var fields []string
	var buf strings.Builder
	inQuote := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuote = !inQuote
			buf.WriteRune(ch)
		case ch == ',' && !inQuote:
			fields = append(fields, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteRune(ch)
		}
	}
	return append(fields, strings.TrimSpace(buf.String()))
}

// stripQuotes removes one leading and one trailing double quote.
func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

// parseLeadingInt reads an optional sign followed by digits and ignores the
// rest, returning 0 when no digits lead the value.
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func parseDeliverdate(s string) (time.Time, bool) {
	if len(s) != 8 {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(s[0:4])
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(s[4:6])
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(s[6:8])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}
