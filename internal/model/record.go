package model

import "sort"

// Record is one structured item extracted from a listing page.
// Field names depend on the site profile (a quote carries text/author/tags,
// a book carries title/price/stock/rating). The crawler never inspects them.
type Record map[string]string

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the union of field names across records, sorted.
// Report writers use it to build table headers for schema-agnostic output.
func Columns(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
