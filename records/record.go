package records

import (
	"sort"

	"github.com/dwidge/table-api/sietch"
)

// Envelope fields carried by every row
const (
	FieldID        = "id"
	FieldAuthorID  = "authorId"
	FieldCompanyID = "companyId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeletedAt = "deletedAt"
)

// Record is a row-like map of field name to value. A present key holding
// nil means an explicit null; an absent key means unspecified.
type Record map[string]any

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

func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Null reports whether field is absent or holds nil
func (r Record) Null(field string) bool {
	return r[field] == nil
}

// Int returns field as an integer when it holds an integral number
func (r Record) Int(field string) (int64, bool) {
	return sietch.AsInt64(r[field])
}

// Fields returns the keys in sorted order
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r Record) row() sietch.Row {
	return sietch.Row(r)
}

func fromRows(rows []sietch.Row) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = Record(row)
	}
	return out
}

func ptrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
