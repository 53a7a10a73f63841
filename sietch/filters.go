package sietch

import "fmt"

const (
	OpEq      = "="
	OpNe      = "!="
	OpGt      = ">"
	OpGte     = ">="
	OpLt      = "<"
	OpLte     = "<="
	OpIsNull  = "IS NULL"
	OpNotNull = "IS NOT NULL"
)

var validOperators = map[string]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIsNull: true, OpNotNull: true,
}

// Condition represents a condition to filter queries
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Filter groups conditions. Conditions and All members must all match;
// when Any is non-empty at least one of its members must match as well.
type Filter struct {
	Conditions []Condition
	Any        []Filter
	All        []Filter
}

// Eq matches field equal to v. A nil v matches NULL.
func Eq(field string, v any) Condition {
	if v == nil {
		return IsNull(field)
	}
	return Condition{Field: field, Operator: OpEq, Value: v}
}

func Gte(field string, v any) Condition {
	return Condition{Field: field, Operator: OpGte, Value: v}
}

func IsNull(field string) Condition {
	return Condition{Field: field, Operator: OpIsNull}
}

func NotNull(field string) Condition {
	return Condition{Field: field, Operator: OpNotNull}
}

// Match builds a filter requiring every column of row to equal its value
func Match(row Row, fields []string) Filter {
	f := Filter{}
	for _, field := range fields {
		f.Conditions = append(f.Conditions, Eq(field, row[field]))
	}
	return f
}

// IsEmpty reports whether the filter constrains nothing
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	if len(f.Conditions) > 0 || len(f.Any) > 0 {
		return false
	}
	for i := range f.All {
		if !f.All[i].IsEmpty() {
			return false
		}
	}
	return true
}

// Fields returns every column referenced by the filter
func (f *Filter) Fields() []string {
	if f == nil {
		return nil
	}
	var fields []string
	for _, c := range f.Conditions {
		fields = append(fields, c.Field)
	}
	for i := range f.Any {
		fields = append(fields, f.Any[i].Fields()...)
	}
	for i := range f.All {
		fields = append(fields, f.All[i].Fields()...)
	}
	return fields
}

func (f *Filter) validate() error {
	if f == nil {
		return nil
	}
	for _, c := range f.Conditions {
		if !validOperators[c.Operator] {
			return fmt.Errorf("unsupported operator %q on %s", c.Operator, c.Field)
		}
	}
	for i := range f.Any {
		if err := f.Any[i].validate(); err != nil {
			return err
		}
	}
	for i := range f.All {
		if err := f.All[i].validate(); err != nil {
			return err
		}
	}
	return nil
}
