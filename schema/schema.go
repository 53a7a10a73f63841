// Package schema turns untyped request input into typed records and
// reports every structural problem it finds as a located issue.
package schema

import (
	"fmt"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
)

// Kind is the type a field value must have
type Kind string

const (
	Int    Kind = "int"
	Float  Kind = "float"
	String Kind = "string"
	Bool   Kind = "bool"
	// JSON accepts any decoded JSON value
	JSON Kind = "json"
)

type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
	// Required fields must be present on items that carry no id
	Required bool
}

// Envelope returns the fields every record carries
func Envelope() []Field {
	return []Field{
		{Name: records.FieldID, Kind: Int, Nullable: true},
		{Name: records.FieldAuthorID, Kind: Int, Nullable: true},
		{Name: records.FieldCompanyID, Kind: Int, Nullable: true},
		{Name: records.FieldCreatedAt, Kind: Int, Nullable: true},
		{Name: records.FieldUpdatedAt, Kind: Int},
		{Name: records.FieldDeletedAt, Kind: Int, Nullable: true},
	}
}

type Schema struct {
	name   string
	fields map[string]Field
	names  []string
}

// New builds a schema from the envelope fields followed by fields
func New(name string, fields ...Field) (*Schema, error) {
	s := &Schema{name: name, fields: make(map[string]Field)}
	for _, f := range append(Envelope(), fields...) {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field without name", name)
		}
		if _, dup := s.fields[f.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %s", name, f.Name)
		}
		switch f.Kind {
		case Int, Float, String, Bool, JSON:
		default:
			return nil, fmt.Errorf("schema %s: field %s has unknown kind %q", name, f.Name, f.Kind)
		}
		s.fields[f.Name] = f
		s.names = append(s.names, f.Name)
	}
	return s, nil
}

func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the fields in declaration order
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.names))
	for i, n := range s.names {
		out[i] = s.fields[n]
	}
	return out
}

// Item checks one decoded JSON object. Presence, nullability and kinds are
// validated first, then values are coerced to their storage types. Field
// order in issues is deterministic.
func (s *Schema) Item(raw map[string]any) (records.Record, []fault.Issue) {
	var issues []fault.Issue
	out := make(records.Record, len(raw))
	failures := validate.ValidateMap(raw, s.rules(raw, records.Record(raw).Null(records.FieldID)))

	for _, key := range records.Record(raw).Fields() {
		f, ok := s.fields[key]
		if !ok {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: "unknown field"})
			continue
		}
		if failure, ok := failures[key]; ok {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: f.message(raw[key], failure)})
			continue
		}
		v, err := f.decode(raw[key])
		if err != nil {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: err.Error()})
			continue
		}
		out[key] = v
	}

	for _, name := range s.names {
		if _, present := raw[name]; present {
			continue
		}
		if failure, ok := failures[name]; ok {
			issues = append(issues, fault.Issue{Path: []any{name}, Message: s.fields[name].message(nil, failure)})
		}
	}

	return out, issues
}

// Items checks a batch, locating issues by item position. It fails with an
// Unprocessable fault.
func (s *Schema) Items(code string, raw []map[string]any) ([]records.Record, error) {
	var issues []fault.Issue
	out := make([]records.Record, len(raw))
	for i, item := range raw {
		if item == nil {
			issues = append(issues, fault.Issue{Path: []any{i}, Message: "expected an object"})
			continue
		}
		rec, errs := s.Item(item)
		issues = append(issues, fault.Prefix(errs, i)...)
		out[i] = rec
	}
	if len(issues) > 0 {
		return nil, fault.Unprocessable(code, issues)
	}
	return out, nil
}
