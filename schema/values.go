package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
)

// NullLiteral is how a query string spells null
const NullLiteral = "null"

var errNull = errors.New("must not be null")

// decode checks a value produced by a JSON decoder. Numbers may arrive as
// float64 or json.Number.
func (f Field) decode(v any) (any, error) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, errNull
	}

	switch f.Kind {
	case Int:
		switch n := v.(type) {
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %s", n)
			}
			return i, nil
		case float64:
			if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
				return nil, fmt.Errorf("expected an integer, got %v", n)
			}
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case Float:
		switch n := v.(type) {
		case json.Number:
			x, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("expected a number, got %s", n)
			}
			return x, nil
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case JSON:
		return v, nil
	}
	return nil, fmt.Errorf("expected %s, got %T", f.Kind, v)
}

// parse converts a query string value
func (f Field) parse(raw string) (any, error) {
	if raw == NullLiteral && f.Nullable {
		return nil, nil
	}

	switch f.Kind {
	case Int:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return i, nil
	case Float:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return x, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a boolean, got %q", raw)
		}
		return b, nil
	case JSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return raw, nil
		}
		return v, nil
	}
	return raw, nil
}

// Filter coerces one query-string filter whose values are strings
func (s *Schema) Filter(raw records.Record) (records.Record, []fault.Issue) {
	var issues []fault.Issue
	out := make(records.Record, len(raw))

	for _, key := range raw.Fields() {
		f, ok := s.fields[key]
		if !ok {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: "unknown field"})
			continue
		}
		str, ok := raw[key].(string)
		if !ok {
			v, err := f.decode(raw[key])
			if err != nil {
				issues = append(issues, fault.Issue{Path: []any{key}, Message: err.Error()})
				continue
			}
			out[key] = v
			continue
		}
		v, err := f.parse(str)
		if err != nil {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: err.Error()})
			continue
		}
		out[key] = v
	}
	return out, issues
}

// Filters coerces every expanded filter and fails on the first filter
// with issues.
func (s *Schema) Filters(code string, raw []records.Record) ([]records.Record, error) {
	out := make([]records.Record, len(raw))
	for i, f := range raw {
		rec, issues := s.Filter(f)
		if len(issues) > 0 {
			return nil, fault.Unprocessable(code, issues)
		}
		out[i] = rec
	}
	return out, nil
}
