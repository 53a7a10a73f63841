package ginsrv

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
	"github.com/dwidge/table-api/schema"
	"github.com/dwidge/table-api/sietch"
)

// Reserved query keys start with OptionPrefix
const (
	OptionPrefix  = "_"
	OptionOffset  = "_offset"
	OptionLimit   = "_limit"
	OptionOrder   = "_order"
	OptionFrom    = "_from"
	OptionHistory = "_history"
)

// candidates turns the non-reserved query keys into expansion candidates,
// ordered by where each key first appears in rawQuery.
func candidates(rawQuery string, query url.Values) []records.Candidate {
	seen := make(map[string]bool, len(query))
	keys := make([]string, 0, len(query))
	add := func(key string) {
		if _, ok := query[key]; !ok || seen[key] || strings.HasPrefix(key, OptionPrefix) {
			return
		}
		seen[key] = true
		keys = append(keys, key)
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if key, err := url.QueryUnescape(key); err == nil {
			add(key)
		}
	}
	rest := make([]string, 0, len(query))
	for key := range query {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		add(key)
	}

	out := make([]records.Candidate, len(keys))
	for i, key := range keys {
		values := make([]any, len(query[key]))
		for j, v := range query[key] {
			values[j] = v
		}
		out[i] = records.Candidate{Field: key, Values: values}
	}
	return out
}

// listOptions reads the reserved keys. Unknown reserved keys are ignored.
func listOptions(query url.Values, s *schema.Schema) (records.ListOptions, error) {
	var (
		opts   records.ListOptions
		issues []fault.Issue
	)

	integer := func(key string) (int64, bool) {
		raw := query.Get(key)
		if raw == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			issues = append(issues, fault.Issue{Path: []any{key}, Message: "expected a non-negative integer"})
			return 0, false
		}
		return n, true
	}

	if n, ok := integer(OptionOffset); ok {
		opts.Offset = int(n)
	}
	if n, ok := integer(OptionLimit); ok {
		opts.Limit = int(n)
	}
	if n, ok := integer(OptionFrom); ok {
		opts.From = &n
	}
	if n, ok := integer(OptionHistory); ok {
		opts.History = &n
	}

	for _, raw := range query[OptionOrder] {
		for _, term := range strings.Split(raw, ",") {
			order, err := parseOrder(term, s)
			if err != "" {
				issues = append(issues, fault.Issue{Path: []any{OptionOrder}, Message: err})
				continue
			}
			opts.Order = append(opts.Order, order)
		}
	}

	if len(issues) > 0 {
		return opts, fault.Unprocessable(CodeListOptions, issues)
	}
	return opts, nil
}

// parseOrder reads "field", "field.asc" or "field.desc"
func parseOrder(term string, s *schema.Schema) (sietch.Order, string) {
	field, dir, _ := strings.Cut(strings.TrimSpace(term), ".")
	if _, ok := s.Field(field); !ok {
		return sietch.Order{}, "unknown field " + strconv.Quote(field)
	}
	switch strings.ToLower(dir) {
	case "", "asc":
		return sietch.Order{Field: field}, ""
	case "desc":
		return sietch.Order{Field: field, Desc: true}, ""
	default:
		return sietch.Order{}, "unknown direction " + strconv.Quote(dir)
	}
}
