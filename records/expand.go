package records

import (
	"errors"
	"fmt"
)

var ErrLimitExceeded = errors.New("combination limit exceeded")

// Candidate lists the values one field may take in a query
type Candidate struct {
	Field  string
	Values []any
}

// Expand produces the cartesian product of the candidates as records, the
// last candidate varying fastest. An empty candidate list yields a single
// empty record; a candidate with no values yields none. It fails once the
// product would grow past limit.
func Expand(candidates []Candidate, limit int) ([]Record, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit %d", ErrLimitExceeded, limit)
	}
	if len(candidates) == 0 {
		return []Record{{}}, nil
	}

	var out []Record
	var walk func(current Record, depth int) error
	walk = func(current Record, depth int) error {
		c := candidates[depth]
		last := depth == len(candidates)-1
		for _, v := range c.Values {
			next := current.Clone()
			next[c.Field] = v
			if !last {
				if err := walk(next, depth+1); err != nil {
					return err
				}
				continue
			}
			if len(out) == limit {
				return fmt.Errorf("%w: more than %d filters", ErrLimitExceeded, limit)
			}
			out = append(out, next)
		}
		return nil
	}

	if err := walk(Record{}, 0); err != nil {
		return nil, err
	}
	return out, nil
}
