package records

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dwidge/table-api/sietch"
)

var ErrCyclicDependency = errors.New("cyclic dependency")

// Schedule orders items so that every item comes after the items it
// references through refs, matched against their key field. Items with no
// relation keep their input order. Self references and references to keys
// outside the batch are ignored. It returns positions into items.
func Schedule(items []Record, key string, refs []string) ([]int, error) {
	deps := dependencies(items, key, refs)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(items))
	order := make([]int, 0, len(items))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: item %d", ErrCyclicDependency, i)
		}
		state[i] = visiting
		for _, j := range deps[i] {
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		order = append(order, i)
		return nil
	}

	for i := range items {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Levels groups items so that each group only references items of earlier
// groups. Members of a group are independent and listed in input order.
func Levels(items []Record, key string, refs []string) ([][]int, error) {
	order, err := Schedule(items, key, refs)
	if err != nil {
		return nil, err
	}
	deps := dependencies(items, key, refs)

	level := make([]int, len(items))
	depth := 0
	for _, i := range order {
		for _, j := range deps[i] {
			if level[j]+1 > level[i] {
				level[i] = level[j] + 1
			}
		}
		if level[i]+1 > depth {
			depth = level[i] + 1
		}
	}

	groups := make([][]int, depth)
	for i := range items {
		groups[level[i]] = append(groups[level[i]], i)
	}
	return groups, nil
}

func dependencies(items []Record, key string, refs []string) [][]int {
	byKey := make(map[string][]int)
	for i, item := range items {
		if k, ok := keyOf(item[key]); ok {
			byKey[k] = append(byKey[k], i)
		}
	}

	deps := make([][]int, len(items))
	for i, item := range items {
		seen := make(map[int]bool)
		for _, ref := range refs {
			k, ok := keyOf(item[ref])
			if !ok {
				continue
			}
			for _, j := range byKey[k] {
				if j != i && !seen[j] {
					seen[j] = true
					deps[i] = append(deps[i], j)
				}
			}
		}
		sort.Ints(deps[i])
	}
	return deps
}

// keyOf normalizes a key value so 7, int64(7) and 7.0 match
func keyOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if n, ok := sietch.AsInt64(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	if s, ok := v.(string); ok {
		return "s:" + s, true
	}
	return fmt.Sprintf("%T:%v", v, v), true
}
