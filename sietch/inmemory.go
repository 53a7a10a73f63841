package sietch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store that enforces the unique and foreign key
// rules of its TableDef the way a relational database would
type MemoryStore struct {
	def    *TableDef
	mu     sync.RWMutex
	data   map[int64]Row
	order  []int64
	refs   map[string]Existence
	logger QueryLogger
}

type MemoryOption func(*MemoryStore)

// WithReference makes column a foreign key into target. Columns that
// reference the store's own table are wired automatically.
func WithReference(column string, target Existence) MemoryOption {
	return func(s *MemoryStore) {
		s.refs[column] = target
	}
}

func WithMemoryLogger(logger QueryLogger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

func NewMemoryStore(def *TableDef, opts ...MemoryOption) (*MemoryStore, error) {
	if def == nil {
		return nil, fmt.Errorf("table definition cannot be nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	s := &MemoryStore{
		def:    def,
		data:   make(map[int64]Row),
		refs:   make(map[string]Existence),
		logger: NewNoOpLogger(),
	}
	for _, fk := range def.ForeignKeys() {
		if fk.References == def.Name {
			s.refs[fk.Name] = s
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	for col := range s.refs {
		if _, ok := def.Column(col); !ok {
			return nil, fmt.Errorf("reference: %w: %s.%s", ErrUnknownColumn, def.Name, col)
		}
	}
	return s, nil
}

func (r *MemoryStore) Name() string {
	return r.def.Name
}

func (r *MemoryStore) Find(ctx context.Context, q *Query) (results []Row, err error) {
	start := time.Now()
	defer func() { logOperation(r.logger, ctx, "find", r.def.Name, start, err) }()

	if q == nil {
		q = &Query{}
	}
	if err := q.Filter.validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	for _, id := range r.order {
		row := r.data[id]
		if q.Filter == nil || matchesFilter(row, q.Filter) {
			results = append(results, row.Clone())
		}
	}
	r.mu.RUnlock()

	if len(q.Order) > 0 {
		sort.SliceStable(results, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(results[i][o.Field], results[j][o.Field])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(results) {
			return nil, nil
		}
		results = results[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(results) {
		results = results[:q.Limit]
	}
	return results, nil
}

func (r *MemoryStore) Count(ctx context.Context, filter *Filter) (n int64, err error) {
	start := time.Now()
	defer func() { logOperation(r.logger, ctx, "count", r.def.Name, start, err) }()

	if err := filter.validate(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.data {
		if filter == nil || matchesFilter(row, filter) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryStore) Get(_ context.Context, id int64) (Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, exists := r.data[id]
	if !exists {
		return nil, ErrItemNotFound
	}
	return row.Clone(), nil
}

func (r *MemoryStore) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.data[id]
	return exists, nil
}

func (r *MemoryStore) Create(ctx context.Context, row Row) (err error) {
	start := time.Now()
	defer func() { logOperation(r.logger, ctx, "create", r.def.Name, start, err) }()

	if err := r.checkColumns(row); err != nil {
		return err
	}
	id, ok := AsInt64(row["id"])
	if !ok {
		return &ConstraintError{Kind: ConstraintNotNull, Table: r.def.Name, Constraint: "id", Columns: []string{"id"}}
	}
	if err := r.checkNotNull(row); err != nil {
		return err
	}
	if err := r.checkReferences(ctx, id, row); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(row, nil); err != nil {
		return err
	}
	r.data[id] = row.Clone()
	r.order = append(r.order, id)
	return nil
}

func (r *MemoryStore) Update(ctx context.Context, id int64, changes Row) error {
	return r.UpdateWhere(ctx, id, nil, changes)
}

// UpdateWhere updates the row identified by id only while it also matches
// guard. ErrNoUpdateItem reports that no row qualified.
func (r *MemoryStore) UpdateWhere(ctx context.Context, id int64, guard *Filter, changes Row) (err error) {
	start := time.Now()
	defer func() { logOperation(r.logger, ctx, "update", r.def.Name, start, err) }()

	if err := guard.validate(); err != nil {
		return err
	}
	if err := r.checkColumns(changes); err != nil {
		return err
	}
	if err := r.checkReferences(ctx, id, changes); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.data[id]
	if !exists {
		return ErrNoUpdateItem
	}
	if guard != nil && !matchesFilter(current, guard) {
		return ErrNoUpdateItem
	}
	next := current.Clone()
	for k, v := range changes {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	if err := r.checkNotNull(next); err != nil {
		return err
	}
	if err := r.checkUnique(next, &id); err != nil {
		return err
	}
	r.data[id] = next
	return nil
}

func (r *MemoryStore) checkColumns(row Row) error {
	for key := range row {
		if _, ok := r.def.Column(key); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.def.Name, key)
		}
	}
	return nil
}

func (r *MemoryStore) checkNotNull(row Row) error {
	for _, col := range r.def.Columns {
		if !col.NotNull || col.PrimaryKey || col.DefaultValue != "" {
			continue
		}
		if v, ok := row[col.Name]; !ok || v == nil {
			return &ConstraintError{Kind: ConstraintNotNull, Table: r.def.Name, Constraint: col.Name, Columns: []string{col.Name}}
		}
	}
	return nil
}

// checkReferences checks every referenced row. A self reference to the row
// being written (id) always holds, Postgres checks it after the insert.
func (r *MemoryStore) checkReferences(ctx context.Context, id int64, row Row) error {
	for col, target := range r.refs {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		ref, ok := AsInt64(v)
		if ok && ref == id && target == Existence(r) {
			continue
		}
		exists := false
		if ok {
			var err error
			if exists, err = target.Exists(ctx, ref); err != nil {
				return err
			}
		}
		if !exists {
			return &ConstraintError{
				Kind:       ConstraintForeignKey,
				Table:      r.def.Name,
				Constraint: r.def.Name + "_" + col + "_fkey",
				Columns:    []string{col},
			}
		}
	}
	return nil
}

// checkUnique must be called with the write lock held
func (r *MemoryStore) checkUnique(row Row, self *int64) error {
	for _, set := range r.def.UniqueSets() {
		if hasNull(row, set.Columns) {
			continue
		}
		for id, other := range r.data {
			if self != nil && id == *self {
				continue
			}
			if sameValues(row, other, set.Columns) {
				return &ConstraintError{
					Kind:       ConstraintUnique,
					Table:      r.def.Name,
					Constraint: set.Name,
					Columns:    set.Columns,
				}
			}
		}
	}
	return nil
}

func hasNull(row Row, columns []string) bool {
	for _, col := range columns {
		if row[col] == nil {
			return true
		}
	}
	return false
}

func sameValues(a, b Row, columns []string) bool {
	for _, col := range columns {
		if !equal(a[col], b[col]) {
			return false
		}
	}
	return true
}

func matchesFilter(row Row, filter *Filter) bool {
	for _, c := range filter.Conditions {
		if !matchesCondition(row, c) {
			return false
		}
	}
	if len(filter.Any) > 0 {
		matched := false
		for i := range filter.Any {
			if matchesFilter(row, &filter.Any[i]) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for i := range filter.All {
		if !matchesFilter(row, &filter.All[i]) {
			return false
		}
	}
	return true
}

func matchesCondition(row Row, condition Condition) bool {
	value := row[condition.Field]

	switch condition.Operator {
	case OpIsNull:
		return value == nil
	case OpNotNull:
		return value != nil
	}
	if value == nil || condition.Value == nil {
		// SQL comparisons against NULL are never true
		return false
	}

	switch condition.Operator {
	case OpEq:
		return equal(value, condition.Value)
	case OpNe:
		return !equal(value, condition.Value)
	case OpGt:
		return compare(value, condition.Value) > 0
	case OpLt:
		return compare(value, condition.Value) < 0
	case OpGte:
		return compare(value, condition.Value) >= 0
	case OpLte:
		return compare(value, condition.Value) <= 0
	default:
		return false
	}
}

func equal(a, b any) bool {
	af, okA := toFloat64(a)
	bf, okB := toFloat64(b)
	if okA && okB {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) int {
	if a == nil || b == nil {
		// NULLs sort first
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	af, okA := toFloat64(a)
	bf, okB := toFloat64(b)
	if okA && okB {
		if af < bf {
			return -1
		} else if af > bf {
			return 1
		}
		return 0
	}

	// if they are not numeric, we try to compare them as strings
	as, okA := a.(string)
	bs, okB := b.(string)
	if okA && okB {
		if as < bs {
			return -1
		} else if as > bs {
			return 1
		}
		return 0
	}

	return 0 // fallback
}

// AsInt64 reads an integral value whatever numeric type decoding produced
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case uint64:
		if t <= 1<<63-1 {
			return int64(t), true
		}
		return 0, false
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case uint:
		if uint64(t) <= 1<<63-1 {
			return int64(t), true
		}
		return 0, false
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint32:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
