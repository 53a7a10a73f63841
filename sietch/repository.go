package sietch

import "context"

// Row is a single table row keyed by column name.
// A missing key means the column was not supplied, a nil value means NULL.
type Row map[string]any

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Order sorts query results by a column
type Order struct {
	Field string
	Desc  bool
}

// Query describes a paginated lookup. A zero Limit means no limit.
type Query struct {
	Filter *Filter
	Offset int
	Limit  int
	Order  []Order
}

// Existence reports whether a row with the given id exists
type Existence interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// ExistenceFunc adapts a function to Existence
type ExistenceFunc func(ctx context.Context, id int64) (bool, error)

func (f ExistenceFunc) Exists(ctx context.Context, id int64) (bool, error) {
	return f(ctx, id)
}

// Store defines the contract the record engine needs from a relational table.
// Constraint violations are reported as *ConstraintError values.
type Store interface {
	Existence

	Find(ctx context.Context, q *Query) ([]Row, error)
	Count(ctx context.Context, filter *Filter) (int64, error)

	// Get returns ErrItemNotFound when no row has the given id
	Get(ctx context.Context, id int64) (Row, error)

	Create(ctx context.Context, row Row) error

	// Update writes only the supplied columns of the row identified by id
	Update(ctx context.Context, id int64, changes Row) error

	// UpdateWhere is Update restricted to a row that still matches guard.
	// It returns ErrNoUpdateItem when the row is missing or fails guard.
	UpdateWhere(ctx context.Context, id int64, guard *Filter, changes Row) error

	// Name returns the table name
	Name() string
}

// Uncached is implemented by stores that keep a read cache in front of the
// authoritative table
type Uncached interface {
	GetUncached(ctx context.Context, id int64) (Row, error)
}

// GetAuthoritative reads id from the authoritative table, skipping any
// read cache store keeps
func GetAuthoritative(ctx context.Context, store Store, id int64) (Row, error) {
	if u, ok := store.(Uncached); ok {
		return u.GetUncached(ctx, id)
	}
	return store.Get(ctx, id)
}
