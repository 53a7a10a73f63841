package records

import (
	"context"
	"time"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/observability"
	"github.com/dwidge/table-api/sietch"
	"go.uber.org/zap"
)

// DefaultLimit caps a page when the caller does not set one
const DefaultLimit = 1000

type ListOptions struct {
	Offset int
	Limit  int
	Order  []sietch.Order
	// From restricts rows to updatedAt >= From
	From *int64
	// History makes deleted rows visible. Zero shows all of them, a positive
	// value only those deleted at or after it.
	History *int64
}

type Page struct {
	Rows   []Record `json:"rows"`
	Count  int64    `json:"count"`
	Offset int      `json:"offset"`
}

// List returns the rows matching any of filters that auth may read.
// Filters are public shaped; an empty filter matches everything.
func (t *Table) List(ctx context.Context, filters []Record, auth *Auth, opts ListOptions) (page *Page, err error) {
	ctx, span := t.tracer.StartOperation(ctx, t.name, "list")
	start := time.Now()
	defer func() {
		observability.End(span, err)
		t.metrics.ObserveOperation(t.name, "list", err, time.Since(start))
	}()

	stored := make([]Record, len(filters))
	for i, f := range filters {
		stored[i] = t.mapping.ToStorage(f)
	}

	opts.Order = t.storageOrder(opts.Order)
	page, err = t.list(ctx, stored, auth, opts)
	if err != nil {
		return nil, err
	}
	for i, row := range page.Rows {
		page.Rows[i] = t.mapping.ToPublic(row)
	}
	return page, nil
}

// storageOrder renames public sort fields to their storage columns
func (t *Table) storageOrder(order []sietch.Order) []sietch.Order {
	out := make([]sietch.Order, 0, len(order))
	for _, o := range order {
		for field := range t.mapping.ToStorage(Record{o.Field: nil}) {
			out = append(out, sietch.Order{Field: field, Desc: o.Desc})
		}
	}
	return out
}

func (t *Table) list(ctx context.Context, filters []Record, auth *Auth, opts ListOptions) (*Page, error) {
	where, showDeleted := t.where(filters, auth, opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := t.store.Find(ctx, &sietch.Query{Filter: where, Offset: offset, Limit: limit, Order: opts.Order})
	if err != nil {
		return nil, fault.Service(CodeListFind, err)
	}
	count, err := t.store.Count(ctx, where)
	if err != nil {
		return nil, fault.Service(CodeListCount, err)
	}

	visible := make([]Record, 0, len(rows))
	for _, row := range fromRows(rows) {
		if t.canRead(row, auth) {
			visible = append(visible, row)
		}
	}

	if !showDeleted {
		for _, row := range visible {
			if row.Null(FieldDeletedAt) {
				continue
			}
			t.metrics.IncrementViolations(t.name)
			t.observe(ctx, EventConsistencyViolation, map[string]any{
				"id":        row[FieldID],
				"deletedAt": row[FieldDeletedAt],
			})
			t.log.Error("deleted row returned by non-history read", zap.Any("id", row[FieldID]))
			return nil, fault.Generic(CodeDeletedLeak,
				fault.WithMessage("storage returned a deleted row"),
				fault.WithData(map[string]any{"id": row[FieldID]}),
			)
		}
	}

	return &Page{Rows: visible, Count: count, Offset: offset}, nil
}

// where builds the storage filter and reports whether deleted rows may
// appear in the result
func (t *Table) where(filters []Record, auth *Auth, opts ListOptions) (*sietch.Filter, bool) {
	where := &sietch.Filter{}

	var alternatives []sietch.Filter
	showDeleted := opts.History != nil
	for _, f := range filters {
		if len(f) == 0 {
			continue
		}
		if f.Has(FieldDeletedAt) {
			showDeleted = true
		}
		alternatives = append(alternatives, sietch.Match(f.row(), f.Fields()))
	}
	if len(alternatives) > 0 {
		where.All = append(where.All, sietch.Filter{Any: alternatives})
	}

	if auth != nil {
		where.All = append(where.All, sietch.Filter{Any: []sietch.Filter{
			{Conditions: []sietch.Condition{sietch.Eq(FieldCompanyID, auth.companyValue())}},
			{Conditions: []sietch.Condition{sietch.IsNull(FieldCompanyID)}},
		}})
	}

	if !showDeleted {
		where.Conditions = append(where.Conditions, sietch.IsNull(FieldDeletedAt))
	} else if opts.History != nil && *opts.History > 0 {
		where.All = append(where.All, sietch.Filter{Any: []sietch.Filter{
			{Conditions: []sietch.Condition{sietch.IsNull(FieldDeletedAt)}},
			{Conditions: []sietch.Condition{sietch.Gte(FieldDeletedAt, *opts.History)}},
		}})
	}

	if opts.From != nil {
		where.Conditions = append(where.Conditions, sietch.Gte(FieldUpdatedAt, *opts.From))
	}

	return where, showDeleted
}
