package records

import (
	"context"
	"errors"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/sietch"
)

// envelope fields a create always stores, null when not supplied
var nullableEnvelope = []string{FieldAuthorID, FieldCompanyID, FieldDeletedAt}

// set upserts one storage shaped partial record and returns the stored
// identity projection. created reports that no prior row was found.
func (t *Table) set(ctx context.Context, partial Record, auth *Auth) (value Record, created bool, err error) {
	existing, err := t.lookup(ctx, partial)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && !t.canWrite(existing, auth) {
		return nil, false, forbidden(CodeForbiddenExisting, existing, auth)
	}

	now := t.timestamp()
	changes := partial.Clone()
	if id, ok := changes.Int(FieldID); ok {
		changes[FieldID] = id
	} else {
		delete(changes, FieldID)
	}
	changes[FieldUpdatedAt] = now
	if auth != nil {
		changes[FieldAuthorID] = ptrValue(auth.CallerID)
	}

	merged := Record{}
	if existing != nil {
		for k, v := range existing {
			merged[k] = v
		}
	} else {
		merged[FieldID] = t.newID()
		if auth != nil {
			merged[FieldCompanyID] = auth.companyValue()
		}
	}
	for k, v := range changes {
		merged[k] = v
	}

	if !t.canWrite(merged, auth) {
		return nil, existing == nil, forbidden(CodeForbiddenPayload, merged, auth)
	}

	if existing != nil {
		id, _ := existing.Int(FieldID)
		delete(changes, FieldID)
		delete(changes, FieldCreatedAt)
		// the row must still belong to the tenant checked above
		guard := &sietch.Filter{Conditions: []sietch.Condition{sietch.Eq(FieldCompanyID, existing[FieldCompanyID])}}
		err := t.store.UpdateWhere(ctx, id, guard, changes.row())
		if errors.Is(err, sietch.ErrNoUpdateItem) {
			return nil, false, t.ownerChanged(ctx, id, existing, auth)
		}
		if err != nil {
			return nil, false, t.translate(ctx, CodeUpdate, err, merged)
		}
		return publicID(t.mapping, existing), false, nil
	}

	if merged.Null(FieldCreatedAt) {
		merged[FieldCreatedAt] = now
	}
	for _, f := range nullableEnvelope {
		if !merged.Has(f) {
			merged[f] = nil
		}
	}
	if err := t.store.Create(ctx, merged.row()); err != nil {
		return nil, true, t.translate(ctx, CodeCreate, err, merged)
	}
	return publicID(t.mapping, merged), true, nil
}

// ownerChanged reports a guarded update that matched no row: another writer
// moved the row to a different tenant after lookup
func (t *Table) ownerChanged(ctx context.Context, id int64, existing Record, auth *Auth) error {
	current, err := sietch.GetAuthoritative(ctx, t.store, id)
	if err != nil {
		return forbidden(CodeForbiddenExisting, existing, auth)
	}
	return forbidden(CodeForbiddenExisting, Record(current), auth)
}

// lookup fetches the row partial.id refers to, if any. The read is not
// tenant scoped and bypasses any read cache in front of the store.
func (t *Table) lookup(ctx context.Context, partial Record) (Record, error) {
	if partial.Null(FieldID) {
		return nil, nil
	}
	id, ok := partial.Int(FieldID)
	if !ok {
		return nil, fault.Unprocessable(CodeInvalidID, []fault.Issue{
			{Path: []any{FieldID}, Message: "must be an integer"},
		})
	}

	row, err := sietch.GetAuthoritative(ctx, t.store, id)
	switch {
	case err == nil:
		return Record(row), nil
	case errors.Is(err, sietch.ErrItemNotFound):
		return nil, nil
	}
	return nil, fault.Service(CodeLookup, err)
}
