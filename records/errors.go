package records

import (
	"context"
	"errors"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/sietch"
)

// Error codes raised by table operations
const (
	CodeListFind          = "records.list.find"
	CodeListCount         = "records.list.count"
	CodeDeletedLeak       = "records.list.deleted_leak"
	CodeLookup            = "records.set.lookup"
	CodeInvalidID         = "records.set.invalid_id"
	CodeForbiddenExisting = "records.set.forbidden_existing"
	CodeForbiddenPayload  = "records.set.forbidden_payload"
	CodeCreate            = "records.set.create"
	CodeUpdate            = "records.set.update"
	CodeCycle             = "records.batch.cycle"
	CodePoolStopped       = "records.batch.pool_stopped"
	CodeItemPanic         = "records.batch.panic"
)

func forbidden(code string, rec Record, auth *Auth) *fault.Error {
	return fault.Forbidden(code,
		fault.WithMessage("record belongs to another company"),
		fault.WithData(map[string]any{
			"item": map[string]any{FieldCompanyID: rec[FieldCompanyID]},
			"auth": map[string]any{FieldCompanyID: auth.companyValue()},
		}),
	)
}

// translate maps a store failure on value into the error taxonomy
func (t *Table) translate(ctx context.Context, code string, err error, value Record) error {
	switch {
	case errors.Is(err, sietch.ErrUniqueViolation):
		return fault.Conflict(code,
			fault.WithCause(err),
			fault.WithData(map[string]any{"value": value}),
		)
	case errors.Is(err, sietch.ErrForeignKeyViolation):
		missing, perr := t.missingReferences(ctx, value)
		if perr != nil {
			return fault.Service(code, errors.Join(err, perr))
		}
		return fault.NotFound(code,
			fault.WithMessage("missing foreign key"),
			fault.WithCause(err),
			fault.WithData(map[string]any{"missing": missing, "value": value}),
		)
	}
	return fault.Service(code, err)
}

// missingReferences looks up every foreign key set on value and returns the
// fields whose target row does not exist
func (t *Table) missingReferences(ctx context.Context, value Record) (Record, error) {
	missing := Record{}
	for _, fk := range t.foreignKeys {
		v := value[fk.Field]
		if v == nil {
			continue
		}
		id, ok := sietch.AsInt64(v)
		if !ok {
			missing[fk.Field] = v
			continue
		}
		exists, err := fk.Target.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing[fk.Field] = v
		}
	}
	return missing, nil
}

// publicError rewrites record payloads carried by err into public shape
func (t *Table) publicError(err error) error {
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Data == nil {
		return err
	}

	data := make(map[string]any, len(fe.Data))
	changed := false
	for k, v := range fe.Data {
		if rec, ok := v.(Record); ok && (k == "value" || k == "missing") {
			v = t.mapping.ToPublic(rec)
			changed = true
		}
		data[k] = v
	}
	if !changed {
		return err
	}

	out := *fe
	out.Data = data
	return &out
}
