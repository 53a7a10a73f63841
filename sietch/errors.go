package sietch

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrNoUpdateItem  = errors.New("no item has been updated")
	ErrUnknownColumn = errors.New("unknown column")

	ErrUniqueViolation     = errors.New("unique constraint violated")
	ErrForeignKeyViolation = errors.New("foreign key constraint violated")
	ErrNotNullViolation    = errors.New("not null constraint violated")
)

// ConstraintKind names the integrity rule a write broke
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintError is returned by stores when a write breaks an integrity rule
type ConstraintError struct {
	Kind       ConstraintKind
	Table      string
	Constraint string
	Columns    []string
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s constraint %q violated on %s", e.Kind, e.Constraint, e.Table)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func (e *ConstraintError) Is(target error) bool {
	switch target {
	case ErrUniqueViolation:
		return e.Kind == ConstraintUnique
	case ErrForeignKeyViolation:
		return e.Kind == ConstraintForeignKey
	case ErrNotNullViolation:
		return e.Kind == ConstraintNotNull
	}
	return false
}
