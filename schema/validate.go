package schema

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// tagKind checks a decoded JSON value against a Kind, e.g. "kind=int"
const tagKind = "kind"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(tagKind, func(fl validator.FieldLevel) bool {
		_, err := Field{Kind: Kind(fl.Param())}.decode(fl.Field().Interface())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// rule is the validation tag for a value present in an item. Nullable
// fields skip the kind check for nil.
func (f Field) rule() string {
	if f.Nullable {
		return "omitempty," + tagKind + "=" + string(f.Kind)
	}
	return tagKind + "=" + string(f.Kind)
}

// rules builds the ValidateMap rules for one item: present fields are kind
// checked, absent required fields fail on create.
func (s *Schema) rules(raw map[string]any, create bool) map[string]any {
	rules := make(map[string]any, len(raw))
	for _, name := range s.names {
		f := s.fields[name]
		if _, ok := raw[name]; ok {
			rules[name] = f.rule()
		} else if create && f.Required {
			rules[name] = "required"
		}
	}
	return rules
}

// message turns a ValidateMap failure on value into an issue message
func (f Field) message(value any, failure any) string {
	var verrs validator.ValidationErrors
	if err, ok := failure.(error); ok && errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return "required"
	}
	if value == nil {
		return errNull.Error()
	}
	if _, err := f.decode(value); err != nil {
		return err.Error()
	}
	return "invalid value"
}
