package fault

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a class of failure surfaced by the engine
type Kind string

const (
	KindNotAuthorized      Kind = "NotAuthorized"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindUnprocessable      Kind = "Unprocessable"
	KindPayloadTooLarge    Kind = "PayloadTooLarge"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindGeneric            Kind = "GenericError"
)

// Status maps the kind to the HTTP status rendered at the boundary
func (k Kind) Status() int {
	switch k {
	case KindNotAuthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged error carried across package boundaries.
// Code is a stable identifier of the place that raised it, Data holds
// the identifiers a client may need (never full records).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Data    map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Status() int {
	return e.Kind.Status()
}

// Option customizes an Error at construction time
type Option func(*Error)

func WithMessage(msg string) Option {
	return func(e *Error) { e.Message = msg }
}

func WithData(data map[string]any) Option {
	return func(e *Error) { e.Data = data }
}

func WithCause(err error) Option {
	return func(e *Error) {
		e.Cause = err
		if e.Message == "" && err != nil {
			e.Message = err.Error()
		}
	}
}

func New(kind Kind, code string, opts ...Option) *Error {
	e := &Error{Kind: kind, Code: code}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func NotAuthorized(code string, opts ...Option) *Error {
	return New(KindNotAuthorized, code, opts...)
}

func Forbidden(code string, opts ...Option) *Error {
	return New(KindForbidden, code, opts...)
}

func NotFound(code string, opts ...Option) *Error {
	return New(KindNotFound, code, opts...)
}

func Conflict(code string, opts ...Option) *Error {
	return New(KindConflict, code, opts...)
}

func PayloadTooLarge(code string, opts ...Option) *Error {
	return New(KindPayloadTooLarge, code, opts...)
}

func ServiceUnavailable(code string, opts ...Option) *Error {
	return New(KindServiceUnavailable, code, opts...)
}

func Generic(code string, opts ...Option) *Error {
	return New(KindGeneric, code, opts...)
}

// Wrap attaches a code to err. An err that already carries a *Error keeps
// its kind and data so the original classification survives re-raising.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return &Error{Kind: fe.Kind, Code: code, Message: fe.Error(), Data: fe.Data, Cause: err}
	}
	return Generic(code, WithCause(err))
}

// KindOf returns the kind of the first *Error in err's chain, KindGeneric otherwise
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindGeneric
}

func StatusOf(err error) int {
	return KindOf(err).Status()
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var serviceMarkers = []string{
	"Unauthorized",
	"Service Unavailable",
	"Quota Exceeded",
	"Invalid API Key",
	"Timeout",
}

// IsServiceMessage reports whether msg looks like a transient downstream failure
func IsServiceMessage(msg string) bool {
	for _, m := range serviceMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Service classifies a failure from a downstream integration
func Service(code string, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if IsServiceMessage(err.Error()) {
		return ServiceUnavailable(code, WithCause(err))
	}
	return Generic(code, WithCause(err))
}

// Errorf builds a Generic error with a formatted message
func Errorf(code string, format string, args ...any) *Error {
	return Generic(code, WithMessage(fmt.Sprintf(format, args...)))
}
