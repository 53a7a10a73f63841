// Package authn resolves the Authorization header of a request into the
// caller identity used for tenant checks.
package authn

import (
	"context"
	"errors"
	"strings"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

const (
	CodeMissingToken = "authn.missing_token"
	CodeInvalidToken = "authn.invalid_token"
	CodeRemote       = "authn.remote"
)

// Resolver turns an Authorization header value into an identity.
// Failures are *fault.Error values.
type Resolver interface {
	Resolve(ctx context.Context, header string) (*records.Auth, error)
}

type ResolverFunc func(ctx context.Context, header string) (*records.Auth, error)

func (f ResolverFunc) Resolve(ctx context.Context, header string) (*records.Auth, error) {
	return f(ctx, header)
}

// Static resolves every header to auth. A nil auth makes every request
// unscoped, so it only belongs in tests and trusted internal deployments.
func Static(auth *records.Auth) Resolver {
	return ResolverFunc(func(context.Context, string) (*records.Auth, error) {
		return auth, nil
	})
}

// BearerToken extracts the token from "Bearer <token>". Any other
// non-empty value is taken as the token itself.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		header = strings.TrimSpace(token)
	}
	if header == "" {
		return "", fault.NotAuthorized(CodeMissingToken, fault.WithCause(ErrMissingToken))
	}
	return header, nil
}

func invalid(err error) *fault.Error {
	return fault.NotAuthorized(CodeInvalidToken, fault.WithCause(errors.Join(ErrInvalidToken, err)))
}
