package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/httpx"
	"github.com/dwidge/table-api/records"
	"go.uber.org/zap"
)

const _maxErrorBody = 512

// RemoteResolver asks an auth service for the identity behind a token.
// The service answers GET path with the JSON encoded identity.
type RemoteResolver struct {
	client *httpx.Client
	path   string
	log    *zap.Logger
}

func NewRemoteResolver(client *httpx.Client, path string, log *zap.Logger) *RemoteResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteResolver{client: client, path: path, log: log.Named("authn")}
}

func (r *RemoteResolver) Resolve(ctx context.Context, header string) (*records.Auth, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Get(ctx, r.path, httpx.Headers{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	})
	if err != nil {
		r.log.Warn("auth service unreachable", zap.Error(err))
		var reqErr *httpx.RequestError
		if errors.As(err, &reqErr) && reqErr.Temporary() {
			return nil, fault.ServiceUnavailable(CodeRemote, fault.WithCause(err))
		}
		return nil, fault.Service(CodeRemote, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, invalid(fmt.Errorf("auth service responded %d", resp.StatusCode))
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fault.ServiceUnavailable(CodeRemote, fault.WithCause(fmt.Errorf("auth service responded %d", resp.StatusCode)))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		return nil, fault.Service(CodeRemote, fmt.Errorf("auth service responded %d: %s", resp.StatusCode, body))
	}

	var auth *records.Auth
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fault.Service(CodeRemote, fmt.Errorf("decode auth response: %w", err))
	}
	if auth == nil {
		return nil, invalid(errors.New("auth service returned no identity"))
	}

	return auth, nil
}
