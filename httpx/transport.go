package httpx

import (
	"context"
	"net/http"
	"time"
)

const _defaultTimeout = 30 * time.Second

// Transport abstracts the actual HTTP request execution.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// DefaultTransport wraps the standard library's http.Client.
type DefaultTransport struct {
	client *http.Client
}

// NewDefaultTransport creates a pooled transport whose requests time out
// after timeout.
func NewDefaultTransport(timeout time.Duration) *DefaultTransport {
	return &DefaultTransport{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func NewDefaultTransportWithClient(client *http.Client) *DefaultTransport {
	return &DefaultTransport{
		client: client,
	}
}

func (t *DefaultTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f TransportFunc) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}
