package httpx

import (
	"context"
	"io"
	"net/http"
)

// Headers is a convenience type for HTTP headers.
type Headers map[string]string

// Request describes a request relative to the client's base URL
type Request struct {
	Method  string
	Path    string
	Headers Headers
	Body    io.Reader
}

func (r *Request) toHTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, baseURL+r.Path, r.Body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
