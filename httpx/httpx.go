package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/dwidge/table-api/observability"
	"go.uber.org/zap"
)

// Client executes HTTP requests against a base URL with retries, metrics and
// tracing. It is safe for concurrent use and immutable after creation.
type Client struct {
	transport Transport
	baseURL   string
	retry     RetryConfig

	metrics *observability.Metrics
	tracer  *observability.Tracer
	log     *zap.Logger
}

// NewClient creates a client configured by opts. Without WithRetry every
// request is attempted once.
//
//	client := httpx.NewClient(
//	    httpx.WithBaseURL("http://auth:8080"),
//	    httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 3}),
//	)
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		transport: NewDefaultTransport(_defaultTimeout),
		retry:     RetryConfig{MaxAttempts: 1},
		log:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.retry = c.retry.withDefaults()

	return c
}

// Do executes req. Responses with any status are returned without error
// once retries are exhausted; errors are *RequestError.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	httpReq, err := req.toHTTPRequest(ctx, c.baseURL)
	if err != nil {
		return nil, &RequestError{Err: err, Cause: CauseInvalidRequest}
	}

	ctx, span := c.tracer.StartRequest(ctx, httpReq)
	resp, retries, err := c.execute(ctx, httpReq)
	observability.EndRequest(span, resp, retries, err)

	return resp, err
}

// Get executes a GET request to the specified path.
// Headers are optional and can be nil.
func (c *Client) Get(ctx context.Context, path string, headers ...Headers) (*http.Response, error) {
	h := Headers{}
	if len(headers) > 0 {
		h = headers[0]
	}

	return c.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: h,
	})
}

// Post executes a POST request to the specified path with the given body.
func (c *Client) Post(ctx context.Context, path string, headers Headers, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    path,
		Headers: headers,
		Body:    body,
	})
}
