package httpx

import (
	"net/http"
	"strings"

	"github.com/dwidge/table-api/observability"
	"go.uber.org/zap"
)

type ClientOption func(*Client)

// WithBaseURL prefixes every request path
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.transport = NewDefaultTransportWithClient(client)
	}
}

func WithRetry(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t *observability.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log.Named("httpx")
		}
	}
}
