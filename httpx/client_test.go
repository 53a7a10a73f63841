package httpx_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dwidge/table-api/httpx"
	"github.com/dwidge/table-api/httpx/backoff"
	"github.com/dwidge/table-api/observability"
	"github.com/h2non/gock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://auth.test"

var noDelay = backoff.Func(func(int) time.Duration { return 0 })

func newClient(opts ...httpx.ClientOption) *httpx.Client {
	opts = append([]httpx.ClientOption{
		httpx.WithBaseURL(baseURL + "/"),
		httpx.WithHTTPClient(&http.Client{}),
	}, opts...)
	return httpx.NewClient(opts...)
}

func TestClient_Get(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/auth").
		MatchHeader("Authorization", "Bearer abc").
		Reply(http.StatusOK).
		BodyString(`{"id":1}`)

	resp, err := newClient().Get(context.Background(), "/auth", httpx.Headers{"Authorization": "Bearer abc"})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":1}`, string(body))
	assert.True(t, gock.IsDone())
}

func TestClient_RetriesPreserveBody(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Post("/items").BodyString("payload").Reply(http.StatusServiceUnavailable)
	gock.New(baseURL).Post("/items").BodyString("payload").Reply(http.StatusCreated)

	client := newClient(httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 3, Backoff: noDelay}))
	resp, err := client.Post(context.Background(), "/items", httpx.Headers{"Content-Type": "text/plain"}, strings.NewReader("payload"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, gock.IsDone())
}

func TestClient_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/auth").Times(3).Reply(http.StatusBadGateway)

	reg := prometheus.NewRegistry()
	client := newClient(
		httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 3, Backoff: noDelay}),
		httpx.WithMetrics(observability.NewMetrics(reg)),
	)

	resp, err := client.Get(context.Background(), "/auth")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.True(t, gock.IsDone())

	n, err := testutil.GatherAndCount(reg, "tableapi_http_client_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClient_OnlyIdempotent(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Post("/items").Reply(http.StatusServiceUnavailable)

	client := newClient(httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 3, Backoff: noDelay, OnlyIdempotent: true}))
	resp, err := client.Post(context.Background(), "/items", nil, strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, gock.IsDone())
}

func TestClient_NonRetryableStatus(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/auth").Reply(http.StatusUnauthorized)

	client := newClient(httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 3, Backoff: noDelay}))
	resp, err := client.Get(context.Background(), "/auth")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, gock.IsDone())
}

func TestClient_NetworkError(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/auth").Times(2).ReplyError(errors.New("connection refused"))

	client := newClient(httpx.WithRetry(httpx.RetryConfig{MaxAttempts: 2, Backoff: noDelay}))
	resp, err := client.Get(context.Background(), "/auth")
	assert.Nil(t, resp)

	var reqErr *httpx.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, httpx.CauseNetwork, reqErr.Cause)
	assert.Equal(t, 1, reqErr.Retries)
	assert.True(t, reqErr.Temporary())
	assert.ErrorIs(t, err, httpx.ErrMaxRetriesExceeded)
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	client := httpx.NewClient(
		httpx.WithBaseURL(baseURL),
		httpx.WithTransport(httpx.TransportFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			calls++
			cancel()
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		})),
		httpx.WithRetry(httpx.RetryConfig{
			MaxAttempts: 5,
			Backoff:     backoff.Func(func(int) time.Duration { return time.Minute }),
		}),
	)

	_, err := client.Get(ctx, "/auth")

	var reqErr *httpx.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, httpx.CauseCanceled, reqErr.Cause)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClient_InvalidRequest(t *testing.T) {
	client := httpx.NewClient(httpx.WithTransport(httpx.TransportFunc(func(context.Context, *http.Request) (*http.Response, error) {
		t.Fatal("transport must not be called")
		return nil, nil
	})))

	_, err := client.Do(context.Background(), &httpx.Request{Method: "BAD METHOD", Path: "/"})

	var reqErr *httpx.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, httpx.CauseInvalidRequest, reqErr.Cause)
	assert.False(t, reqErr.Temporary())
}
