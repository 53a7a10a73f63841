package ginsrv

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dwidge/table-api/fault"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorFormatterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		statusCode     int
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "No error, should pass through",
			statusCode:     http.StatusOK,
			expectedBody:   ``,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Bad request error",
			statusCode:     http.StatusBadRequest,
			expectedBody:   `{"message":"Bad Request"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Not found error",
			statusCode:     http.StatusNotFound,
			expectedBody:   `{"message":"Not Found"}`,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Internal server error",
			statusCode:     http.StatusInternalServerError,
			expectedBody:   `{"message":"Internal Server Error"}`,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorFormatterMiddleware())

			router.GET("/test", func(c *gin.Context) {
				c.Status(tt.statusCode)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestErrorFormatterMiddleware_Faults(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "Forbidden with data",
			err:            fault.Forbidden("records.set.forbidden_existing", fault.WithMessage("nope"), fault.WithData(map[string]any{"item": 1})),
			expectedBody:   `{"code":"records.set.forbidden_existing","data":{"item":1},"message":"nope"}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Unprocessable issues",
			err:            fault.Unprocessable("ginsrv.write.items", []fault.Issue{{Path: []any{0, "name"}, Message: "required"}}),
			expectedBody:   `{"code":"ginsrv.write.items","data":{"issues":[{"path":[0,"name"],"message":"required"}]},"message":"[[0].name] required"}`,
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "Generic hides details",
			err:            fault.Generic("records.set.create", fault.WithCause(errors.New("db exploded"))),
			expectedBody:   `{"code":"records.set.create","message":"Internal Server Error"}`,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Empty message uses status text",
			err:            fault.NotAuthorized("authn.missing_token"),
			expectedBody:   `{"code":"authn.missing_token","message":"Unauthorized"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Plain error",
			err:            errors.New("boom"),
			expectedBody:   `{"message":"Internal Server Error"}`,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorFormatterMiddleware())

			router.GET("/test", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, 26, len(w.Body.String()))
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Body.String())
}

func TestDefaultMiddlewares_PanicAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	routes := []Route{
		{Method: http.MethodGet, Path: "/panic", Handler: func(c *gin.Context) { panic("kaboom") }},
		{Method: http.MethodGet, Path: "/ok", Handler: func(c *gin.Context) { c.Status(http.StatusNoContent) }},
	}
	router := SetupRouter(routes, DefaultMiddlewares(zap.New(core))...)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"code":"ginsrv.panic","message":"Internal Server Error"}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ok", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	failed := logs.FilterMessage("request failed").All()
	assert.Equal(t, 1, len(failed))
	assert.Equal(t, int64(http.StatusInternalServerError), failed[0].ContextMap()["status"])
	assert.Equal(t, 1, logs.FilterMessage("request served").Len())
}
