package ginsrv

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/idgen"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-Id"
	requestIDKey    = "requestId"

	CodePanic = "ginsrv.panic"
)

// DefaultMiddlewares lists the stack in SetupRouter order: request ids
// outermost, then logging, error rendering and panic recovery.
func DefaultMiddlewares(log *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		RecoveryMiddleware(log),
		ErrorFormatterMiddleware(),
		LoggerMiddleware(log),
		RequestIDMiddleware(),
	}
}

// ErrorFormatterMiddleware renders the last error attached to the context,
// or a plain status message for bodiless error statuses.
func ErrorFormatterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if last := c.Errors.Last(); last != nil {
			status, body := errorBody(last.Err)
			c.JSON(status, body)
			return
		}

		if c.Writer.Status() >= http.StatusBadRequest {
			c.JSON(c.Writer.Status(), gin.H{
				"message": http.StatusText(c.Writer.Status()),
			})
		}
	}
}

func errorBody(err error) (int, gin.H) {
	var fe *fault.Error
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError, gin.H{
			"message": http.StatusText(http.StatusInternalServerError),
		}
	}

	status := fe.Status()
	body := gin.H{"code": fe.Code, "message": fe.Message}
	// internal failures keep their details in the log
	if fe.Kind == fault.KindGeneric {
		body["message"] = http.StatusText(status)
	} else if fe.Data != nil {
		body["data"] = fe.Data
	}
	if body["message"] == "" {
		body["message"] = http.StatusText(status)
	}
	return status, body
}

// RequestIDMiddleware keeps the caller's X-Request-Id or assigns a ULID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = idgen.NewULID()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", RequestID(c)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}

// RecoveryMiddleware turns a panic into a Generic fault rendered by
// ErrorFormatterMiddleware.
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	out := zap.NewStdLog(log.Named("recovery")).Writer()

	return gin.CustomRecoveryWithWriter(out, func(c *gin.Context, recovered any) {
		_ = c.Error(fault.Generic(CodePanic, fault.WithMessage(fmt.Sprint(recovered))))
		c.Abort()
	})
}
