package sietch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// QueryLogger defines the interface for logging store operations
type QueryLogger interface {
	// LogQuery logs a query execution with timing and error information
	LogQuery(ctx context.Context, operation string, query string, args []any, duration time.Duration, err error)

	// LogOperation logs a high-level store operation
	LogOperation(ctx context.Context, operation string, table string, duration time.Duration, err error)
}

// ZapLogger writes store activity to a zap logger. Successful calls are
// logged at debug level, failures at warn.
type ZapLogger struct {
	log *zap.Logger
}

func NewZapLogger(log *zap.Logger) *ZapLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapLogger{log: log.Named("sietch")}
}

// LogQuery implements QueryLogger
func (l *ZapLogger) LogQuery(_ context.Context, operation string, query string, args []any, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("query", query),
		zap.Int("args", len(args)),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.log.Warn("query failed", append(fields, zap.Error(err))...)
		return
	}
	l.log.Debug("query", fields...)
}

// LogOperation implements QueryLogger
func (l *ZapLogger) LogOperation(_ context.Context, operation string, table string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Duration("duration", duration),
	}
	if err != nil {
		l.log.Warn("operation failed", append(fields, zap.Error(err))...)
		return
	}
	l.log.Debug("operation", fields...)
}

// NoOpLogger is a logger that does nothing (useful for disabling logging)
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogQuery implements QueryLogger
func (l *NoOpLogger) LogQuery(context.Context, string, string, []any, time.Duration, error) {}

// LogOperation implements QueryLogger
func (l *NoOpLogger) LogOperation(context.Context, string, string, time.Duration, error) {}

// logOperation is a helper to log an operation with timing
func logOperation(logger QueryLogger, ctx context.Context, operation string, table string, start time.Time, err error) {
	if logger != nil {
		logger.LogOperation(ctx, operation, table, time.Since(start), err)
	}
}

// logQuery is a helper to log a query with timing
func logQuery(logger QueryLogger, ctx context.Context, operation string, query string, args []any, start time.Time, err error) {
	if logger != nil {
		logger.LogQuery(ctx, operation, query, args, time.Since(start), err)
	}
}
