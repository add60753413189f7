// Package observability provides structured logging and metrics collection
// for the report generation service.
//
// The package keeps the rest of the codebase decoupled from concrete
// logging and metrics backends: components depend on the Logger and
// Metrics interfaces, while main wires the zerolog and Prometheus
// implementations.
package observability

import (
	"context"
	"io"
)

// Logger defines the contract for structured logging.
// All methods are context-aware to support request tracing and correlation.
type Logger interface {
	// Info logs an informational message.
	Info(ctx context.Context, msg string, fields Fields)

	// Warn logs a potentially harmful situation that does not prevent operation.
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs an error message with the associated error.
	Error(ctx context.Context, msg string, err error, fields Fields)

	// Debug logs detailed information useful during troubleshooting.
	Debug(ctx context.Context, msg string, fields Fields)

	// WithFields returns a new Logger that includes the given fields
	// in all subsequent log entries. Useful for adding consistent
	// context like a correlation id or component name.
	WithFields(fields Fields) Logger
}

// Metrics defines the contract for metrics collection.
// Implementations should provide Prometheus-compatible metrics.
type Metrics interface {
	// RecordSuccess increments the success counter for an operation type.
	RecordSuccess(operationType string)

	// RecordError increments the error counters for an operation and error type.
	RecordError(operationType string, errorType string)

	// RecordDuration records the duration of an operation in seconds.
	// Use time.Since(start).Seconds() for accuracy.
	RecordDuration(operation string, duration float64)

	// RecordFileSize records the size of a processed blob in bytes.
	RecordFileSize(fileType string, bytes int64)

	// StartOperation increments the in-progress gauge for an operation.
	// Must be paired with EndOperation to keep counts accurate.
	StartOperation(operation string)

	// EndOperation decrements the in-progress gauge for an operation.
	// Call it in a defer so it runs even on errors.
	EndOperation(operation string)
}

// Fields represents structured logging fields as key-value pairs.
// Values must be JSON-serializable.
type Fields map[string]interface{}

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies the service in logs and metrics.
	ServiceName string

	// Environment specifies the deployment environment
	// ("development", "staging", "production").
	Environment string

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	LogLevel string

	// LogOutput specifies where logs are written. Defaults to os.Stdout.
	LogOutput io.Writer
}
