// Package observability provides structured logging, metrics, and tracing
// for the assistant runtime.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds conversation context to a logger.
// Returns a new logger with session_id and correlation_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "sess-123", "corr-456")
//	enriched.Info("processing") // includes session_id, correlation_id
func EnrichLogger(logger *slog.Logger, sessionID, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("correlation_id", correlationID),
	)
}

// LogTurnStart logs the start of a conversation turn.
func LogTurnStart(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Debug("turn starting",
		slog.String("session_id", sessionID),
	)
}

// LogTurnComplete logs successful turn completion.
func LogTurnComplete(logger *slog.Logger, sessionID, intentName string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("turn completed",
		slog.String("session_id", sessionID),
		slog.String("intent", intentName),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTurnRejected logs a turn stopped by a policy gate.
func LogTurnRejected(logger *slog.Logger, sessionID, stage string, violations map[string]any) {
	if logger == nil {
		return
	}
	logger.Warn("turn rejected by policy",
		slog.String("session_id", sessionID),
		slog.String("stage", stage),
		slog.Any("violations", violations),
	)
}

// LogTurnError logs turn processing failure.
func LogTurnError(logger *slog.Logger, sessionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("turn failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// LogPersistFailure logs a best-effort persistence failure (non-fatal).
func LogPersistFailure(logger *slog.Logger, sessionID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("turn persistence failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
