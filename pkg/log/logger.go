// Package log provides structured logging utilities for the seedprobe services.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var handler slog.Handler

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// Create handler based on format
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	// Create base logger with service context
	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithContext returns a logger with additional context fields
func (l *Logger) WithContext(ctx context.Context) *Logger {
	// Extract common context values if they exist
	logger := l.Logger

	// Add request ID if available
	if reqID := ctx.Value("request_id"); reqID != nil {
		logger = logger.With("request_id", reqID)
	}

	// Add trace ID if available
	if traceID := ctx.Value("trace_id"); traceID != nil {
		logger = logger.With("trace_id", traceID)
	}

	return &Logger{
		Logger:  logger,
		service: l.service,
		version: l.version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithGame returns a logger with game-specific fields
func (l *Logger) WithGame(gameID string) *Logger {
	return l.WithFields("game_id", gameID)
}

// WithRun returns a logger with analysis-run fields
func (l *Logger) WithRun(runID string) *Logger {
	return l.WithFields("run_id", runID)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Performance logging helpers

// LogDuration logs the duration of an operation
func (l *Logger) LogDuration(operation string, duration int64) {
	l.Info("operation completed",
		"operation", operation,
		"duration_ns", duration,
		"duration_ms", float64(duration)/1e6,
	)
}

// LogThroughput logs throughput metrics
func (l *Logger) LogThroughput(operation string, count int64, duration int64) {
	throughput := float64(count) / (float64(duration) / 1e9) // ops per second
	l.Info("throughput metrics",
		"operation", operation,
		"count", count,
		"duration_ns", duration,
		"throughput_ops_sec", throughput,
	)
}

// Collector logging helpers

// LogRoundCollected logs a collected game round
func (l *Logger) LogRoundCollected(gameID string, peak float64, finalTick int, instarug bool) {
	l.Info("round collected",
		"game_id", gameID,
		"peak_multiplier", peak,
		"final_tick", finalTick,
		"instarug", instarug,
	)
}

// LogRoundRejected logs a rejected feed message
func (l *Logger) LogRoundRejected(gameID, reason string) {
	l.Warn("round rejected",
		"game_id", gameID,
		"reason", reason,
	)
}

// Analysis logging helpers

// LogHypothesisFound logs a surviving seed hypothesis
func (l *Logger) LogHypothesisFound(encoding, secret, saltTemplate, ordering, algorithm, match string, sampleMatches int) {
	l.Info("hypothesis found",
		"encoding", encoding,
		"secret", secret,
		"salt_template", saltTemplate,
		"ordering", ordering,
		"algorithm", algorithm,
		"match", match,
		"sample_matches", sampleMatches,
	)
}

// LogValidationOutcome logs the hold-out validation outcome for a hypothesis
func (l *Logger) LogValidationOutcome(hypothesisKey string, matches, total int, verdict string) {
	l.Info("hypothesis validated",
		"hypothesis", hypothesisKey,
		"matches", matches,
		"total", total,
		"verdict", verdict,
	)
}

// LogAnalysisSkipped logs an analysis phase aborted for its own reasons
func (l *Logger) LogAnalysisSkipped(analysis, reason string) {
	l.Warn("analysis skipped",
		"analysis", analysis,
		"reason", reason,
	)
}

// LogAnalysisCompleted logs a finished full-analysis run
func (l *Logger) LogAnalysisCompleted(runID string, records, hypotheses int, durationMs float64) {
	l.Info("analysis completed",
		"run_id", runID,
		"records", records,
		"hypotheses", hypotheses,
		"duration_ms", durationMs,
	)
}
