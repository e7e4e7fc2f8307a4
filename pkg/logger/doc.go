// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: human-readable text output in dev,
// JSON in prod. No timestamps are added beyond slog's own; this daemon is
// meant to run under a supervisor that stamps its output.
package logger
