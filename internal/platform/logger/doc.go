// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, trace correlation through OpenTelemetry span
// context, and request-scoped loggers carried in context.Context.
package logger
