// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured
// logging with configurable levels and output formats, and carries loggers
// through context.Context so that run-scoped attributes such as run_id follow
// every stage of a compilation.
package logger
