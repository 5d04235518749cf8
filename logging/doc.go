// Package logging provides a minimal logging interface and adapters for chatloop.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the turn controller, tool executor and sessions use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a *slog.Logger
//   - ChatLogger, a configurable slog logger with turn/tool/model helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	conv := session.New("s1", model, registry, func(o *session.Options) { o.Logger = logger })
package logging
