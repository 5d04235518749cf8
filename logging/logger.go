package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface for chatloop. Arguments
// following msg are slog style key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// ChatLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods for turns, tool calls and model calls. It is cheap to
// copy via the With* methods.
type ChatLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	sessionID string
}

// LoggerConfig configures construction of a ChatLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	SessionID   string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration writing to stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a ChatLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *ChatLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	ctx := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		ctx[k] = v
	}
	return &ChatLogger{logger: slog.New(handler), level: cfg.Level, context: ctx, component: cfg.Component, sessionID: cfg.SessionID}
}

// NewSlogLogger creates a new ChatLogger with the specified level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *ChatLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *ChatLogger) clone() *ChatLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *ChatLogger) WithContext(key string, value any) *ChatLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (flow, tool, session, etc.).
func (l *ChatLogger) WithComponent(c string) *ChatLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches a session identifier.
func (l *ChatLogger) WithSession(sid string) *ChatLogger {
	nl := l.clone()
	nl.sessionID = sid
	return nl
}

// Scoped tags l with component and, when set, sessionID. Loggers other than
// ChatLogger and SlogAdapter are returned unchanged.
func Scoped(l Logger, component, sessionID string) Logger {
	switch sl := l.(type) {
	case *ChatLogger:
		cl := sl.WithComponent(component)
		if sessionID != "" {
			cl = cl.WithSession(sessionID)
		}
		return cl
	case *SlogAdapter:
		args := []any{"component", component}
		if sessionID != "" {
			args = append(args, "session_id", sessionID)
		}
		return &SlogAdapter{Logger: sl.Logger.With(args...)}
	default:
		return l
	}
}

func (l *ChatLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *ChatLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs, argsToAttrs(args)...)
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// argsToAttrs converts alternating key/value pairs into attributes. A trailing
// key without value is kept under "!BADKEY" like slog does.
func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			attrs = append(attrs, slog.Any("!BADKEY", args[i]))
			i--
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level.
func (l *ChatLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *ChatLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *ChatLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *ChatLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogToolCall records execution details for a tool invocation.
func (l *ChatLogger) LogToolCall(tool, callID string, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("tool_name", tool), slog.String("tool_call_id", callID), slog.Duration("duration", dur), slog.Bool("success", err == nil))
	level := slog.LevelInfo
	msg := "tool.call.completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelWarn
		msg = "tool.call.failed"
	}
	if l.level > levelOf(level) {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogModelCall records model call latency and outcome.
func (l *ChatLogger) LogModelCall(model string, round int, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("model", model), slog.Int("round", round), slog.Duration("duration", dur), slog.Bool("success", err == nil))
	level := slog.LevelInfo
	msg := "model.call.completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "model.call.failed"
	}
	if l.level > levelOf(level) {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogTurn records aggregate turn metrics.
func (l *ChatLogger) LogTurn(rounds, toolCalls int, dur time.Duration, truncated bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.Int("rounds", rounds), slog.Int("tool_calls", toolCalls), slog.Duration("duration", dur), slog.Bool("truncated", truncated))
	level := slog.LevelInfo
	msg := "turn.completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "turn.failed"
	}
	if l.level > levelOf(level) {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func levelOf(s slog.Level) LogLevel {
	switch {
	case s <= slog.LevelDebug:
		return LogLevelDebug
	case s <= slog.LevelInfo:
		return LogLevelInfo
	case s <= slog.LevelWarn:
		return LogLevelWarn
	default:
		return LogLevelError
	}
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// structuredLogger is implemented by loggers with dedicated domain helpers
// (ChatLogger). The Record* functions fall back to plain key/value logging.
type structuredLogger interface {
	LogToolCall(tool, callID string, dur time.Duration, err error)
	LogModelCall(model string, round int, dur time.Duration, err error)
	LogTurn(rounds, toolCalls int, dur time.Duration, truncated bool, err error)
}

// RecordToolCall logs a finished tool call on l.
func RecordToolCall(l Logger, tool, callID string, dur time.Duration, err error) {
	if sl, ok := l.(structuredLogger); ok {
		sl.LogToolCall(tool, callID, dur, err)
		return
	}
	if err != nil {
		l.Warn("tool.call.failed", "tool_name", tool, "tool_call_id", callID, "duration", dur, "error", err.Error())
		return
	}
	l.Info("tool.call.completed", "tool_name", tool, "tool_call_id", callID, "duration", dur)
}

// RecordModelCall logs a finished model call on l.
func RecordModelCall(l Logger, model string, round int, dur time.Duration, err error) {
	if sl, ok := l.(structuredLogger); ok {
		sl.LogModelCall(model, round, dur, err)
		return
	}
	if err != nil {
		l.Error("model.call.failed", "model", model, "round", round, "duration", dur, "error", err.Error())
		return
	}
	l.Info("model.call.completed", "model", model, "round", round, "duration", dur)
}

// RecordTurn logs the outcome of a whole turn on l.
func RecordTurn(l Logger, rounds, toolCalls int, dur time.Duration, truncated bool, err error) {
	if sl, ok := l.(structuredLogger); ok {
		sl.LogTurn(rounds, toolCalls, dur, truncated, err)
		return
	}
	if err != nil {
		l.Error("turn.failed", "rounds", rounds, "tool_calls", toolCalls, "duration", dur, "truncated", truncated, "error", err.Error())
		return
	}
	l.Info("turn.completed", "rounds", rounds, "tool_calls", toolCalls, "duration", dur, "truncated", truncated)
}
