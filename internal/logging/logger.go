// Package logging provides leveled, component-scoped logging for hostfs.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

// traceLevel sits below zap's debug level; zap has no trace level of its own.
const traceLevel = zapcore.DebugLevel - 1

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return traceLevel
	}
}

// ParseLevel converts a level name such as "debug" or "TRACE" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for level, name := range levelNames {
		if name == upper {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Options selects where and how log lines are written.
type Options struct {
	Level LogLevel
	// Format is "console" (default) or "json".
	Format string
	Output io.Writer
}

// DefaultOptions returns console output on stderr at INFO.
func DefaultOptions() Options {
	return Options{
		Level:  LevelInfo,
		Format: "console",
		Output: os.Stderr,
	}
}

// sink is shared by a logger and every logger derived from it, so
// reconfiguring the root also redirects prefixed children.
type sink struct {
	level zap.AtomicLevel
	base  atomic.Pointer[zap.Logger]
}

// Logger provides structured logging capabilities
type Logger struct {
	sink   *sink
	prefix string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("hostfs")

		// Set initial log level from environment
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			if level, err := ParseLevel(env); err == nil {
				defaultLogger.SetLevel(level)
			}
		}

		// Enable debug logging if FUSE_DEBUG is set
		if os.Getenv("FUSE_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// Configure reconfigures the default logger.
func Configure(opts Options) {
	GetLogger().Configure(opts)
}

// NewLogger creates a new logger with the given prefix
func NewLogger(prefix string) *Logger {
	l := &Logger{
		sink:   &sink{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)},
		prefix: prefix,
	}
	l.Configure(DefaultOptions())
	return l
}

// Configure replaces the output, format and level of l and of every logger
// derived from it.
func (l *Logger) Configure(opts Options) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	l.sink.level.SetLevel(opts.Level.zapLevel())
	core := zapcore.NewCore(newEncoder(opts), zapcore.AddSync(opts.Output), l.sink.level)
	l.sink.base.Store(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)))
}

func newEncoder(opts Options) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = levelEncoder(false)

	if opts.Format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = levelEncoder(isTerminal(opts.Output))
	return zapcore.NewConsoleEncoder(cfg)
}

func levelEncoder(color bool) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if level == traceLevel {
			if color {
				enc.AppendString("\x1b[35mTRACE\x1b[0m")
			} else {
				enc.AppendString("TRACE")
			}
			return
		}
		if color {
			zapcore.CapitalColorLevelEncoder(level, enc)
			return
		}
		zapcore.CapitalLevelEncoder(level, enc)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.level.SetLevel(level.zapLevel())
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.sink.level.Enabled(level.zapLevel())
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	zl := level.zapLevel()
	if !l.sink.level.Enabled(zl) {
		return
	}

	base := l.sink.base.Load()
	if l.prefix != "" {
		base = base.Named(l.prefix)
	}
	base.Sugar().Logf(zl, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix creates a new logger with an additional prefix. The new logger
// shares level and output with l.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l.prefix != "" {
		prefix = l.prefix + "." + prefix
	}
	return &Logger{
		sink:   l.sink,
		prefix: prefix,
	}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sink.base.Load().Sync()
}
