// Package logging provides the engine's own diagnostic stderr logging —
// distinct from the nanolog event pipeline itself, used to report
// writer I/O failures and other out-of-band conditions per spec.md §7
// ("a failed async write or fsync is logged to the standard error
// stream"), since producer- and consumer-side errors never propagate to
// the caller.
//
// Severity here reuses internal/marshaltypes.Level rather than a second
// parallel enum, so a log site's declared level and this package's
// filtering level are the same four values end to end. Unlike the
// teacher's one-shot device events, internal/consumer retries a failed
// flush every FlushIntervalMs indefinitely (internal/consumer.go), which
// would otherwise print an identical "flush failed" line every 100ms for
// as long as the underlying disk stays unwritable; log collapses an
// unbroken run of identical consecutive lines into a single trailing
// summary instead.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

// Logger wraps stdlib log with level filtering and repeat collapsing.
type Logger struct {
	logger *log.Logger
	level  marshaltypes.Level
	mu     sync.Mutex

	lastLine string
	repeats  uint64
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Level aliases spare callers an import of marshaltypes just to name a
// severity when logging a writer or consumer failure.
const (
	LevelDebug = marshaltypes.LevelDebug
	LevelInfo  = marshaltypes.LevelInfo
	LevelWarn  = marshaltypes.LevelWarn
	LevelError = marshaltypes.LevelError
)

// Config holds logging configuration.
type Config struct {
	Level  marshaltypes.Level
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// formatArgs renders key-value pairs the way a failed WriteEntry/Flush
// call reports its context (path, site_id, err, ...).
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(args); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	if b.Len() == 0 {
		return ""
	}
	return " " + b.String()
}

func (l *Logger) log(level marshaltypes.Level, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	line := prefix + " " + msg + formatArgs(args)

	l.mu.Lock()
	defer l.mu.Unlock()

	if line == l.lastLine {
		l.repeats++
		return
	}
	l.flushRepeatsLocked()
	l.lastLine = line
	l.logger.Print(line)
}

// flushRepeatsLocked prints a trailing summary for a run of identical
// lines suppressed since the last distinct one. Callers hold l.mu.
func (l *Logger) flushRepeatsLocked() {
	if l.repeats == 0 {
		return
	}
	l.logger.Printf("%s (repeated %d more times)", l.lastLine, l.repeats)
	l.repeats = 0
}

// Flush emits a pending repeat-count summary without waiting for the
// next distinct message. internal/consumer calls this on shutdown so a
// burst of identical flush-failure lines isn't silently dropped once
// the retry loop that was producing them stops.
func (l *Logger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushRepeatsLocked()
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "[INFO]", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN]", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR]", msg, args...)
}

// Printf-style logging.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf for compatibility.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// Flush emits the default logger's pending repeat-count summary.
func Flush() {
	Default().Flush()
}
