// Package logx provides leveled, component-tagged logging for the client
// library. Output goes to stderr so callers can pipe streamed completions
// on stdout without interleaving.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes timestamped, component-tagged lines to stderr.
type Logger struct {
	component string
	logger    *log.Logger
}

//nolint:gochecknoglobals // process-wide debug switches, set once at startup
var (
	debugEnabled bool
	debugScopes  map[string]bool
	debugMu      sync.RWMutex
)

// Debug logging is controlled by environment variables so that library
// consumers never have to thread a verbosity flag through the API:
//
//	PARLEY_DEBUG=1                               enable debug everywhere
//	PARLEY_DEBUG=1 PARLEY_DEBUG_SCOPES=sse,retry limit to listed components
func init() { //nolint:gochecknoinits // env var initialization
	if v := os.Getenv("PARLEY_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugEnabled = true
	}
	if scopes := os.Getenv("PARLEY_DEBUG_SCOPES"); scopes != "" {
		debugScopes = make(map[string]bool)
		for _, scope := range strings.Split(scopes, ",") {
			debugScopes[strings.TrimSpace(scope)] = true
		}
	}
}

// SetDebug overrides the environment-derived debug setting. Scopes set via
// PARLEY_DEBUG_SCOPES remain in effect.
func SetDebug(enabled bool) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
}

// DebugEnabledFor reports whether debug logging is active for a component.
func DebugEnabledFor(component string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugEnabled {
		return false
	}
	if debugScopes == nil {
		return true
	}
	return debugScopes[component]
}

// NewLogger creates a logger tagged with the given component name
// (e.g. "anthropic", "retry", "agent").
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", log.LstdFlags|log.LUTC),
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.component, level, message)
}

// Debug logs at DEBUG level when enabled for this logger's component.
func (l *Logger) Debug(format string, args ...any) {
	if !DebugEnabledFor(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Component returns the component tag this logger was created with.
func (l *Logger) Component() string {
	return l.component
}

// WithComponent returns a logger sharing the underlying writer but tagged
// with a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, logger: l.logger}
}

//nolint:gochecknoglobals // package-level convenience logger
var defaultLogger = NewLogger("parley")

// Debugf logs to the package-level logger.
func Debugf(format string, args ...any) { defaultLogger.Debug(format, args...) }

// Infof logs to the package-level logger.
func Infof(format string, args ...any) { defaultLogger.Info(format, args...) }

// Warnf logs to the package-level logger.
func Warnf(format string, args ...any) { defaultLogger.Warn(format, args...) }

// Errorf logs and returns the formatted error. Use when a failure needs
// both logging and propagation:
//
//	return logx.Errorf("decode response: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns the wrapped error.
// Returns nil when err is nil so call sites can wrap unconditionally.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
