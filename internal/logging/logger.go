// Package logging provides config-driven categorized logging for OS4.
// Every category is a named child of one zap logger. Logging is controlled by
// debug_mode in the config; when false every category returns a no-op logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot      Category = "boot"      // System init, ROM plugging
	CategoryShell     Category = "shell"     // Shell stack activate/exit/reclaim
	CategoryKeys      Category = "keys"      // Key dispatch decisions
	CategoryBuffer    Category = "buffer"    // Buffer store allocation and packing
	CategorySecondary Category = "secondary" // Secondary assignments, partial key
	CategoryArgument  Category = "argument"  // Semi-merged argument entry
	CategoryBus       Category = "bus"       // Extension messages
	CategoryTimer     Category = "timer"     // Interval timer and timeouts
	CategoryStore     Category = "store"     // Continuous memory persistence
	CategoryConfig    Category = "config"    // Config load and reload
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryBoot, CategoryShell, CategoryKeys, CategoryBuffer, CategorySecondary,
	CategoryArgument, CategoryBus, CategoryTimer, CategoryStore, CategoryConfig,
}

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
	// Dir receives <date>_os4.log. Empty means stderr.
	Dir string
}

// Logger wraps a sugared zap logger bound to one category
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	base      *zap.Logger
	logFile   *os.File
	opts      Options
	optsMu    sync.RWMutex
)

// Initialize builds the shared zap core from o.
// Should be called once at startup; calling it again replaces the core.
func Initialize(o Options) error {
	CloseAll()

	optsMu.Lock()
	opts = o
	optsMu.Unlock()

	if !o.DebugMode {
		setBase(nil)
		return nil
	}

	level, err := zapcore.ParseLevel(defaultString(o.Level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if o.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		name := fmt.Sprintf("%s_os4.log", time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(o.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		loggersMu.Lock()
		logFile = f
		loggersMu.Unlock()
		sink = zapcore.Lock(f)
	}

	setBase(zap.New(zapcore.NewCore(enc, sink, level)))

	boot := Get(CategoryBoot)
	boot.Info("=== OS4 logging initialized ===")
	boot.Info("Log level: %s", level)
	if len(o.Categories) > 0 {
		enabled := 0
		for cat, on := range o.Categories {
			if on {
				enabled++
			}
			boot.Debug("Category '%s': %v", cat, on)
		}
		boot.Info("Enabled categories: %d/%d", enabled, len(o.Categories))
	} else {
		boot.Info("All categories enabled (no category filter)")
	}
	return nil
}

// SetBase routes all categories into an existing zap logger (the CLI logger).
// Category filters from the last Initialize still apply; nil disables logging.
func SetBase(l *zap.Logger) {
	optsMu.Lock()
	opts.DebugMode = l != nil
	optsMu.Unlock()
	setBase(l)
}

func setBase(l *zap.Logger) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// IsDebugMode returns whether logging is enabled at all
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		return &Logger{category: category}
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Enabled reports whether this logger writes anywhere.
func (l *Logger) Enabled() bool {
	return l.sugar != nil
}

// CloseAll flushes the core and closes the log file (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if base != nil {
		_ = base.Sync()
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Shell(format string, args ...interface{})      { Get(CategoryShell).Info(format, args...) }
func ShellDebug(format string, args ...interface{}) { Get(CategoryShell).Debug(format, args...) }
func ShellWarn(format string, args ...interface{})  { Get(CategoryShell).Warn(format, args...) }

func Keys(format string, args ...interface{})      { Get(CategoryKeys).Info(format, args...) }
func KeysDebug(format string, args ...interface{}) { Get(CategoryKeys).Debug(format, args...) }

func Buffer(format string, args ...interface{})      { Get(CategoryBuffer).Info(format, args...) }
func BufferDebug(format string, args ...interface{}) { Get(CategoryBuffer).Debug(format, args...) }
func BufferWarn(format string, args ...interface{})  { Get(CategoryBuffer).Warn(format, args...) }

func Secondary(format string, args ...interface{})      { Get(CategorySecondary).Info(format, args...) }
func SecondaryDebug(format string, args ...interface{}) { Get(CategorySecondary).Debug(format, args...) }

func Argument(format string, args ...interface{})      { Get(CategoryArgument).Info(format, args...) }
func ArgumentDebug(format string, args ...interface{}) { Get(CategoryArgument).Debug(format, args...) }

func Bus(format string, args ...interface{})      { Get(CategoryBus).Info(format, args...) }
func BusDebug(format string, args ...interface{}) { Get(CategoryBus).Debug(format, args...) }

func TimerDebug(format string, args ...interface{}) { Get(CategoryTimer).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Config(format string, args ...interface{})     { Get(CategoryConfig).Info(format, args...) }
func ConfigWarn(format string, args ...interface{}) { Get(CategoryConfig).Warn(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures one operation and logs its duration to a category
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
