// Package log is a small leveled logger shared by every component. The
// level is read atomically so the audio callback can log without locking.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a case-insensitive name to a LogLevel.
// Returns LevelInfo and false if the name is not recognised.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var (
	currentLevel atomic.Uint32
	logger       = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel returns the global logging level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Configure applies a level name from configuration. debug forces
// LevelDebug. Unknown names set LevelInfo and return false.
func Configure(name string, debug bool) bool {
	if debug {
		SetLevel(LevelDebug)
		return true
	}
	level, ok := ParseLevel(name)
	SetLevel(level)
	return ok
}

// SetOutput redirects all log output. The TUI uses it to keep the
// terminal clean.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// emit pads the tag so messages line up: "[INFO]  msg", "[DEBUG] msg".
func emit(level LogLevel, msg string) {
	tag := "[" + level.String() + "]"
	logger.Printf("%-7s %s", tag, msg)
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		emit(LevelDebug, fmt.Sprintf(format, v...))
	}
}

func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		emit(LevelInfo, fmt.Sprintf(format, v...))
	}
}

func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		emit(LevelWarn, fmt.Sprintf(format, v...))
	}
}

func Errorf(format string, v ...any) {
	if enabled(LevelError) {
		emit(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf always logs, then exits with status 1.
func Fatalf(format string, v ...any) {
	emit(LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func Debug(v ...any) {
	if enabled(LevelDebug) {
		emit(LevelDebug, fmt.Sprint(v...))
	}
}

func Info(v ...any) {
	if enabled(LevelInfo) {
		emit(LevelInfo, fmt.Sprint(v...))
	}
}

func Warn(v ...any) {
	if enabled(LevelWarn) {
		emit(LevelWarn, fmt.Sprint(v...))
	}
}

func Error(v ...any) {
	if enabled(LevelError) {
		emit(LevelError, fmt.Sprint(v...))
	}
}

// Fatal always logs, then exits with status 1.
func Fatal(v ...any) {
	emit(LevelFatal, fmt.Sprint(v...))
	os.Exit(1)
}
