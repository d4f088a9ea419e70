package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/driveassist/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger with the given level and output style
func Init(level string, isService bool) error {
	InitWithWriter(os.Stdout, isService)

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetLogLevel(lvl)

	return nil
}

// InitWithWriter sets up the console writer on out without touching the level.
func InitWithWriter(out io.Writer, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name to a LogLevel
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(log.Error(), err)
}

// WarnWithCode logs a warning with a specific error code
func WarnWithCode(err errors.Error) *LogEvent {
	return withCode(log.Warn(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(log.Fatal(), err)
}

func withCode(ev *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{ev.
		Str("error_code", string(err.Code())).
		Str("error_kind", string(err.Kind())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

type defaultLogger struct{}

// Default returns a Logger backed by the package-level zerolog logger
func Default() Logger {
	return defaultLogger{}
}

func (defaultLogger) Debug() *LogEvent { return Debug() }
func (defaultLogger) Info() *LogEvent  { return Info() }
func (defaultLogger) Warn() *LogEvent  { return Warn() }
func (defaultLogger) Error() *LogEvent { return Error() }

func (defaultLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return ErrorWithCode(err)
}

func (defaultLogger) WarnWithCode(err errors.Error) *LogEvent {
	return WarnWithCode(err)
}

func (defaultLogger) ErrorWithContext(err errors.Error, component, operation string) *LogEvent {
	ev := ErrorWithCode(err)
	ev.Str("component", component).Str("operation", operation)

	return ev
}

// Code extracts the coded error from err's chain, or wraps err under fallback.
func Code(err error, fallback errors.ErrorCode) errors.Error {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return errors.New().Wrap(fallback, err)
}

type componentWriter struct {
	component string
}

// Writer returns an io.Writer that logs every line it receives at info
// level, tagged with component. Used for access logs of HTTP handlers.
func Writer(component string) io.Writer {
	return componentWriter{component: component}
}

func (w componentWriter) Write(p []byte) (int, error) {
	log.Info().Str("component", w.component).Msg(strings.TrimRight(string(p), "\n"))

	return len(p), nil
}
