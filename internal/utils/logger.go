package utils

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is a simple logger for the application
type Logger struct {
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
}

// NewLogger creates a new logger writing info to stdout and warnings/errors to stderr
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a logger with explicit destinations
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLog:  log.New(out, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLog:  log.New(errOut, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLog: log.New(errOut, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Discard returns a logger that drops everything, used by tests
func Discard() *Logger {
	return NewLoggerTo(io.Discard, io.Discard)
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	_ = l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warn logs a recoverable problem
func (l *Logger) Warn(format string, v ...interface{}) {
	_ = l.warnLog.Output(2, fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	_ = l.errorLog.Output(2, fmt.Sprintf(format, v...))
}
