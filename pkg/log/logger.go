// Structured logging for the filter lifecycle host
//
// Provides leveled logging with structured fields, per-component
// prefixes and text or JSON output.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota

	// INFO level for general informational messages
	INFO

	// WARN level for warning messages
	WARN

	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a LogLevel
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// OutputFormat specifies the output format for log messages
type OutputFormat int

const (
	// FormatText outputs human-readable text format
	FormatText OutputFormat = iota
	// FormatJSON outputs machine-readable JSON format
	FormatJSON
)

// Fields is a map of structured logging fields
type Fields map[string]interface{}

// Logger is the main logging interface
type Logger struct {
	mu         sync.Mutex
	prefix     string
	writer     io.Writer
	level      LogLevel
	timeFormat string
	outFormat  OutputFormat
	fields     Fields
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		writer:     w,
		level:      level,
		timeFormat: "2006-01-02 15:04:05.000",
	}
}

var defaultLogger = New(os.Stderr, INFO)

// Default returns the process-wide default logger.
func Default() *Logger { return defaultLogger }

// SetLevel changes the minimum level emitted.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetFormat changes the output format.
func (l *Logger) SetFormat(f OutputFormat) {
	l.mu.Lock()
	l.outFormat = f
	l.mu.Unlock()
}

// WithPrefix returns a child logger with a component prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{
		prefix:     prefix,
		writer:     l.writer,
		level:      l.level,
		timeFormat: l.timeFormat,
		outFormat:  l.outFormat,
		fields:     copyFields(l.fields),
	}
	return child
}

// WithFields returns a child logger carrying persistent fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	child := l.WithPrefix(l.prefix)
	if child.fields == nil {
		child.fields = make(Fields, len(fields))
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func copyFields(f Fields) Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	merged := copyFields(l.fields)
	if merged == nil && len(fields) > 0 {
		merged = make(Fields, len(fields))
	}
	for k, v := range fields {
		merged[k] = v
	}

	now := time.Now()
	if l.outFormat == FormatJSON {
		entry := map[string]interface{}{
			"time":  now.Format(time.RFC3339Nano),
			"level": level.String(),
			"msg":   msg,
		}
		if l.prefix != "" {
			entry["component"] = l.prefix
		}
		for k, v := range merged {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.writer, "{\"level\":\"ERROR\",\"msg\":\"log marshal: %v\"}\n", err)
			return
		}
		l.writer.Write(append(data, '\n'))
		return
	}

	var sb strings.Builder
	sb.WriteString(now.Format(l.timeFormat))
	sb.WriteString(" [")
	sb.WriteString(level.String())
	sb.WriteString("]")
	if l.prefix != "" {
		sb.WriteString(" ")
		sb.WriteString(l.prefix)
		sb.WriteString(":")
	}
	sb.WriteString(" ")
	sb.WriteString(msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, merged[k])
		}
	}
	sb.WriteString("\n")
	io.WriteString(l.writer, sb.String())
}

// Debug logs a formatted message at DEBUG level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Info logs a formatted message at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warn logs a formatted message at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...), nil)
}

// Error logs a formatted message at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}

// DebugFields logs a message with structured fields at DEBUG level.
func (l *Logger) DebugFields(msg string, fields Fields) { l.log(DEBUG, msg, fields) }

// InfoFields logs a message with structured fields at INFO level.
func (l *Logger) InfoFields(msg string, fields Fields) { l.log(INFO, msg, fields) }

// WarnFields logs a message with structured fields at WARN level.
func (l *Logger) WarnFields(msg string, fields Fields) { l.log(WARN, msg, fields) }

// ErrorFields logs a message with structured fields at ERROR level.
func (l *Logger) ErrorFields(msg string, fields Fields) { l.log(ERROR, msg, fields) }
