//
// Copyright (c) 2019, 2024 Oracle and/or its affiliates.  All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package logger provides logging functionality.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel defines a set of logging levels that used to control logging output.
//
// The logging levels are ordered. The available levels in ascending order are:
//
//	Fine
//	Trace
//	Debug
//	Info
//	Warn
//	Error
//
// Enabling logging at a given level also enables logging at all higher levels.
// For example, if desired logging level for the logger is set to Debug, the
// messages of Debug level, as well as Info, Warn and Error levels are all logged.
//
// In addition there is a level Off that can be used to turn off logging.
type LogLevel int

const (
	// Fine represents a level used to log tracing messages.
	Fine LogLevel = 10

	// Trace represents a level used to log per-attempt events of a request.
	Trace LogLevel = 15

	// Debug represents a level used to log debug messages.
	Debug LogLevel = 20

	// Info represents a level used to log informative messages.
	Info LogLevel = 30

	// Warn represents a level used to log warning messages.
	Warn LogLevel = 40

	// Error represents a level used to log error messages.
	Error LogLevel = 50

	// Off turns off logging.
	Off LogLevel = 99
)

// String returns a string representation for the log level.
//
// This implements the fmt.Stringer interface.
func (level LogLevel) String() string {
	switch level {
	case Fine:
		return "Fine"
	case Trace:
		return "Trace"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Off:
		return "Off"
	default:
		return "N/A"
	}
}

// ParseLevel returns the LogLevel with the specified name, as returned by
// String. Matching is case-insensitive.
func ParseLevel(name string) (LogLevel, error) {
	for _, level := range []LogLevel{Fine, Trace, Debug, Info, Warn, Error, Off} {
		if strings.EqualFold(level.String(), name) {
			return level, nil
		}
	}
	return Off, fmt.Errorf("unknown log level %q", name)
}

// Logger represents a logging object that is a wrapper for a logrus logger,
// adding capabilities to control the desired level of messages to log and
// whether the log entry time is displayed in local time zone or UTC.
type Logger struct {
	// entry is the logrus entry that carries the structured fields of this
	// logger, if any.
	entry *logrus.Entry

	// level specifies the desired logging level.
	level LogLevel

	// timezone specifies the suffix that is displayed for log entry time.
	// This is an empty string if using local time zone, is "UTC " if using UTC time.
	timezone string
}

// New creates a logger that writes messages of the specified logging level to the specified io.Writer.
// If useLocalTime is set to false, the log entry displays UTC time.
//
// If specified level is set to Off or a not available value, returns nil that
// represents logging is disabled.
func New(out io.Writer, level LogLevel, useLocalTime bool) *Logger {
	if out == nil {
		return nil
	}

	switch level {
	case Fine, Trace, Debug, Info, Warn, Error:
	case Off:
		return nil
	default:
		return nil
	}

	var tz string
	if !useLocalTime {
		tz = "UTC "
	}

	lr := logrus.New()
	lr.SetOutput(out)
	// Levels are filtered by Logger itself.
	lr.SetLevel(logrus.TraceLevel)
	lr.SetFormatter(&lineFormatter{utc: !useLocalTime})

	return &Logger{
		entry:    logrus.NewEntry(lr),
		level:    level,
		timezone: tz,
	}
}

// With returns a logger that attaches the specified key and value to every
// message it writes. The returned logger shares the output and level of l.
func (l *Logger) With(key string, value interface{}) *Logger {
	if l == nil {
		return nil
	}

	return &Logger{
		entry:    l.entry.WithField(key, value),
		level:    l.level,
		timezone: l.timezone,
	}
}

// Enabled reports whether messages of the specified level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && level != Off && l.level <= level
}

// Fine writes the specified message to the logger if the desired logging level is set to Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Fine(messageFormat string, messageArgs ...interface{}) {
	l.Log(Fine, messageFormat, messageArgs...)
}

// Trace writes the specified message to the logger if the desired logging
// level is set to Trace or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Trace(messageFormat string, messageArgs ...interface{}) {
	l.Log(Trace, messageFormat, messageArgs...)
}

// Debug writes the specified message to the logger if the desired logging level
// is set to Debug or a value lower than Debug such as Trace or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Debug(messageFormat string, messageArgs ...interface{}) {
	l.Log(Debug, messageFormat, messageArgs...)
}

// Info writes the specified message to the logger if the desired logging level
// is set to Info or a value lower than Info such as Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Info(messageFormat string, messageArgs ...interface{}) {
	l.Log(Info, messageFormat, messageArgs...)
}

// Warn writes the specified message to the logger if the desired logging level
// is set to Warn or a value lower than Warn such as Info, Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Warn(messageFormat string, messageArgs ...interface{}) {
	l.Log(Warn, messageFormat, messageArgs...)
}

// Error writes the specified message to the logger if the desired logging level
// is set to Error or a value lower than Error such as Warn, Info, Debug or Fine.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Error(messageFormat string, messageArgs ...interface{}) {
	l.Log(Error, messageFormat, messageArgs...)
}

// Log writes the specified message to logger if the specified logging level is
// the same as or higher than logger's desired level.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Log(level LogLevel, messageFormat string, messageArgs ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	l.entry.Log(logrusLevel(level), l.timezone+label(level)+fmt.Sprintf(messageFormat, messageArgs...))
}

// LogWithFn calls the function fn if the specified logging level is the same as
// or higher than logger's desired level, writes the message returned from fn to
// the logger.
func (l *Logger) LogWithFn(level LogLevel, fn func() string) {
	if !l.Enabled(level) {
		return
	}

	l.entry.Log(logrusLevel(level), l.timezone+label(level)+fn())
}

// label returns a label for the specified logging level used to display in log entry.
func label(level LogLevel) string {
	switch level {
	case Fine:
		return "[FINE]  "
	case Trace:
		return "[TRACE] "
	case Debug:
		return "[DEBUG] "
	case Info:
		return "[INFO]  "
	case Warn:
		return "[WARN]  "
	case Error:
		return "[ERROR] "
	default:
		return ""
	}
}

func logrusLevel(level LogLevel) logrus.Level {
	switch level {
	case Fine, Trace:
		return logrus.TraceLevel
	case Debug:
		return logrus.DebugLevel
	case Info:
		return logrus.InfoLevel
	case Warn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// lineFormatter renders entries as
//
//	2006/01/02 15:04:05.000000 UTC [INFO]  message key=value ...
//
// The time zone and level label are already part of the message.
type lineFormatter struct {
	utc bool
}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	t := e.Time
	if f.utc {
		t = t.UTC()
	}

	var b bytes.Buffer
	b.WriteString(t.Format("2006/01/02 15:04:05.000000 "))
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// DefaultLogger represents a default logger that writes warning and higher priority events to stderr.
var DefaultLogger *Logger = New(os.Stderr, Warn, false)
