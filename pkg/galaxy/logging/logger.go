// Package logging provides the daemon's line-oriented logger: a Logger
// that is safe (and silent) when nil, cheap sublogger derivation for
// per-component prefixes, and colorized warning/error output.
package logging

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/fatih/color"
)

// DebugEnabled controls whether Debug* methods produce output. It is set
// once from the GALAXY_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("GALAXY_DEBUG") == "1"
}

// Logger is the daemon's logging handle. Its zero value is usable, and a nil
// *Logger silently discards everything, so components can be constructed
// without a logger in tests.
type Logger struct {
	prefix string
}

// RootLogger is the root logger from which every component sublogger
// descends.
var RootLogger = &Logger{}

// Sublogger derives a new logger with name appended to the prefix chain,
// e.g. RootLogger.Sublogger("dispatch").Sublogger("fanout").
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix}
}

func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Print logs with fmt.Print semantics.
func (l *Logger) Print(v ...interface{}) {
	if l != nil {
		l.output(3, fmt.Sprint(v...))
	}
}

// Printf logs with fmt.Printf semantics.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Debug logs with fmt.Print semantics, but only when DebugEnabled.
func (l *Logger) Debug(v ...interface{}) {
	if l != nil && DebugEnabled {
		l.output(3, fmt.Sprint(v...))
	}
}

// Debugf logs with fmt.Printf semantics, but only when DebugEnabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && DebugEnabled {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Warn logs err with a yellow "Warning:" prefix.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(3, color.YellowString("Warning: %v", err))
	}
}

// Warnf formats and logs a warning message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, color.YellowString("Warning: "+format, v...))
	}
}

// Error logs err with a red "Error:" prefix.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(3, color.RedString("Error: %v", err))
	}
}

// Errorf formats and logs an error message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, color.RedString("Error: "+format, v...))
	}
}

// Writer returns an io.Writer whose writes are split into lines and logged
// via Print.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &lineWriter{callback: l.Print}
}

// lineWriter buffers partial lines and invokes callback once per complete
// line.
type lineWriter struct {
	callback func(...interface{})
	buffer   []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buffer = append(w.buffer, p...)
	var processed int
	remaining := w.buffer
	for {
		index := indexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCR(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}
	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}
	return len(p), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
