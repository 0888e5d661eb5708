package logging

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/fatih/color"
)

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end of
// a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
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

	return len(buffer), nil
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything, which lets every component
// constructor accept an optional logger without nil-checking at every call
// site. It is designed to use the standard logger provided by the log
// package, so it respects any flags set for that logger. It is safe for
// concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}

	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		prefix: prefix,
	}
}

// output is the internal logging method.
func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Print logs information with semantics equivalent to fmt.Print, but only if
// the current level is at least LevelInfo.
func (l *Logger) Print(v ...interface{}) {
	if l != nil && currentLevel >= LevelInfo {
		l.output(3, fmt.Sprint(v...))
	}
}

// Printf logs information with semantics equivalent to fmt.Printf, but only
// if the current level is at least LevelInfo.
func (l *Logger) Printf(format string, v ...interface{}) {
	if l != nil && currentLevel >= LevelInfo {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Println logs information with semantics equivalent to fmt.Println, but
// only if the current level is at least LevelInfo.
func (l *Logger) Println(v ...interface{}) {
	if l != nil && currentLevel >= LevelInfo {
		l.output(3, fmt.Sprintln(v...))
	}
}

// Writer returns an io.Writer that writes lines using Println.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &writer{
		callback: func(s string) {
			l.Println(s)
		},
	}
}

// Debug logs information with semantics equivalent to fmt.Print, but only if
// the current level is at least LevelDebug.
func (l *Logger) Debug(v ...interface{}) {
	if l != nil && currentLevel >= LevelDebug {
		l.output(3, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, but only
// if the current level is at least LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && currentLevel >= LevelDebug {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Debugln logs information with semantics equivalent to fmt.Println, but
// only if the current level is at least LevelDebug.
func (l *Logger) Debugln(v ...interface{}) {
	if l != nil && currentLevel >= LevelDebug {
		l.output(3, fmt.Sprintln(v...))
	}
}

// DebugWriter returns an io.Writer that writes lines using Debugln.
func (l *Logger) DebugWriter() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &writer{
		callback: func(s string) {
			l.Debugln(s)
		},
	}
}

// Warn logs error information with a warning prefix and yellow color, but
// only if the current level is at least LevelWarn.
func (l *Logger) Warn(err error) {
	if l != nil && currentLevel >= LevelWarn {
		l.output(3, color.YellowString("Warning: %v", err))
	}
}

// Error logs error information with an error prefix and red color, but only
// if the current level is at least LevelError.
func (l *Logger) Error(err error) {
	if l != nil && currentLevel >= LevelError {
		l.output(3, color.RedString("Error: %v", err))
	}
}
