// Package persist provides the logging facility shared by the metadata
// server, the file servers, and the client library. State itself is never
// persisted across restarts (the core keeps everything in memory), but every
// component still wants a consistent, leveled log stream.
package persist

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pfs-project/pfs/build"
)

// Logger wraps the standard library's log.Logger, adding a Debug tier that
// is silent unless build.DEBUG is set. A STARTUP line is written when the
// logger is created and a SHUTDOWN line when it is closed, so that a log
// file's lifetime is visible just by scanning it.
type Logger struct {
	*log.Logger
	closeFn func() error
}

// NewLogger creates a Logger that appends to the file at filename, creating
// it if necessary.
func NewLogger(filename string) (*Logger, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return newLogger(f, f.Close)
}

// NewWriterLogger creates a Logger that writes to w. Close is a no-op beyond
// the SHUTDOWN line; callers that own w's lifecycle should close it
// themselves.
func NewWriterLogger(w io.Writer) *Logger {
	l, _ := newLogger(w, func() error { return nil })
	return l
}

func newLogger(w io.Writer, closeFn func() error) (*Logger, error) {
	l := &Logger{
		Logger:  log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		closeFn: closeFn,
	}
	l.Println("STARTUP: pfs logging has started.")
	return l, nil
}

// Debugln calls Println only if build.DEBUG is set.
func (l *Logger) Debugln(v ...interface{}) {
	if build.DEBUG {
		l.Output(2, "[DEBUG] "+fmt.Sprintln(v...))
	}
}

// Debugf calls Printf only if build.DEBUG is set.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if build.DEBUG {
		l.Output(2, "[DEBUG] "+fmt.Sprintf(format, v...))
	}
}

// Severe logs a message that indicates a significant, non-fatal problem,
// and additionally invokes build.Severe so debug builds can choose to
// panic.
func (l *Logger) Severe(v ...interface{}) {
	l.Output(2, "[SEVERE] "+fmt.Sprintln(v...))
	build.Severe(v...)
}

// Close writes a SHUTDOWN line and releases the underlying writer.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: pfs logging has terminated.")
	return l.closeFn()
}
