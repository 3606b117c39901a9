// Package logging builds the structured loggers handed to every component.
// There is no package-level logger: callers construct one per run and pass it
// down explicitly, usually narrowed with WithField("stage", ...).
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options selects where records go and how verbose they are
type Options struct {
	Level   string    // debug, info, warn, error
	Console io.Writer // nil disables console output
	File    io.Writer // nil disables file output
}

// New returns a logrus logger writing key=value records to every configured
// sink. With no sinks it discards everything.
func New(opts Options) *logrus.Logger {
	var sinks []io.Writer
	if opts.Console != nil {
		sinks = append(sinks, opts.Console)
	}
	if opts.File != nil {
		sinks = append(sinks, opts.File)
	}

	logger := logrus.New()
	logger.SetLevel(ParseLevel(opts.Level))
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	switch len(sinks) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(sinks[0])
	default:
		logger.SetOutput(io.MultiWriter(sinks...))
	}
	return logger
}

// Discard returns an entry that drops every record
func Discard() *logrus.Entry {
	return logrus.NewEntry(New(Options{}))
}

// OpenFile opens (appending) the run log at path
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// ParseLevel maps a level name to a logrus.Level, defaulting to info.
// Unlike logrus.ParseLevel it never fails.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dbg":
		return logrus.DebugLevel
	case "err":
		return logrus.ErrorLevel
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	switch lvl {
	case logrus.DebugLevel, logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel:
		return lvl
	case logrus.TraceLevel:
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

// DeferredWriter forwards writes to a target chosen after the logger was
// built. Until Set is called, writes are dropped.
type DeferredWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Set installs the target; nil drops further writes
func (d *DeferredWriter) Set(w io.Writer) {
	d.mu.Lock()
	d.w = w
	d.mu.Unlock()
}

func (d *DeferredWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w == nil {
		return len(p), nil
	}
	return d.w.Write(p)
}
