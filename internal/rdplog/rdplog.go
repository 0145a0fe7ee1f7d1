// Package rdplog provides the structured logger every package in this
// module uses, a thin wrapper over logrus matching the teacher's
// internal/logging surface: a package-level default plus per-component
// loggers carrying a "component" field and, once a session starts, a
// correlation ID field.
package rdplog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a type alias for structured log fields, mirroring logrus.Fields
// so callers never need to import logrus directly.
type Fields = logrus.Fields

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses and applies a level name ("debug", "info", "warn",
// "error"), returning an error for an unrecognized name.
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	root.SetLevel(lvl)
	return nil
}

// SetOutput redirects where log lines are written, used by tests and by
// cmd/rdp-core-client's --log-file flag.
func SetOutput(w io.Writer) { root.SetOutput(w) }

// SetJSON switches between the teacher's plain text formatter and JSON,
// for hosts that ingest logs into structured pipelines.
func SetJSON(enabled bool) {
	if enabled {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Logger is a component-scoped logger. It is an interface so components
// under test can supply a no-op or recording stub.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type entry struct{ *logrus.Entry }

func (e entry) WithField(key string, value interface{}) Logger {
	return entry{e.Entry.WithField(key, value)}
}

func (e entry) WithFields(fields Fields) Logger {
	return entry{e.Entry.WithFields(fields)}
}

func (e entry) WithError(err error) Logger {
	return entry{e.Entry.WithError(err)}
}

// For returns a Logger scoped to component, e.g. "connector", "channels",
// "activestage". Every entry carries a "component" field so log lines can
// be filtered per subsystem.
func For(component string) Logger {
	return entry{root.WithField("component", component)}
}

// WithCorrelationID returns l scoped to the given correlation ID, used to
// tie together every log line for one connection (the rs/xid-based
// per-connection ID).
func WithCorrelationID(l Logger, id string) Logger {
	return l.WithField("correlation_id", id)
}
