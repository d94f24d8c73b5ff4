// Package logging wraps logrus the way the rest of the engine expects to
// log: dropped responses and policy denials at Warn, connection loss at
// Error, with structured fields instead of formatted prose wherever a
// caller has a tag, mailbox, or UID to attach.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin façade over *logrus.Logger so call sites depend on this
// package, not logrus directly, keeping the choice of backend swappable
// without touching every caller.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing structured text to stderr at Info level.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{Logger: l}
}

// WithTag returns an entry pre-populated with the tag field, for the
// router's dispatch logging.
func (l *Logger) WithTag(tag string) *logrus.Entry {
	return l.WithField("tag", tag)
}

// WithMailbox returns an entry pre-populated with the mailbox field.
func (l *Logger) WithMailbox(name string) *logrus.Entry {
	return l.WithField("mailbox", name)
}
