package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const serviceName = "payment-links"

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	l.SetLevel(levelFromEnv(os.Getenv("LOG_LEVEL")))
	return l
}

func levelFromEnv(v string) logrus.Level {
	if v == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(v))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Base returns the process-wide logger.
func Base() *logrus.Logger {
	return base
}

// SetLevel overrides the level chosen from LOG_LEVEL.
func SetLevel(level string) {
	base.SetLevel(levelFromEnv(level))
}

// New returns an entry tagged with the service name and the given context fields,
// e.g. logging.New(logrus.Fields{"function": "handleWebhook", "requestId": id}).
func New(fields logrus.Fields) *logrus.Entry {
	e := base.WithField("service", serviceName)
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return e
}

// Component is shorthand for New with only a component name.
func Component(name string) *logrus.Entry {
	return New(logrus.Fields{"component": name})
}

// Discard returns an entry that writes nowhere; handy in tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
