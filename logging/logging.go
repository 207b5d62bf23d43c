// Package logging provides the leveled, printf-style logger every other
// package in crawlserv calls into. It stands in for the original codebase's
// code.google.com/p/log4go, which stopped resolving when code.google.com was
// shut down; github.com/sirupsen/logrus gives the same global,
// leveled-printf shape (Debugf/Infof/Warnf/Errorf in place of
// Fine/Debug/Info/Warn/Error) without requiring a dead host.
package logging

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
}

// SetLevel parses one of "fine", "debug", "info", "warn", "error" (the
// teacher's log4go level names, minus "fine" which maps to debug) and
// applies it to the package logger.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "fine", "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func Fine(format string, args ...interface{})  { log.Debugf(format, args...) }
func Debug(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(format string, args ...interface{}) { log.Errorf(format, args...) }

// WithModule returns a sub-logger tagging every entry with the originating
// module name, so log rows persisted via store.InsertLog can be attributed.
func WithModule(module string) *logrus.Entry {
	return log.WithField("module", module)
}

const invalidUTF8Marker = " [invalid UTF-8 character(s) removed]"

// ScrubUTF8 strips invalid UTF-8 byte sequences from s, appending
// invalidUTF8Marker when anything was removed. This is the pure function
// backing store.InsertLog's UTF-8 repair contract (spec Design Notes); kept
// isolated here so it can be unit-tested without a database.
func ScrubUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	removedAny := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			removedAny = true
			i++
			continue
		}
		b.WriteRune(r)
		i += size
	}
	if removedAny {
		b.WriteString(invalidUTF8Marker)
	}
	return b.String()
}
