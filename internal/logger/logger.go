package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

type Entry = logrus.Entry

type Fields = logrus.Fields

const timestampFormat = "2006-01-02 15:04:05"

// Init configures Log. DEBUG=true forces debug level regardless of level.
func Init(level, format string) {
	if strings.EqualFold(format, "text") {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	Log.SetOutput(os.Stdout)
	Log.SetLevel(parseLevel(level))
	if os.Getenv("DEBUG") == "true" {
		Log.SetLevel(logrus.DebugLevel)
	}
}

// WithComponent returns an entry tagged with the emitting component.
func WithComponent(name string) *Entry {
	return Log.WithField("component", name)
}

// Discard silences Log; used by tests.
func Discard() {
	Log.SetOutput(io.Discard)
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
