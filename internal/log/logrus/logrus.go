package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/meteosahel/tasktrack/internal/log"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a new log.Logger implementation based on logrus.
func NewLogrus(l *logrus.Entry) log.Logger {
	return logger{Entry: l}
}

func (l logger) WithValues(kv map[string]interface{}) log.Logger {
	newLogger := l.Entry.WithFields(kv)
	return NewLogrus(newLogger)
}
