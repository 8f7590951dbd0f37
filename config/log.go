package config

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// NamedLogger creates a named package logger.
func NamedLogger(name string) *logrus.Logger {
	return &logrus.Logger{
		Out: os.Stderr,
		Formatter: &CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{
				ForceColors: true,
			},
			Name: name,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.InfoLevel,
	}
}

// Logger builds the named logger at the configured level
func (c *Config) Logger(name string) *logrus.Logger {
	log := NamedLogger(name)
	if level, err := logrus.ParseLevel(strings.ToLower(c.LogLevel)); err == nil {
		log.SetLevel(level)
	}
	return log
}

// CustomTextFormatter prefixes messages with the logger name and the caller position
type CustomTextFormatter struct {
	logrus.TextFormatter
	Name string
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	_, file, no, _ := runtime.Caller(5)
	entry.Message = fmt.Sprintf("[%s %-15s:%03d] %s", f.Name, path.Base(file), no, entry.Message)
	return f.TextFormatter.Format(entry)
}
