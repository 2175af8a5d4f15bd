package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
}

type zerologLogger struct {
	log zerolog.Logger
}

func New(level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &zerologLogger{log: zl}
}

func (l *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, keysAndValues ...interface{}) {
	l.log.Fatal().Fields(fields(keysAndValues)).Msg(msg)
}

// fields собирает пары key/value в map для zerolog
func fields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}

	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		m[key] = keysAndValues[i+1]
	}
	return m
}
