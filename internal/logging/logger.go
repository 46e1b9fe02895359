package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "news-gatherer"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. With logFile set, JSON lines are also written
// to a rotating file; the returned closer flushes it.
func New(environment, level, logFile string) (zerolog.Logger, io.Closer, error) {
	return newLogger(os.Stdout, environment, level, logFile)
}

func newLogger(stdout io.Writer, environment, level, logFile string) (zerolog.Logger, io.Closer, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}

	var writer io.Writer = stdout
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		writer = zerolog.ConsoleWriter{
			Out:        stdout,
			TimeFormat: time.RFC3339,
		}
	}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(logFile); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("create log directory for %s: %w", path, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(writer, rotator)
		closer = rotator
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return logger, closer, nil
}
