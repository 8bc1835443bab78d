package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the bootstrap logger at info level. Once configuration is
// loaded the process switches to SetLevel(cfg.LogLevel).
func New() zerolog.Logger {
	return SetLevel(zerolog.InfoLevel)
}

// SetLevel builds the process logger: JSON lines on stdout with unix
// timestamps and caller info, filtered at level.
func SetLevel(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}
