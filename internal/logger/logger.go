package logger

import (
	"io"
	"os"
	"time"

	"github.com/lshigami/testcert/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs a console logger on the global zerolog instance. It runs
// before configuration is loaded.
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(consoleWriter()).With().Timestamp().Logger()
}

// Configure applies the configured level and, when LOG_FILE is set, adds a
// rotating JSON file sink.
func Configure(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, falling back to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.File == "" {
		return
	}
	file := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.Logger = zerolog.New(io.MultiWriter(consoleWriter(), file)).With().Timestamp().Logger()
	log.Info().Str("file", cfg.Log.File).Str("level", level.String()).Msg("File logging enabled")
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}
