// Package logger configures the global logrus logger.
package logger

import (
	"io"
	"os"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ayusman/tryon/internal/config"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 20
	MaxBackups = 3
	MaxAgeDays = 14
)

// Init sets the level, formatter and outputs of the global logger. Logs always
// go to stderr; when cfg.File is set they are also written to a rotating file.
// The returned closer releases the file.
func Init(cfg config.LogConfig) io.Closer {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		NoColors:        cfg.File != "",
		FieldsOrder:     []string{"component", "profile"},
	})

	writers := []io.Writer{os.Stderr}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			LocalTime:  true,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}

	log.SetOutput(io.MultiWriter(writers...))

	if cfg.File != "" {
		log.Infof("Logging additionally to file: %s", cfg.File)
	}
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
