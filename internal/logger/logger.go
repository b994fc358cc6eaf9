// Package logger configures the global logrus logger.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facewatch/internal/config"
	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunIDKey is the field that tags every line of one process run.
const RunIDKey = "run_id"

// runHook stamps the run id on every entry.
type runHook struct {
	id string
}

func (h runHook) Levels() []log.Level { return log.AllLevels }

func (h runHook) Fire(e *log.Entry) error {
	e.Data[RunIDKey] = h.id
	return nil
}

// Init configures level, formatter and outputs of the global logger and
// returns the run id attached to every entry. Logs go to stderr, plus a
// rotating file when cfg.File is set.
func Init(cfg config.LogConfig) string {
	return initWith(cfg, os.Stderr)
}

func initWith(cfg config.LogConfig, console io.Writer) string {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&formatter.Formatter{
		TimestampFormat: "15:04:05",
		HideKeys:        false,
		NoColors:        console != os.Stderr,
		FieldsOrder:     []string{RunIDKey, "file"},
	})

	writers := []io.Writer{console}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			log.Errorf("Failed to create log directory for '%s': %v", cfg.File, err)
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				LocalTime:  true,
				Compress:   true,
			})
		}
	}
	log.SetOutput(io.MultiWriter(writers...))

	id := uuid.NewString()
	log.StandardLogger().ReplaceHooks(log.LevelHooks{})
	log.AddHook(runHook{id: id})

	log.WithField("level", level.String()).Debug("Logger initialized")
	return id
}
