package logging

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dyike/PainRadar/config"
)

// Configure applies the level and format of cfg to the standard logrus
// logger. An unknown level keeps info and is reported.
func Configure(cfg *config.Config) {
	ConfigureLogger(log.StandardLogger(), cfg)
}

func ConfigureLogger(logger *log.Logger, cfg *config.Config) {
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	} else if cfg.LogLevel != "" {
		parsed, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		} else {
			level = parsed
		}
	}
	logger.SetLevel(level)
}

// Silence discards everything below warnings, for interactive commands that
// own the terminal.
func Silence(out io.Writer) {
	log.SetOutput(out)
	if log.GetLevel() > log.WarnLevel {
		log.SetLevel(log.WarnLevel)
	}
}
