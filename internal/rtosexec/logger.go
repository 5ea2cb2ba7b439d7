// Logging for the executive's host-side diagnostics.
//
// This is distinct from the Trace/TraceSink path (trace.go): traces are the
// spec's own wire format for scheduler-level events (start/stop/idle/...)
// and are meant to be cheap enough to emit from an ISR-equivalent context.
// The logger below is for the ordinary "pool exhausted", "scheduler
// started" diagnostics a hosted Go process wants on stderr or in a file.

package rtosexec

import (
	"os"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LOGGER_CONFIG_USE_JSON_DEFAULT             = false
	LOGGER_CONFIG_LEVEL_DEFAULT                = "info"
	LOGGER_CONFIG_LOG_FILE_DEFAULT             = "" // i.e. stderr
	LOGGER_CONFIG_LOG_FILE_MAX_SIZE_MB_DEFAULT = 10
	LOGGER_CONFIG_LOG_FILE_MAX_BACKUP_DEFAULT  = 1

	LOGGER_TIMESTAMP_FORMAT     = time.RFC3339
	LOGGER_COMPONENT_FIELD_NAME = "comp"
)

type LoggerConfig struct {
	UseJson          bool   `yaml:"use_json"`
	Level            string `yaml:"level"`
	LogFile          string `yaml:"log_file"`
	LogFileMaxSizeMB int    `yaml:"log_file_max_size_mb"`
	LogFileMaxBackup int    `yaml:"log_file_max_backup_num"`
}

func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		UseJson:          LOGGER_CONFIG_USE_JSON_DEFAULT,
		Level:            LOGGER_CONFIG_LEVEL_DEFAULT,
		LogFile:          LOGGER_CONFIG_LOG_FILE_DEFAULT,
		LogFileMaxSizeMB: LOGGER_CONFIG_LOG_FILE_MAX_SIZE_MB_DEFAULT,
		LogFileMaxBackup: LOGGER_CONFIG_LOG_FILE_MAX_BACKUP_DEFAULT,
	}
}

var LogTextFormatter = &logrus.TextFormatter{
	DisableColors:   false,
	FullTimestamp:   true,
	TimestampFormat: LOGGER_TIMESTAMP_FORMAT,
}

var LogJsonFormatter = &logrus.JSONFormatter{
	TimestampFormat: LOGGER_TIMESTAMP_FORMAT,
}

var RootLogger = logrus.New()

func init() {
	RootLogger.Out = os.Stderr
	RootLogger.Formatter = LogTextFormatter
	RootLogger.Level = logrus.InfoLevel
}

// SetLogger applies a LoggerConfig to RootLogger; it is safe to call more
// than once (e.g. once with defaults at package init, again after a config
// file is loaded).
func SetLogger(logCfg *LoggerConfig) error {
	if logCfg == nil {
		logCfg = DefaultLoggerConfig()
	}

	if logCfg.Level != "" {
		level, err := logrus.ParseLevel(logCfg.Level)
		if err != nil {
			return err
		}
		RootLogger.SetLevel(level)
	}

	if logCfg.UseJson {
		RootLogger.SetFormatter(LogJsonFormatter)
	} else {
		RootLogger.SetFormatter(LogTextFormatter)
	}

	switch logCfg.LogFile {
	case "stderr", "":
		RootLogger.SetOutput(os.Stderr)
	case "stdout":
		RootLogger.SetOutput(os.Stdout)
	default:
		logDir := path.Dir(logCfg.LogFile)
		if _, err := os.Stat(logDir); err != nil {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				return err
			}
		}
		RootLogger.SetOutput(&lumberjack.Logger{
			Filename:   logCfg.LogFile,
			MaxSize:    logCfg.LogFileMaxSizeMB,
			MaxBackups: logCfg.LogFileMaxBackup,
		})
	}

	return nil
}

func NewCompLogger(compName string) *logrus.Entry {
	return RootLogger.WithField(LOGGER_COMPONENT_FIELD_NAME, compName)
}
