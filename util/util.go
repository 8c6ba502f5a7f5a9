package util

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/juju/loggo"
	"github.com/pkg/errors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"bb-battery-state/config"
)

// GetLoggingWriter returns a new io.Writer suitable for logging.
func GetLoggingWriter(cfg *config.Config) (io.Writer, error) {
	var writer io.Writer = os.Stdout
	if cfg.LogFile != "" {
		dirname := path.Dir(cfg.LogFile)
		if _, err := os.Stat(dirname); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "checking log folder %s", dirname)
			}
			if err := os.MkdirAll(dirname, 0o711); err != nil {
				return nil, errors.Wrapf(err, "creating log folder %s", dirname)
			}
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5, // megabytes
			MaxBackups: 2,
			MaxAge:     28,    //days
			Compress:   false, // disabled by default
		}
	}
	return writer, nil
}

// SetupLogging points the default loggo writer at the configured
// destination and applies the configured log level to all modules.
func SetupLogging(cfg *config.Config) error {
	writer, err := GetLoggingWriter(cfg)
	if err != nil {
		return errors.Wrap(err, "fetching log writer")
	}
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		return errors.Wrap(err, "replacing default log writer")
	}
	if err := loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", cfg.LogLevel)); err != nil {
		return errors.Wrap(err, "configuring loggers")
	}
	return nil
}
