package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// InitLogger configures logrus for terminal or append-only file output.
// File-based logs use RFC3339 timestamps and no colors.
func InitLogger(logfile, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	if logfile == "" {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
			DisableQuote:  true,
			PadLevelText:  true,
		})
		return nil
	}

	file, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("unable to write to log file %q: %w", logfile, err)
	}
	logrus.SetOutput(file)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return nil
}
