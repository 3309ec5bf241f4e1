package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger
var commandLogger *logrus.Logger

var commandFieldMap = logrus.FieldMap{
	logrus.FieldKeyTime:  "time",
	logrus.FieldKeyLevel: "level",
	logrus.FieldKeyMsg:   "command_msg",
}

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	// Child process output is echoed through its own logger so it can be
	// silenced without losing pipeline progress messages.
	commandLogger = logrus.New()
	commandLogger.SetOutput(os.Stdout)
	commandLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap:      commandFieldMap,
	})
	commandLogger.SetLevel(logrus.WarnLevel)
}

func GetLogger() *logrus.Logger {
	return logger
}

func GetCommandLogger() *logrus.Logger {
	return commandLogger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

// SetVerbosity maps a repeated -v count onto both loggers.
// 0 keeps the defaults, 1 shows command output, 2 enables debug and 3+ trace.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		return
	case count == 1:
		commandLogger.SetLevel(logrus.InfoLevel)
	case count == 2:
		logger.SetLevel(logrus.DebugLevel)
		commandLogger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.TraceLevel)
		commandLogger.SetLevel(logrus.TraceLevel)
	}
}

// SetFormat switches both loggers to "text" or "json" output. Command
// output keeps its own message key in either format.
func SetFormat(format string) error {
	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		commandLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, FieldMap: commandFieldMap})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
		commandLogger.SetFormatter(&logrus.JSONFormatter{FieldMap: commandFieldMap})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return nil
}
