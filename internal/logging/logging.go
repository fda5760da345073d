// Package logging configures the logrus logger shared by all commands.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrLogOutputRequired is used when no log output is specified.
var ErrLogOutputRequired = errors.New("you must specify a log output")

type invalidLogFormatError struct {
	format string
}

func (e invalidLogFormatError) Error() string {
	return fmt.Sprintf("logger format %s is invalid", e.format)
}

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the logging settings
type Config struct {
	Level  string `mapstructure:"log-level"`
	Format string `mapstructure:"log-format"`
	Output string `mapstructure:"log-output"` // "stdout", "stderr" or a file path
}

// DefaultConfig logs info and above as text to stderr
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatText, Output: "stderr"}
}

// AddFlagsToCommand registers the logging flags on cmd
func AddFlagsToCommand(cmd *cobra.Command, cfg *Config) {
	def := DefaultConfig()
	cmd.PersistentFlags().StringVar(&cfg.Level, "log-level", def.Level, "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.Format, "log-format", def.Format, "Log format (text or json)")
	cmd.PersistentFlags().StringVar(&cfg.Output, "log-output", def.Output, "Log output: stdout, stderr or a file path")
}

// Configure applies cfg to logger
func Configure(logger *logrus.Logger, cfg *Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return invalidLogFormatError{format: cfg.Format}
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	logger.SetOutput(out)
	return nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "":
		return nil, ErrLogOutputRequired
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log output %s: %w", output, err)
		}
		return f, nil
	}
}
