// Package logging builds the structured zap logger shared by the kernel and
// the runtime.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config represents logger configuration
type Config struct {
	// Level is one of debug, info, warn, error or off
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns info level console logging
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatConsole}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", FormatConsole, FormatJSON:
		return nil
	}
	return fmt.Errorf("unsupported logging.format: %q", c.Format)
}

// New builds a logger writing to stderr
func New(config Config) (*zap.Logger, error) {
	return NewWithWriter(config, os.Stderr)
}

// NewWithWriter builds a logger writing to w. Level "off" yields a no-op
// logger.
func NewWithWriter(config Config, w io.Writer) (*zap.Logger, error) {
	if strings.EqualFold(config.Level, "off") {
		return zap.NewNop(), nil
	}
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch strings.ToLower(config.Format) {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core), nil
}

func parseLevel(text string) (zapcore.Level, error) {
	switch strings.ToLower(text) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "off":
		return zapcore.FatalLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(text))
	if err != nil {
		return level, fmt.Errorf("invalid logging.level: %w", err)
	}
	return level, nil
}
