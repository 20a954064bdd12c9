package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines the logger configuration
type Config struct {
	Level            string     `mapstructure:"level"`  // debug, info, warn, error
	Format           string     `mapstructure:"format"` // json, console
	Output           string     `mapstructure:"output"` // console, stderr, file, both
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enablecaller"`
	EnableStacktrace bool       `mapstructure:"enablestacktrace"`
}

// FileConfig is the lumberjack rotation policy
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"` // MB
	MaxAge     int    `mapstructure:"maxage"`  // days
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           "console",
		EnableCaller:     true,
		EnableStacktrace: true,
		File: FileConfig{
			Filename:   "logs/reefs.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

func (c *Config) writesFile() bool {
	return c.Output == "file" || c.Output == "both"
}

// Validate 校验日志配置
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Level)
	}

	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q, must be json or console", c.Format)
	}

	switch c.Output {
	case "console", "stderr", "file", "both":
	default:
		return fmt.Errorf("invalid log output %q, must be console, stderr, file or both", c.Output)
	}

	if c.writesFile() {
		f := c.File
		switch {
		case f.Filename == "":
			return fmt.Errorf("log file name is required for output %q", c.Output)
		case f.MaxSize <= 0:
			return fmt.Errorf("log file maxsize must be positive")
		case f.MaxAge <= 0:
			return fmt.Errorf("log file maxage must be positive")
		case f.MaxBackups < 0:
			return fmt.Errorf("log file maxbackups must not be negative")
		}
	}
	return nil
}

func (c *Config) encoder() zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if c.Format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func (c *Config) sink() zapcore.WriteSyncer {
	var ws []zapcore.WriteSyncer
	switch c.Output {
	case "console", "both":
		ws = append(ws, zapcore.Lock(os.Stdout))
	case "stderr":
		ws = append(ws, zapcore.Lock(os.Stderr))
	}
	if c.writesFile() {
		if err := os.MkdirAll(filepath.Dir(c.File.Filename), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		}
		ws = append(ws, zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File.Filename,
			MaxSize:    c.File.MaxSize,
			MaxAge:     c.File.MaxAge,
			MaxBackups: c.File.MaxBackups,
			Compress:   c.File.Compress,
			LocalTime:  true,
		}))
	}
	return zapcore.NewMultiWriteSyncer(ws...)
}
