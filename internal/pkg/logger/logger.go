package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger. Children created with With and Named share the
// parent's level, so SetLevel affects the whole tree.
type Logger struct {
	*zap.Logger
	level  zap.AtomicLevel
	config *Config
}

// New creates a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger configuration: %w", err)
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(cfg.encoder(), cfg.sink(), level)

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &Logger{Logger: zap.New(core, opts...), level: level, config: cfg}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel(), config: DefaultConfig()}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), level: l.level, config: l.config}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), level: l.level, config: l.config}
}

// SetLevel changes the minimum level at runtime
func (l *Logger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(level))
}

func (l *Logger) Config() *Config {
	return l.config
}

// Global installs l as zap's process-wide logger for libraries that log
// through zap.L(). The returned func restores the previous one.
func (l *Logger) Global() func() {
	return zap.ReplaceGlobals(l.Logger)
}
