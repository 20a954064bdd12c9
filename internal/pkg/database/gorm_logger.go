package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

func newGormLogger(log *logger.Logger, cfg *Config) gormlogger.Interface {
	level, ok := gormLevels[cfg.LogLevel]
	if !ok {
		level = gormlogger.Warn
	}
	return &gormLogger{logger: log.Named("gorm"), logLevel: level, slowThreshold: cfg.SlowThreshold}
}

// gormLogger 把 GORM 日志转到 zap, 带上请求的 request_id 与 user_id
type gormLogger struct {
	logger        *logger.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.logLevel = level
	return &n
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		l.logger.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		l.logger.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		l.logger.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.logLevel >= gormlogger.Error:
		l.logger.WithContext(ctx).Error("database query error", append(fields, zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		l.logger.WithContext(ctx).Warn("slow SQL query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.logLevel >= gormlogger.Info:
		l.logger.WithContext(ctx).Info("database query", fields...)
	}
}
