package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

// DB is the shared gorm handle plus the migration and transaction helpers
type DB struct {
	*gorm.DB
	config *Config
	logger *logger.Logger
}

// New 打开配置的数据库并确认连接可用
func New(cfg *Config, log *logger.Logger) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log, cfg),
		PrepareStmt:    cfg.PrepareStmt,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	cfg.tune(sqlDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connected", zap.String("driver", cfg.Driver), zap.String("target", cfg.target()))
	return &DB{DB: db, config: cfg, logger: log}, nil
}

// NewSQLiteMemory opens a private in-memory database. Used by repository tests.
func NewSQLiteMemory(log *logger.Logger) (*DB, error) {
	cfg := DefaultConfig()
	cfg.Driver = DriverSQLite
	cfg.Path = ":memory:"
	cfg.LogLevel = "silent"
	cfg.PrepareStmt = false
	return New(cfg, log)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	db.logger.Info("closing database connection")
	return sqlDB.Close()
}

// HealthCheck pings the database
func (db *DB) HealthCheck(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate migrates models when automigrate is enabled in configuration.
func (db *DB) AutoMigrate(models ...any) error {
	if !db.config.AutoMigrate {
		db.logger.Warn("auto migration is disabled in configuration")
		return nil
	}
	return db.Migrate(models...)
}

// Migrate migrates models unconditionally.
func (db *DB) Migrate(models ...any) error {
	db.logger.Info("running migration", zap.Int("models", len(models)))
	if err := db.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

// IsRecordNotFoundError checks if the error is a record not found error
func IsRecordNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports unique constraint violations on either driver.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
