package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config defines the database configuration
type Config struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite

	// PostgreSQL connection settings
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"` // disable, require, verify-ca, verify-full
	Timezone string `mapstructure:"timezone"`

	// SQLite file path, or ":memory:"
	Path string `mapstructure:"path"`

	MaxIdleConns    int           `mapstructure:"maxidleconns"`
	MaxOpenConns    int           `mapstructure:"maxopenconns"`
	ConnMaxLifetime time.Duration `mapstructure:"connmaxlifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connmaxidletime"`

	LogLevel      string        `mapstructure:"loglevel"` // silent, error, warn, info
	SlowThreshold time.Duration `mapstructure:"slowthreshold"`
	PrepareStmt   bool          `mapstructure:"preparestmt"`
	AutoMigrate   bool          `mapstructure:"automigrate"`
}

// DefaultConfig returns the default database configuration
func DefaultConfig() *Config {
	return &Config{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "reefs",
		SSLMode:  "disable",
		Timezone: "UTC",
		Path:     "data/reefs.db",

		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,

		LogLevel:      "warn",
		SlowThreshold: 200 * time.Millisecond,
		PrepareStmt:   true,
		AutoMigrate:   true,
	}
}

// Validate validates the database configuration
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Host == "" {
			return errors.New("database host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return errors.New("database port must be between 1 and 65535")
		}
		if c.User == "" {
			return errors.New("database user is required")
		}
		if c.DBName == "" {
			return errors.New("database name is required")
		}
		if !slices.Contains([]string{"disable", "require", "verify-ca", "verify-full"}, c.SSLMode) {
			return errors.New("invalid SSL mode, must be one of: disable, require, verify-ca, verify-full")
		}
	case DriverSQLite:
		if c.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	if _, ok := gormLevels[c.LogLevel]; !ok {
		return errors.New("invalid log level, must be one of: silent, error, warn, info")
	}
	if c.MaxIdleConns < 0 || c.MaxOpenConns < 0 {
		return errors.New("connection pool sizes must be >= 0")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return errors.New("max idle connections cannot exceed max open connections")
	}
	if c.SlowThreshold < 0 {
		return errors.New("slow threshold must be >= 0")
	}
	return nil
}

// DSN returns the driver specific connection string
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		if c.Path == ":memory:" {
			return ":memory:"
		}
		return c.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.Timezone)
}

func (c *Config) dialector() (gorm.Dialector, error) {
	if c.Driver != DriverSQLite {
		return postgres.Open(c.DSN()), nil
	}
	if c.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return sqlite.Open(c.DSN()), nil
}

func (c *Config) tune(sqlDB *sql.DB) {
	if c.Driver == DriverSQLite {
		// one connection keeps ":memory:" shared and serializes writers
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return
	}
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

// target names the database for logs without leaking credentials
func (c *Config) target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.DBName)
}
