package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
	projectdata "github.com/reefs-ai/reefs-backend/internal/project/data"
	tracedata "github.com/reefs-ai/reefs-backend/internal/trace/data"
	userdata "github.com/reefs-ai/reefs-backend/internal/user/data"
)

// Data holds the shared storage handles
type Data struct {
	DB       *database.DB
	Redis    *redis.Client // nil when redis is disabled
	Notifier notify.Notifier
	Logger   *logger.Logger
}

// HealthCheck pings the database and, when configured, redis
func (d *Data) HealthCheck(ctx context.Context) error {
	if err := d.DB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Models lists every table of the service
func Models() []any {
	var models []any
	models = append(models, userdata.Models()...)
	models = append(models, projectdata.Models()...)
	models = append(models, tracedata.Models()...)
	return models
}

// NewData opens the database and, when enabled, redis. Without redis change
// notifications stay inside this process.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	d := &Data{DB: db, Logger: log}

	if config.Redis.Enabled {
		rc, err := redis.New(&config.Redis, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.Redis = rc
		d.Notifier = notify.NewRedis(rc, log)
	} else {
		log.Warn("redis disabled, using in-process notifications and rate limiting is off")
		d.Notifier = notify.NewLocal()
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
		if d.Redis != nil {
			if err := d.Redis.Close(); err != nil {
				log.Error("failed to close redis", zap.Error(err))
			}
		}
	}
	return d, cleanup, nil
}
