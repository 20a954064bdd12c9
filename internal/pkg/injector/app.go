package injector

import (
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	HTTPServer *server.HTTPServer
}

func newApp(config *conf.Config, log *logger.Logger, httpServer *server.HTTPServer) *App {
	return &App{
		Config:     config,
		Logger:     log,
		HTTPServer: httpServer,
	}
}
