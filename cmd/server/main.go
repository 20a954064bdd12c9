package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/injector"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	defer log.Global()()

	log.Info("config loaded successfully", zap.String("path", *configFile))

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	go func() {
		if err := app.HTTPServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully", zap.String("addr", config.Server.Addr()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.HTTPServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
