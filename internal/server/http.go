package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth"
	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
)

// RouteRegistrar mounts a service's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// RouteFunc adapts a plain registration function
type RouteFunc func(r *gin.RouterGroup)

func (f RouteFunc) RegisterRoutes(r *gin.RouterGroup) { f(r) }

// Routes groups registrars by the credential they require
type Routes struct {
	Public    []RouteRegistrar // no credentials
	Protected []RouteRegistrar // user access token
	Webhook   []RouteRegistrar // Factory bearer token
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HTTPServer struct {
	server *http.Server
	hub    *sse.Hub
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	health HealthChecker,
	hub *sse.Hub,
	routes Routes,
) *HTTPServer {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{SkipPaths: []string{"/health"}}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := health.HealthCheck(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"time":    time.Now().Format(time.RFC3339),
			"streams": hub.Total(),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	for _, r := range routes.Public {
		r.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.JWTAuth(jwtManager, log))
	for _, r := range routes.Protected {
		r.RegisterRoutes(protected)
	}

	webhook := api.Group("")
	webhook.Use(middleware.FactoryToken(config.Factory.Token, log))
	for _, r := range routes.Webhook {
		r.RegisterRoutes(webhook)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
	}).Handler(router)

	return &HTTPServer{
		server: &http.Server{
			Addr:              config.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: config.Server.ReadTimeout,
		},
		hub:    hub,
		logger: log,
	}
}

// Handler exposes the routed handler, used by tests
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ends open event streams first; Shutdown would otherwise wait on them
// until ctx expires.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server", zap.Int("streams", s.hub.Total()))
	s.hub.CloseAll()
	return s.server.Shutdown(ctx)
}
