package injector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth"
	authbiz "github.com/reefs-ai/reefs-backend/internal/auth/biz"
	authservice "github.com/reefs-ai/reefs-backend/internal/auth/service"
	chatbiz "github.com/reefs-ai/reefs-backend/internal/chat/biz"
	"github.com/reefs-ai/reefs-backend/internal/chat/llm"
	chatservice "github.com/reefs-ai/reefs-backend/internal/chat/service"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/data"
	factorybiz "github.com/reefs-ai/reefs-backend/internal/factory/biz"
	factorydata "github.com/reefs-ai/reefs-backend/internal/factory/data"
	factoryservice "github.com/reefs-ai/reefs-backend/internal/factory/service"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/factory"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/pkg/oauth2"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
	"github.com/reefs-ai/reefs-backend/internal/pkg/workerpool"
	projectbiz "github.com/reefs-ai/reefs-backend/internal/project/biz"
	projectservice "github.com/reefs-ai/reefs-backend/internal/project/service"
	"github.com/reefs-ai/reefs-backend/internal/server"
	"github.com/reefs-ai/reefs-backend/internal/tools"
	toolsservice "github.com/reefs-ai/reefs-backend/internal/tools/service"
	tracebiz "github.com/reefs-ai/reefs-backend/internal/trace/biz"
	tracedata "github.com/reefs-ai/reefs-backend/internal/trace/data"
	traceservice "github.com/reefs-ai/reefs-backend/internal/trace/service"
	userservice "github.com/reefs-ai/reefs-backend/internal/user/service"
)

// Data layer helpers

func provideDB(d *data.Data) *database.DB {
	return d.DB
}

// provideRedisClient may return nil; consumers treat that as "no redis".
func provideRedisClient(d *data.Data) *redis.Client {
	return d.Redis
}

func provideNotifier(d *data.Data) notify.Notifier {
	return d.Notifier
}

func provideWorkerPool(config *conf.Config, log *logger.Logger) (*workerpool.Pool, func(), error) {
	pool, err := workerpool.New(&config.WorkerPool, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init worker pool: %w", err)
	}
	return pool, pool.Shutdown, nil
}

func provideFactoryClient(config *conf.Config, log *logger.Logger) (*factory.Client, func(), error) {
	client, err := factory.New(factory.Config{
		BaseURL: config.Factory.BaseURL,
		Token:   config.Factory.Token,
		Timeout: config.Factory.Timeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init factory client: %w", err)
	}
	if config.Factory.Token == "" {
		log.Warn("factory token not configured, factory calls and webhooks will be rejected")
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close factory client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// Auth

func provideJWTManager(config *conf.Config) *auth.JWTManager {
	return auth.NewJWTManager(&config.Auth)
}

func provideStateStore(rc *redis.Client) authbiz.StateStore {
	if rc == nil {
		return authbiz.NewMemoryStateStore()
	}
	return authbiz.NewRedisStateStore(rc)
}

func provideGoogleSignIn(config *conf.Config, log *logger.Logger) (oauth2.SignInProvider, error) {
	g := config.Auth.Google
	if !g.Enabled() {
		log.Info("google sign-in disabled")
		return nil, nil
	}
	provider, err := oauth2.NewGoogleSignIn(&oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init google sign-in: %w", err)
	}
	return provider, nil
}

func provideAuthUseCase(
	userRepo authbiz.UserRepo,
	states authbiz.StateStore,
	google oauth2.SignInProvider,
	jwtManager *auth.JWTManager,
	config *conf.Config,
	log *logger.Logger,
) *authbiz.AuthUseCase {
	return authbiz.NewAuthUseCase(userRepo, states, google, jwtManager, config.Auth.Google.StateTTL, log)
}

// Chat

func provideLLMClient(config *conf.Config, log *logger.Logger) *llm.Client {
	return llm.NewClient(&config.OpenAI, log)
}

func provideChatUseCase(
	config *conf.Config,
	streamer chatbiz.Streamer,
	projects chatbiz.ProjectStore,
	catalog *tools.Catalog,
	log *logger.Logger,
) *chatbiz.ChatUseCase {
	configured := config.OpenAI.APIKey != ""
	if !configured {
		log.Warn("openai api key not configured, chat requests will be refused")
	}
	return chatbiz.NewChatUseCase(configured, streamer, projects, catalog, log)
}

// Factory

func provideFactoryRepo(client *factory.Client, config *conf.Config) factorybiz.FactoryRepo {
	return factorydata.NewFactoryRepo(client, &config.Factory)
}

func provideFactoryUseCase(
	repo factorybiz.FactoryRepo,
	projects factorybiz.BuiltWorkflowStore,
	pool *workerpool.Pool,
	config *conf.Config,
	log *logger.Logger,
) *factorybiz.FactoryUseCase {
	return factorybiz.NewFactoryUseCase(repo, projects, pool, config.Factory.DefaultModel, log)
}

// Traces

func provideSnapshotFeed(repo tracebiz.TraceRepo, notifier notify.Notifier, config *conf.Config, log *logger.Logger) *tracedata.SnapshotFeed {
	return tracedata.NewSnapshotFeed(repo, notifier, config.Trace.SnapshotLimit, log)
}

func provideTraceUseCase(repo tracebiz.TraceRepo, feed tracebiz.Feed, notifier notify.Notifier, config *conf.Config, log *logger.Logger) *tracebiz.TraceUseCase {
	return tracebiz.NewTraceUseCase(repo, feed, notifier, config.Trace.SnapshotLimit, log)
}

func provideTraceService(uc *tracebiz.TraceUseCase, hub *sse.Hub, config *conf.Config, log *logger.Logger) *traceservice.TraceService {
	return traceservice.NewTraceService(uc, hub, config.Trace.Heartbeat, log)
}

func provideProjectService(uc *projectbiz.ProjectUseCase, hub *sse.Hub, config *conf.Config, log *logger.Logger) *projectservice.ProjectService {
	return projectservice.NewProjectService(uc, hub, config.Trace.Heartbeat, log)
}

// Server

func provideRoutes(
	authSvc *authservice.AuthService,
	catalogSvc *toolsservice.CatalogService,
	userSvc *userservice.UserService,
	projectSvc *projectservice.ProjectService,
	chatSvc *chatservice.ChatService,
	traceSvc *traceservice.TraceService,
	factorySvc *factoryservice.FactoryService,
) server.Routes {
	return server.Routes{
		Public: []server.RouteRegistrar{authSvc, catalogSvc},
		Protected: []server.RouteRegistrar{
			userSvc,
			projectSvc,
			chatSvc,
			traceSvc,
			factorySvc,
		},
		Webhook: []server.RouteRegistrar{
			server.RouteFunc(traceSvc.RegisterCollectorRoutes),
			server.RouteFunc(userSvc.RegisterWebhookRoutes),
		},
	}
}
