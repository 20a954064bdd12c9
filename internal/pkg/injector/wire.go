//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	authdata "github.com/reefs-ai/reefs-backend/internal/auth/data"
	authservice "github.com/reefs-ai/reefs-backend/internal/auth/service"
	chatbiz "github.com/reefs-ai/reefs-backend/internal/chat/biz"
	"github.com/reefs-ai/reefs-backend/internal/chat/llm"
	chatservice "github.com/reefs-ai/reefs-backend/internal/chat/service"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/data"
	factorybiz "github.com/reefs-ai/reefs-backend/internal/factory/biz"
	factoryservice "github.com/reefs-ai/reefs-backend/internal/factory/service"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
	projectbiz "github.com/reefs-ai/reefs-backend/internal/project/biz"
	projectdata "github.com/reefs-ai/reefs-backend/internal/project/data"
	"github.com/reefs-ai/reefs-backend/internal/server"
	"github.com/reefs-ai/reefs-backend/internal/tools"
	toolsservice "github.com/reefs-ai/reefs-backend/internal/tools/service"
	tracebiz "github.com/reefs-ai/reefs-backend/internal/trace/biz"
	tracedata "github.com/reefs-ai/reefs-backend/internal/trace/data"
	userbiz "github.com/reefs-ai/reefs-backend/internal/user/biz"
	userdata "github.com/reefs-ai/reefs-backend/internal/user/data"
	userservice "github.com/reefs-ai/reefs-backend/internal/user/service"
	"github.com/reefs-ai/reefs-backend/internal/workflow"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	// Data layer
	dataProviderSet,

	// Repositories
	repositoryProviderSet,

	// Use cases
	useCaseProviderSet,

	// HTTP services
	httpServiceProviderSet,

	// Servers
	serverProviderSet,
)

// Data layer providers
var dataProviderSet = wire.NewSet(
	data.NewData,
	provideDB,
	provideRedisClient,
	provideNotifier,
	provideWorkerPool,
	provideFactoryClient,
	tools.Default,
)

// Repository providers
var repositoryProviderSet = wire.NewSet(
	authdata.NewAuthUserRepo,
	userdata.NewProfileRepo,
	projectdata.NewProjectRepo,
	tracedata.NewTraceRepo,
	provideSnapshotFeed,
	provideFactoryRepo,
	wire.Bind(new(tracebiz.Feed), new(*tracedata.SnapshotFeed)),
)

// Use case providers
var useCaseProviderSet = wire.NewSet(
	provideJWTManager,
	provideStateStore,
	provideGoogleSignIn,
	provideAuthUseCase,
	userbiz.NewUserUseCase,
	projectbiz.NewProjectUseCase,
	provideLLMClient,
	provideChatUseCase,
	provideTraceUseCase,
	provideFactoryUseCase,
	wire.Bind(new(workflow.ToolSet), new(*tools.Catalog)),
	wire.Bind(new(chatbiz.Streamer), new(*llm.Client)),
	wire.Bind(new(chatbiz.ProjectStore), new(*projectbiz.ProjectUseCase)),
	wire.Bind(new(factorybiz.BuiltWorkflowStore), new(*projectbiz.ProjectUseCase)),
)

// HTTP service providers
var httpServiceProviderSet = wire.NewSet(
	authservice.NewAuthService,
	userservice.NewUserService,
	chatservice.NewChatService,
	provideTraceService,
	provideProjectService,
	factoryservice.NewFactoryService,
	toolsservice.NewCatalogService,
)

// Server providers
var serverProviderSet = wire.NewSet(
	sse.NewHub,
	provideRoutes,
	server.NewHTTPServer,
	wire.Bind(new(server.HealthChecker), new(*data.Data)),
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}
