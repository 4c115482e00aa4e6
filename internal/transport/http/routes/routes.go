package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/security"
	"github.com/arklim/platform-authn/internal/transport/http/handlers"
	"github.com/arklim/platform-authn/internal/transport/http/middleware"
	"github.com/arklim/platform-authn/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth        *usecase.AuthenticationService
	Credentials *usecase.CredentialService
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Signer   *security.SessionSigner
	Database DatabaseChecker
	Cache    CacheChecker
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	checks := make([]handlers.ReadinessCheck, 0, 2)
	if deps.Database != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "database", Probe: deps.Database.Ping})
	}
	if deps.Cache != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Probe: deps.Cache.HealthCheck})
	}

	healthHandler := handlers.NewHealthHandler(checks...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Signer, deps.Logger)
	authHandler.RegisterRoutes(api.Group("/auth"))

	passwordHandler := handlers.NewPasswordHandler(deps.Services.Auth, deps.Services.Credentials, deps.Logger)
	passwordHandler.RegisterRoutes(api.Group("/passwords"))

	return r
}
