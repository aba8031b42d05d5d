package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
	"github.com/DanielFGray/postgres.garden-sub001/internal/oauth"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/handlers"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Identity     *usecase.IdentityService
	Registration *usecase.RegistrationService
	Sessions     *usecase.SessionService
	Emails       *usecase.EmailService
	OAuth        *oauth.Service
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Metrics     *middleware.HTTPMetrics
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	r.Use(middleware.SessionAuth(deps.Config.Cookie.Name, deps.Services.Sessions, deps.Logger))

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

	requireUser := middleware.RequireUser()

	// register/login/logout/me live at the root; the rest of the auth
	// surface sits under /api.
	authHandler := handlers.NewAuthHandler(
		deps.Services.Identity,
		deps.Services.Registration,
		deps.Services.Sessions,
		deps.Config.Cookie,
	)
	authHandler.RegisterRoutes(&r.RouterGroup, buildLoginGuards(deps)...)

	api := r.Group("/api")
	{
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Identity)
		passwordHandler.RegisterRoutes(api, requireUser, buildResetGuards(deps)...)

		emailHandler := handlers.NewEmailHandler(deps.Services.Emails)
		emailHandler.RegisterRoutes(api, requireUser)
	}

	if deps.Services.OAuth != nil {
		oauthHandler := handlers.NewOAuthHandler(deps.Services.OAuth, deps.Config.Cookie)
		oauthHandler.RegisterRoutes(r.Group("/auth"))
	}

	return r
}

func buildLoginGuards(deps Dependencies) []gin.HandlerFunc {
	return buildGuards(deps, "login", deps.Config.RateLimit.LoginLimit, deps.Config.RateLimit.LoginWindow, time.Minute)
}

func buildResetGuards(deps Dependencies) []gin.HandlerFunc {
	return buildGuards(deps, "password_reset", deps.Config.RateLimit.ResetLimit, deps.Config.RateLimit.ResetWindow, time.Hour)
}

func buildGuards(deps Dependencies, name string, limit int, window, fallbackWindow time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = fallbackWindow
	}
	rule := middleware.RateLimitRule{Name: name, Limit: limit, Window: window}
	return []gin.HandlerFunc{deps.RateLimiter.Limit(rule)}
}
