package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/config"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/database"
	kafkainfra "github.com/DanielFGray/postgres.garden-sub001/internal/infra/kafka"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/logger"
	redisinfra "github.com/DanielFGray/postgres.garden-sub001/internal/infra/redis"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/telemetry"
	"github.com/DanielFGray/postgres.garden-sub001/internal/oauth"
	postgresrepo "github.com/DanielFGray/postgres.garden-sub001/internal/repository/postgres"
	redisrepo "github.com/DanielFGray/postgres.garden-sub001/internal/repository/redis"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/middleware"
	"github.com/DanielFGray/postgres.garden-sub001/internal/transport/http/routes"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
	kafka  *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	if cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(ctx, cfg.Postgres.DSN(), log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	var (
		publisher port.NotificationPublisher
		producer  *kafkainfra.Producer
	)
	if cfg.Kafka.Enabled {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka unavailable, using stub publisher", zap.Error(err))
			publisher = kafkainfra.NewStubPublisher(log)
		} else {
			publisher = kafkainfra.NewNotificationPublisher(producer, cfg.App, log)
			log.Info("kafka notification publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		publisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)
	sessionCache := redisrepo.NewSessionCache(redisClient.Client(), cfg.Redis.SessionPrefix)

	sessionService := usecase.NewSessionService(repos.Users, repos.Sessions, sessionCache, log)
	identityService := usecase.NewIdentityService(
		repos.Users, repos.Credentials, repos.Emails, repos.Unregistered,
		repos.Tx, sessionService, publisher, log,
	)
	registrationService := usecase.NewRegistrationService(
		repos.Users, repos.Credentials, repos.Emails, repos.Authentications,
		repos.Tx, publisher, log,
	)
	linkingService := usecase.NewLinkingService(
		repos.Users, repos.Emails, repos.Authentications, registrationService,
		repos.Tx, publisher, log,
	)
	emailService := usecase.NewEmailService(repos.Users, repos.Emails, repos.Tx, publisher, log)

	var oauthService *oauth.Service
	providers := buildProviders(cfg)
	if len(providers) > 0 {
		if cfg.OAuth.StateSecret == "" {
			log.Warn("oauth providers configured without a state secret; provider login disabled")
		} else {
			state := oauth.NewStateCodec(cfg.OAuth.StateSecret)
			oauthService = oauth.NewService(providers, linkingService, sessionService, nil, state, log)
		}
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	rateLimitWindow := maxDuration(cfg.RateLimit.LoginWindow, cfg.RateLimit.ResetWindow, time.Minute)
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), "auth:rate-limit", rateLimitWindow*2)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Identity:     identityService,
			Registration: registrationService,
			Sessions:     sessionService,
			Emails:       emailService,
			OAuth:        oauthService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
		kafka:  producer,
	}, nil
}

func buildProviders(cfg *config.AppConfig) []oauth.Provider {
	var providers []oauth.Provider
	if cfg.OAuth.GitHub.Enabled() {
		providers = append(providers, oauth.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			cfg.OAuth.GitHub.Scopes,
			cfg.App.RootURL+"/auth/github/callback",
		))
	}
	return providers
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func maxDuration(values ...time.Duration) time.Duration {
	var max time.Duration
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
