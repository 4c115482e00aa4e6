package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/infra/config"
	"github.com/arklim/platform-authn/internal/infra/database"
	kafkainfra "github.com/arklim/platform-authn/internal/infra/kafka"
	"github.com/arklim/platform-authn/internal/infra/logger"
	redisinfra "github.com/arklim/platform-authn/internal/infra/redis"
	"github.com/arklim/platform-authn/internal/infra/security"
	"github.com/arklim/platform-authn/internal/infra/telemetry"
	postgresrepo "github.com/arklim/platform-authn/internal/repository/postgres"
	redisrepo "github.com/arklim/platform-authn/internal/repository/redis"
	"github.com/arklim/platform-authn/internal/transport/http/routes"
	"github.com/arklim/platform-authn/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewHasher(cfg.Argon2)
	if err != nil {
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	tier, err := security.ParsePolicyTier(cfg.Policy.Tier)
	if err != nil {
		return nil, fmt.Errorf("parse policy tier: %w", err)
	}
	policy := security.NewPasswordPolicy(tier, hasher, cfg.Policy.MinStrengthScore)

	signer, err := security.NewSessionSigner(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("init session signer: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	var audit port.AuditPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			audit = kafkainfra.NewStubPublisher(log)
		} else {
			audit = kafkainfra.NewAuditPublisher(producer, cfg.App, log)
			log.Info("kafka audit publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		audit = kafkainfra.NewStubPublisher(log)
	}

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	attemptStore := redisrepo.NewAttemptRepository(redisClient.Client(), redisrepo.WindowConfig{
		KeyPrefix: "authn:attempts",
		TTL:       window * 2,
	})
	limiter := usecase.NewAttemptLimiter(attemptStore, cfg.RateLimit, log)

	credRepo := postgresrepo.NewCredentialRepository(pool)
	keyRepo := postgresrepo.NewApiKeyRepository(pool)

	apiKeyService := usecase.NewApiKeyService(keyRepo, cfg.ApiKeys, metrics, log)
	authService := usecase.NewAuthenticationService(
		credRepo,
		hasher,
		policy,
		apiKeyService,
		limiter,
		audit,
		metrics,
		log,
		cfg.Policy,
		cfg.ApiKeys,
	)
	credentialService := usecase.NewCredentialService(credRepo, hasher, policy, audit, log, cfg.Policy)

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Signer:   signer,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:        authService,
			Credentials: credentialService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  producer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
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

	a.logger.Info("starting authentication API",
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
