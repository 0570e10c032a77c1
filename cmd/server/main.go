package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/billing"
	"github.com/mendyturner/xyberiq-app/internal/bootstrap"
	"github.com/mendyturner/xyberiq-app/internal/config"
	httptransport "github.com/mendyturner/xyberiq-app/internal/http"
	"github.com/mendyturner/xyberiq-app/internal/http/handler"
	"github.com/mendyturner/xyberiq-app/internal/http/middleware"
	"github.com/mendyturner/xyberiq-app/internal/provisioning"
	"github.com/mendyturner/xyberiq-app/internal/ratelimit"
	"github.com/mendyturner/xyberiq-app/internal/repository"
	"github.com/mendyturner/xyberiq-app/internal/server"
	"github.com/mendyturner/xyberiq-app/internal/service"
	"github.com/mendyturner/xyberiq-app/internal/session"
	"github.com/mendyturner/xyberiq-app/internal/store"
	"github.com/mendyturner/xyberiq-app/internal/telemetry"
	"github.com/mendyturner/xyberiq-app/internal/tenant"
	"github.com/mendyturner/xyberiq-app/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newStore,
			newTenantRepository,
			newRoleRepository,
			newUserRepository,
			newAuditRepository,
			newCodec,
			tenant.NewResolver,
			newBillingProvider,
			newProvisioningPublisher,
			newTenantService,
			service.NewUserService,
			service.NewAuditService,
			newSessionService,
			newRateLimiter,
			newThrottle,
			newAuthMiddleware,
			newAuthHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureTenant, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newStore(client redis.UniversalClient) store.Store {
	return store.NewRedisStore(client)
}

func newTenantRepository(pool *pgxpool.Pool) repository.TenantRepository {
	return repository.NewPostgresTenantRepo(pool)
}

func newRoleRepository(pool *pgxpool.Pool, node *snowflake.Node) repository.RoleRepository {
	return repository.NewPostgresRoleRepo(pool, func() int64 {
		return node.Generate().Int64()
	})
}

func newUserRepository(pool *pgxpool.Pool, roles repository.RoleRepository) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool, roles)
}

func newAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return repository.NewPostgresAuditRepo(pool)
}

func newCodec(cfg config.Config) *token.Codec {
	return token.NewCodec([]byte(cfg.SecretKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newBillingProvider(logger *zap.Logger) billing.Provider {
	return billing.NewStubProvider(logger)
}

func newProvisioningPublisher(logger *zap.Logger) provisioning.Publisher {
	return provisioning.NewLogPublisher(logger)
}

func newTenantService(
	tenants repository.TenantRepository,
	roles repository.RoleRepository,
	billingProvider billing.Provider,
	publisher provisioning.Publisher,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *service.TenantService {
	return service.NewTenantService(tenants, roles, billingProvider, publisher, node, cfg.BillingFreeTrialDays, logger)
}

func newSessionService(codec *token.Codec, st store.Store, cfg config.Config, logger *zap.Logger) *session.Service {
	return session.NewService(codec, st, cfg.ResetTicketTTL, logger)
}

func newRateLimiter(st store.Store) *ratelimit.Limiter {
	return ratelimit.New(st)
}

func newThrottle(cfg config.Config) *middleware.Throttle {
	return middleware.NewThrottle(cfg.ThrottleRPM)
}

func newAuthMiddleware(codec *token.Codec, users *service.UserService) *middleware.Auth {
	return &middleware.Auth{Codec: codec, Users: users}
}

func newAuthHandler(
	tenants *service.TenantService,
	users *service.UserService,
	sessions *session.Service,
	audit *service.AuditService,
	limiter *ratelimit.Limiter,
	cfg config.Config,
	logger *zap.Logger,
) *handler.AuthHandler {
	limits := handler.Limits{
		LoginPerMinute:   cfg.LoginPerMinute,
		RegisterPerHour:  cfg.RegisterPerHour,
		ForgotPerQuarter: cfg.ForgotPerQuarter,
	}
	return handler.NewAuthHandler(tenants, users, sessions, audit, limiter, limits, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
