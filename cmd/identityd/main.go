package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/81adi8/erp-sub005/pkg/api"
	"github.com/81adi8/erp-sub005/pkg/cache"
	"github.com/81adi8/erp-sub005/pkg/config"
	"github.com/81adi8/erp-sub005/pkg/isolation"
	"github.com/81adi8/erp-sub005/pkg/mfa"
	"github.com/81adi8/erp-sub005/pkg/middleware"
	"github.com/81adi8/erp-sub005/pkg/observability"
	"github.com/81adi8/erp-sub005/pkg/rbac"
	"github.com/81adi8/erp-sub005/pkg/tenant"
	"github.com/81adi8/erp-sub005/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identityd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
	logger.WithField("environment", cfg.Environment).Info("starting identityd")

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.QueryTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	// The distributed cache tier. Outside production a missing redis falls
	// back to the in-process store so local development needs no redis.
	var store cache.Store
	redisStore, err := cache.NewRedisStore(cfg.Redis)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisStore.Ping(pingCtx)
		cancel()
	}
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.WithError(err).Warn("redis unavailable, using in-process cache store")
		store = cache.NewMemoryStore()
		redisStore = nil
	} else {
		store = redisStore
		defer redisStore.Close()
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tiered := cache.NewTieredCache(store, cfg.Cache.L1MaxSize, cfg.Cache.L1TTL, logger, metrics)

	resolver := tenant.NewResolver(tenant.NewSQLStore(db), tiered, cfg.Cache.TenantTTL, logger, metrics)

	permConfig := rbac.NewConfigCache(rbac.NewSQLStore(db), store, logger)
	bootCtx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.QueryTimeout)
	err = permConfig.Refresh(bootCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load permission config: %w", err)
	}
	roles := rbac.NewRolePermissionCache(rbac.NewSQLStore(db), tiered, cfg.Cache.RolePermissionsTTL, logger)

	tokens, err := token.NewService(cfg.Token, token.NewEnvSecretProvider(), logger, metrics)
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}

	challenges := mfa.NewChallengeService(store, cfg.MFA, logger, metrics)
	totpSvc := mfa.NewTOTPService(store, cfg.MFA, logger, metrics)
	credentials := mfa.NewSQLCredentialStore(db)

	// Isolation is always strict in production; permissive mode elsewhere
	// records violations without blocking, which keeps local setups usable
	// while the violation log still shows what production would reject.
	guard := isolation.NewGuard(isolation.NewViolationLog(1024), !cfg.IsProduction(), logger, metrics)

	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}
	health := observability.NewHealthChecker(db, redisClient)

	server := api.NewServer(api.Deps{
		Logger:      logger,
		Resolver:    resolver,
		Tokens:      tokens,
		Roles:       roles,
		PermConfig:  permConfig,
		Challenges:  challenges,
		TOTP:        totpSvc,
		Credentials: credentials,
		Guard:       guard,
		Tiered:      tiered,
		Health:      health,
		Limiter:     middleware.NewRateLimiter(store, cfg.Security.RateLimitPerMinute, time.Minute, logger),
		Auth:        middleware.NewAuthMiddleware(tokens, false),
		Internal:    middleware.NewInternalKeyGate(cfg.Security.InternalKey, !cfg.IsProduction()),
	})
	server.Router().Handle("/metrics", observability.Handler(registry)).Methods("GET")
	server.Router().Use(metrics.HTTPMiddleware)

	handler := middleware.RequestID(logger)(server)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.QueryTimeout)
		defer cancel()
		if err := permConfig.Refresh(ctx); err != nil {
			logger.WithError(err).Error("scheduled permission config refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule permission refresh: %w", err)
	}
	if _, err := scheduler.AddFunc("@every 15m", func() {
		if cleared := tokens.SweepExpiredKeys(time.Now()); cleared > 0 {
			logger.WithField("cleared", cleared).Info("swept expired signing keys")
		}
	}); err != nil {
		return fmt.Errorf("schedule key sweep: %w", err)
	}
	if _, err := scheduler.AddFunc("@every 1m", func() {
		stats := db.Stats()
		metrics.DBConnectionsActive.Set(float64(stats.InUse))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
	}); err != nil {
		return fmt.Errorf("schedule db stats export: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
