package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"github.com/folioworks/folio/pkg/access"
	"github.com/folioworks/folio/pkg/api"
	"github.com/folioworks/folio/pkg/audit"
	"github.com/folioworks/folio/pkg/auth"
	"github.com/folioworks/folio/pkg/config"
	"github.com/folioworks/folio/pkg/middleware"
	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/signature"
	"github.com/folioworks/folio/pkg/store"
	"github.com/folioworks/folio/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "folio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("mode", string(cfg.Auth.AppMode)).Info("starting folio")

	db, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisURL,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, continuing")
		}
		defer redisClient.Close()
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	userStore := auth.NewPostgresStore(db)
	tenantService := tenants.NewPostgresService(db)
	resolver := auth.NewResolver(userStore, tenantService, cfg.Auth.CookiePrefix)
	scopes := tenants.NewResolver(cfg.Auth.CookiePrefix)

	verifier, err := buildVerifier(cfg, redisClient)
	if err != nil {
		return err
	}

	engine := access.NewEngine(scopes, verifier, access.SigningConfig{
		Require: cfg.Signature.Require,
		Secret:  cfg.Signature.Secret,
	}, logger, metrics)
	for _, collection := range cfg.Auth.TenantCollections {
		engine.RegisterTenantCollection(collection)
	}

	auditLogger, err := buildAuditLogger(cfg, db)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	server := api.NewServer(api.ServerConfig{
		Engine:    engine,
		Users:     userStore,
		Documents: store.NewInstrumentedStore(store.NewMemoryStore(), metrics),
		Resolver:  resolver,
		Scopes:    scopes,
		Logger:    logger,
		Metrics:   metrics,
	})

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID(func() string { return uuid.New().String() }),
		metrics.HTTPMiddleware,
		withLogger(logger),
		withAudit(auditLogger),
		middleware.Identity(resolver, metrics),
	}
	// The limiter keys buckets off the resolved principal, so it must sit
	// inside Identity.
	if redisClient != nil {
		middlewares = append(middlewares, middleware.RateLimit(redisClient))
	}
	middlewares = append(middlewares,
		middleware.Origin(),
		middleware.TenantScope(scopes),
	)
	handler := chain(server, middlewares...)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := userStore.DeleteExpiredSessions(ctx); err != nil {
			logger.WithError(err).Error("session sweep failed")
		} else if n > 0 {
			logger.WithField("sessions", n).Info("swept expired sessions")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	if _, err := janitor.AddFunc("@every 30s", func() {
		metrics.DBConnectionsActive.Set(float64(db.Stats().OpenConnections))
	}); err != nil {
		return fmt.Errorf("failed to schedule pool gauge: %w", err)
	}
	janitor.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		janitor.Stop()
		return nil
	})

	g := new(errgroup.Group)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

func openPostgres(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Storage.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Storage.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.Storage.PostgresMaxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return db, nil
}

func buildVerifier(cfg *config.Config, redisClient *redis.Client) (*signature.Verifier, error) {
	opts := []signature.VerifierOption{signature.WithTTL(cfg.Signature.TTL)}
	switch cfg.Signature.ReplayCache {
	case config.ReplayCacheMemory:
		opts = append(opts, signature.WithReplayCache(
			signature.NewMemoryReplayCache(cfg.Signature.ReplayCacheSize, cfg.Signature.TTL)))
	case config.ReplayCacheRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis replay cache requires a redis connection")
		}
		opts = append(opts, signature.WithReplayCache(
			signature.NewRedisReplayCache(redisClient, "folio:replay", cfg.Signature.TTL)))
	}
	return signature.NewVerifier(opts...), nil
}

func buildAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	if cfg.Observability.AuditLogPath != "" {
		return audit.NewFileLogger(audit.FileLoggerConfig{BasePath: cfg.Observability.AuditLogPath})
	}
	return audit.NewDBLogger(db)
}

// chain applies middlewares outermost-first.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func withLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), logger)))
		})
	}
}

func withAudit(logger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(audit.WithLogger(r.Context(), logger)))
		})
	}
}
