// Server runs the HTTP API: auth, agent runs, the quality gate, and the
// agent-event WebSocket stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"netra-apex/backend/internal/agent/bus"
	agentrepo "netra-apex/backend/internal/agent/repository"
	agentservice "netra-apex/backend/internal/agent/service"
	analyticsproducer "netra-apex/backend/internal/analytics/producer"
	"netra-apex/backend/internal/audit"
	auditrepo "netra-apex/backend/internal/audit/repository"
	"netra-apex/backend/internal/config"
	"netra-apex/backend/internal/db"
	identityrepo "netra-apex/backend/internal/identity/repository"
	identityservice "netra-apex/backend/internal/identity/service"
	membershiprepo "netra-apex/backend/internal/membership/repository"
	orgrepo "netra-apex/backend/internal/organization/repository"
	policyengine "netra-apex/backend/internal/policy/engine"
	policyrepo "netra-apex/backend/internal/policy/repository"
	"netra-apex/backend/internal/qualitygate"
	"netra-apex/backend/internal/ratelimit"
	"netra-apex/backend/internal/security"
	sessionrepo "netra-apex/backend/internal/session/repository"
	"netra-apex/backend/internal/telemetry/otel"
	transporthttp "netra-apex/backend/internal/transport/http"
	userrepo "netra-apex/backend/internal/user/repository"
	"netra-apex/backend/internal/ws"

	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "netra-apex"

var version = "dev" // set via -ldflags at build time

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	log, err := newLogger(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer log.Sync()

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres", zap.Error(err))
	}
	defer conn.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	var eventBus bus.Bus
	if cfg.NATSURL != "" {
		natsBus, err := bus.NewNATSBus(cfg.NATSURL, log)
		if err != nil {
			log.Fatal("nats", zap.Error(err))
		}
		eventBus = natsBus
	} else {
		log.Warn("NATS_URL not set, using in-process event bus")
		eventBus = bus.NewMemoryBus()
	}
	defer eventBus.Close()

	// Repositories.
	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	orgs := orgrepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)
	runs := agentrepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)

	// Security primitives.
	hasher := security.NewHasher(cfg.Argon2Memory, cfg.Argon2Iterations, cfg.Argon2Parallelism)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.JWTAudience,
		cfg.AccessTTL(), cfg.RefreshTTL())

	auditLogger := audit.NewLogger(audits, transporthttp.GetClientIP, log)
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.LoginRateLimit, cfg.RateWindow(), log)

	// Services.
	authService := identityservice.NewAuthService(users, identities, sessions, memberships,
		hasher, tokens, limiter, auditLogger, cfg.RefreshTTL(), cfg.DevLoginEnabled())

	evaluator := policyengine.NewOPAEvaluator(policies, log)
	usage := analyticsproducer.NewUsageProducer(cfg.UsageKafkaBrokersList(), cfg.UsageKafkaTopic, log)
	if usage != nil {
		defer usage.Close()
	}
	var usageRecorder agentservice.UsageRecorder
	if usage != nil {
		usageRecorder = usage
	}
	runService := agentservice.NewRunService(runs, orgs, evaluator, eventBus, usageRecorder, auditLogger, log)

	gate := qualitygate.NewService(qualitygate.NewRedisCache(redisClient), 15*time.Minute, 0, 0, log)

	wsManager := ws.NewManager(tokens, eventBus, log, prometheus.DefaultRegisterer)

	checks := map[string]transporthttp.HealthCheck{
		"postgres": func(ctx context.Context) error { return conn.PingContext(ctx) },
		"policy":   evaluator.HealthCheck,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		Service:      serviceName,
		Version:      version,
		Environment:  cfg.Env,
		Auth:         authService,
		Tokens:       tokens,
		Runs:         runService,
		Gate:         gate,
		Audit:        auditLogger,
		EventStream:  wsManager,
		HealthChecks: checks,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry shutdown", zap.Error(err))
	}
	log.Info("http server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
