package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/api"
	"github.com/platinummonkey/identity/pkg/auth"
	"github.com/platinummonkey/identity/pkg/clientapps"
	"github.com/platinummonkey/identity/pkg/config"
	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/maintenance"
	"github.com/platinummonkey/identity/pkg/middleware"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/orgs"
	"github.com/platinummonkey/identity/pkg/sessions"
	"github.com/platinummonkey/identity/pkg/storage"
	"github.com/platinummonkey/identity/pkg/storage/postgres"
	"github.com/platinummonkey/identity/pkg/teams"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const dbStatsSchedule = "@every 15s"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "identity: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("version", version)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	shutdown.Register("otel", otelProviders.Shutdown)

	// Database
	cm, err := postgres.NewConnectionManager(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	shutdown.Register("postgres", func(context.Context) error { return cm.Close() })
	db := cm.DB()

	if err := storage.Migrate(ctx, db, migrationLogger(cfg)); err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	var redisClient *redis.Client
	if cfg.Sessions.Backend == config.SessionBackendRedis {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	if otelProviders != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
		metrics.WithOTel(otelMetrics)
	}

	// Domain
	directory := agents.NewDirectory(agents.NewStore(db), agents.DirectoryConfig{
		Size: cfg.Agents.CacheSize,
		TTL:  cfg.Agents.CacheTTL,
	})
	orgService := orgs.NewPostgresService(db)
	teamService := teams.NewPostgresService(db)
	invitationService := invitations.NewService(
		invitations.NewStore(db).WithRecorder(metrics),
		directory,
		orgService.Members(),
		teamService.Members(),
		logger,
	).WithRecorder(metrics)
	secrets := auth.NewSecretGenerator()

	var sessionStore sessions.Store
	if redisClient != nil {
		sessionStore = sessions.NewRedisStore(redisClient)
	} else {
		sessionStore = sessions.NewPostgresStore(db)
	}
	sessionManager := sessions.NewManager(sessionStore, secrets, sessions.ManagerConfig{
		CookieName: cfg.Sessions.CookieName,
		TTL:        cfg.Sessions.TTL,
		Secure:     cfg.Sessions.Secure,
	})

	verifier, err := auth.NewTokenVerifier(ctx, auth.Config{
		IssuerURL:   cfg.OIDC.IssuerURL,
		Audience:    cfg.OIDC.Audience,
		UserInfoURL: cfg.OIDC.UserInfoURL,
	})
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	server := api.NewServer(api.Dependencies{
		Auth:         middleware.NewAuthMiddleware(verifier, sessionManager, directory, cfg.RootEmail),
		Sessions:     sessionManager,
		Agents:       directory,
		Orgs:         orgService,
		OrgMembers:   orgService.Members(),
		Teams:        teamService,
		TeamMembers:  teamService.Members(),
		Invitations:  invitationService,
		Apps:         clientapps.NewStore(db, secrets),
		LoginLimiter: middleware.NewRateLimiter(middleware.LoginRateLimitConfig()),
		Metrics:      metrics,
		Logger:       logger,
		RootEmail:    cfg.RootEmail,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	// Maintenance
	scheduler := maintenance.NewScheduler(metrics, logger)
	if cfg.Sessions.Backend == config.SessionBackendPostgres {
		if err := scheduler.AddSessionPurge(cfg.Sessions.PurgeSchedule, sessionManager); err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
	}
	if err := scheduler.AddDBStats(dbStatsSchedule, cm.Stats); err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}
	scheduler.Start()
	shutdown.Register("scheduler", scheduler.Stop)

	// HTTP
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return shutdown.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("identity stopped")
	return nil
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

// migrationLogger returns the logrus logger handed to goose
func migrationLogger(cfg *config.Config) logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log.WithField("component", "migrations")
}
