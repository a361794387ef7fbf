package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/flowdeck/pkg/access"
	"github.com/platinummonkey/flowdeck/pkg/api"
	"github.com/platinummonkey/flowdeck/pkg/config"
	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/lifecycle"
	"github.com/platinummonkey/flowdeck/pkg/observability"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

func main() {
	databaseURL := flag.String("database-url", "", "Database URL (overrides FLOWDECK_DATABASE_URL)")
	port := flag.String("port", "", "Port to listen on (overrides FLOWDECK_PORT)")
	migrate := flag.Bool("migrate", true, "Run schema migrations on startup")
	flag.Parse()

	if *databaseURL != "" {
		os.Setenv("FLOWDECK_DATABASE_URL", *databaseURL)
	}
	if *port != "" {
		os.Setenv("FLOWDECK_PORT", *port)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	ctx := context.Background()

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()
	logrus.Info("Database connection established")

	if *migrate {
		if err := storage.RunMigrations(ctx, db, storage.DialectFromURL(cfg.Database.URL)); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
		logrus.Info("Schema migrations applied")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	users := storage.NewUserStore(db)
	projects := storage.NewProjectStore(db)
	grantStore := grants.NewStore(db)
	resolver := access.NewResolver(users, grantStore).WithMetrics(metrics)

	var (
		cached      access.GrantResolver
		invalidator access.Invalidator
		health      *observability.HealthChecker
	)
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			redisCache, err := access.NewRedisCache(resolver, cfg.Cache.RedisURL, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
			if err != nil {
				logrus.WithError(err).Fatal("Failed to connect to Redis")
			}
			defer redisCache.Close()
			cached = redisCache.WithMetrics(metrics)
			invalidator = redisCache
			health = observability.NewHealthChecker(db, redisCache.Client())
			logrus.WithField("redis", cfg.Cache.RedisURL).Info("Resolve cache: Redis")
		} else {
			memCache := access.NewMemoryCache(resolver, cfg.Cache.LRUSize, cfg.Cache.TTL).WithMetrics(metrics)
			cached = memCache
			invalidator = memCache
			logrus.Info("Resolve cache: in-process LRU")
		}
	} else {
		logrus.Info("Resolve cache disabled")
	}
	if health == nil {
		health = observability.NewHealthChecker(db, nil)
	}

	accessService := access.NewService(resolver, cached, projects)
	coordinator := lifecycle.NewCoordinator(db, resolver, invalidator)

	server := api.NewServer(accessService, coordinator, api.ServerOptions{
		Logger:   logger,
		Metrics:  metrics,
		Registry: registry,
		Health:   health,
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := server.HTTPServer(addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

	go func() {
		logrus.WithField("addr", addr).Info("Starting flowdeck server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	manager := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if err := manager.WaitForShutdown(); err != nil {
		logrus.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
