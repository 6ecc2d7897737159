package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/httpapi"
	"storefront/internal/metrics"
	"storefront/internal/search"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/store/memory"
	pgstore "storefront/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 4)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
			_ = client.Close()
		} else {
			redisClient = client
			closers = append(closers, client.Close)
		}
	}

	cacheStore := cache.SearchCache(cache.NoopSearchCache{})
	if redisClient != nil {
		cacheStore = cache.NewRedisSearchCacheWithClient(redisClient)
		logger.Info("cache: redis")
	} else {
		logger.Info("cache: noop")
	}

	sessions, closeSessions, err := buildSessionStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("session store unavailable", zap.Error(err))
	}
	if closeSessions != nil {
		closers = append(closers, closeSessions)
	}
	logger.Info("sessions", zap.String("backend", cfg.SessionBackend))

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		publisher = kp
		closers = append(closers, kp.Close)
		logger.Info("order events: kafka", zap.String("topic", cfg.KafkaOrderTopic))
	}

	sorting, err := config.LoadFacetSorting(cfg.FacetSortConfig)
	if err != nil {
		logger.Fatal("facet sort config", zap.Error(err))
	}
	facetOpts := cfg.FacetOptions(sorting)

	reg := metrics.NewRegistry()
	engine := search.NewEngine(cacheStore, time.Duration(cfg.SearchCacheTTLSeconds)*time.Second,
		search.Fields{Price: facetOpts.PriceField, Precision: facetOpts.PrecisionField},
		search.WithMetrics(reg), search.WithLogger(logger))
	carts := cart.New(sessions, repo)
	controller := checkout.NewController(sessions, carts, repo,
		checkout.WithPublisher(publisher),
		checkout.WithMetrics(reg),
		checkout.WithLogger(logger.Named("checkout")),
	)
	svc := service.New(service.Deps{
		Repo:      repo,
		Engine:    engine,
		Cart:      carts,
		Checkout:  controller,
		FacetOpts: facetOpts,
		Metrics:   reg,
		Logger:    logger.Named("service"),
	})
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	secureCookie := strings.HasPrefix(strings.ToLower(cfg.AllowedOrigin), "https://")
	api := httpapi.New(svc, httpapi.NewSessionManager(cfg.SessionSecret, sessionTTL, secureCookie), reg, logger.Named("http"), cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.WatchFacetSorting(runCtx, cfg.FacetSortConfig, logger.Named("config"), svc.SetFacetSorting); err != nil {
		logger.Warn("facet sort config will not be reloaded", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Info("storefront backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level == "debug" {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// buildSessionStore picks the session backend. The returned closer may be nil.
func buildSessionStore(cfg config.Config, redisClient redis.UniversalClient) (session.Store, func() error, error) {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	switch cfg.SessionBackend {
	case "", "memory":
		return session.NewMemory(ttl), nil, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("SESSION_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		return session.NewRedis(redisClient, ttl), nil, nil
	case "pebble":
		p, err := session.NewPebble(cfg.PebbleDir, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble at %s: %w", cfg.PebbleDir, err)
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be set and at least 32 characters")
	}
	if err := validateSecretStrength(cfg.SessionSecret); err != nil {
		return fmt.Errorf("SESSION_SECRET is too weak: %w", err)
	}
	return nil
}

// validateSecretStrength rejects secrets made of a single repeated character
// or built from a well-known placeholder.
func validateSecretStrength(secret string) error {
	allSame := true
	for i := 1; i < len(secret); i++ {
		if secret[i] != secret[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated single character not allowed")
	}

	lower := strings.ToLower(secret)
	for _, placeholder := range []string{"change-me", "changeme", "secret", "password"} {
		if strings.Count(lower, placeholder)*len(placeholder) >= len(lower)/2 {
			return fmt.Errorf("placeholder secret not allowed")
		}
	}
	return nil
}
