package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/steamdealworker/config"
	"sjsage522/steamdealworker/internal/scoring"
	"sjsage522/steamdealworker/internal/steam"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/pkg/metrics"
	"sjsage522/steamdealworker/services/cache"
	"sjsage522/steamdealworker/services/publisher"
	"sjsage522/steamdealworker/services/worker"
	"sjsage522/steamdealworker/storage"
)

func main() {
	// Load configuration (reads .env when present)
	cfg := config.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("digest_interval", cfg.DigestInterval).
		Str("country", cfg.SteamCountry).
		Msg("Starting application")

	// Set up context cancelled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	client := steam.NewClient(steam.ClientOptions{
		Endpoints: steam.Endpoints{
			Community: cfg.SteamCommunityURL,
			Store:     cfg.SteamStoreURL,
			API:       cfg.SteamAPIURL,
		},
		Timeout:    cfg.HTTPTimeout,
		Language:   cfg.SteamLanguage,
		Country:    cfg.SteamCountry,
		Cache:      services.Cache,
		Backoff:    cfg.RateLimitBackoff,
		BackoffMax: cfg.RateLimitBackoffMax,
	})
	specials := steam.NewSpecials(client, steam.SpecialsOptions{PageDelay: time.Second})
	rules := scoring.DefaultRules().WithTiers(cfg.PriceTierCheap, cfg.PriceTierMid, cfg.PriceTierPremium)

	w := worker.NewWorker(
		specials,
		scoring.NewScorer(rules),
		services.Store,
		services.Publisher,
		worker.Options{
			Interval:    cfg.DigestInterval,
			MinDiscount: cfg.SpecialsMinDiscount,
			MaxResults:  cfg.SpecialsMaxResults,
			TopLimit:    cfg.WeeklyTopLimit,
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("Starting weekly digest worker")
		w.Start(gctx)
		return nil
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.NewPrometheusServer(cfg.MetricsAddr).Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     storage.WeeklyTopStore
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	services.Cache = cache.New(cfg.MemcacheAddr)
	if cfg.MemcacheAddr != "" {
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	} else {
		logger.Info("Using in-process cache")
	}

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		redisPublisher.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	// Weekly-top persistence is optional
	if cfg.PostgresDSN != "" {
		store, err := storage.NewPostgresWeeklyTop(ctx, cfg.PostgresDSN)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Store = store
	} else if cfg.IsProduction() {
		logger.Warn("POSTGRES_DSN is not set; weekly-top rows will not be persisted")
	}

	return services, nil
}
