package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/steamdealworker/config"
	"sjsage522/steamdealworker/internal/model"
	"sjsage522/steamdealworker/internal/pipeline"
	"sjsage522/steamdealworker/internal/scoring"
	"sjsage522/steamdealworker/internal/steam"
	"sjsage522/steamdealworker/logger"
	"sjsage522/steamdealworker/services/cache"
	"sjsage522/steamdealworker/services/publisher"
)

var (
	profile     = flag.String("profile", "", "profile URL, vanity name or 17-digit account id")
	kind        = flag.String("kind", "wishlist", "list to process: wishlist or library")
	maxItems    = flag.Int("max", 0, "maximum entries to price (0 uses PRICE_CHECK_MAX_ITEMS)")
	delay       = flag.Duration("delay", 0, "minimum spacing between price requests (0 uses PRICE_CHECK_DELAY_MS)")
	concurrency = flag.Int("concurrency", 0, "parallel price requests (0 uses PRICE_CHECK_CONCURRENCY)")
	rank        = flag.Bool("rank", false, "score and rank the discounted items")
	limit       = flag.Int("limit", 15, "number of ranked items to keep")
	sortBy      = flag.String("sort", "", "library ordering before pricing: playtime")
	publish     = flag.Bool("publish", false, "publish the result to the Redis streams")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init()
	log := logger.Default

	if *profile == "" {
		fmt.Fprintln(os.Stderr, "usage: wishlist -profile <url|vanity|id> [-kind wishlist|library] [-rank]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	listKind, err := model.ParseListKind(*kind)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -kind")
	}
	if *sortBy != "" && *sortBy != "playtime" {
		log.Fatal().Str("sort", *sortBy).Msg("Unsupported -sort value")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.New(cfg.MemcacheAddr)
	client := steam.NewClient(steam.ClientOptions{
		Endpoints: steam.Endpoints{
			Community: cfg.SteamCommunityURL,
			Store:     cfg.SteamStoreURL,
			API:       cfg.SteamAPIURL,
		},
		Timeout:    cfg.HTTPTimeout,
		Language:   cfg.SteamLanguage,
		Country:    cfg.SteamCountry,
		Cache:      store,
		Backoff:    cfg.RateLimitBackoff,
		BackoffMax: cfg.RateLimitBackoffMax,
	})
	rules := scoring.DefaultRules().WithTiers(cfg.PriceTierCheap, cfg.PriceTierMid, cfg.PriceTierPremium)

	req := pipeline.Request{
		Profile:        *profile,
		Kind:           listKind,
		MaxItems:       firstPositive(*maxItems, cfg.PriceCheckMaxItems),
		Delay:          cfg.PriceCheckDelay,
		Concurrency:    firstPositive(*concurrency, cfg.PriceCheckConcurrency),
		Budget:         cfg.PipelineBudget,
		Rank:           *rank,
		RankLimit:      *limit,
		SortByPlaytime: *sortBy == "playtime",
	}
	if *delay > 0 {
		req.Delay = *delay
	}
	nameDelay := req.Delay
	if nameDelay <= 0 {
		nameDelay = steam.DefaultCheckOptions().Delay
	}

	p := pipeline.New(
		steam.NewResolver(client),
		steam.NewProber(client),
		steam.NewExtractor(client, store, cfg.SteamWebAPIKey).WithNameDelay(nameDelay),
		steam.NewPricer(client),
		scoring.NewScorer(rules),
	)

	res := p.Run(ctx, req)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))

	if *publish {
		pub := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		defer pub.Close()

		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pub.Publish(pctx, publisher.KeyPipelineResult, out); err != nil {
			log.Error().Err(err).Msg("Failed to publish result")
		}
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
