package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tweet-price-lab/internal/config"
	"tweet-price-lab/internal/coverage"
	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
	"tweet-price-lab/internal/ingestion/coingecko"
	"tweet-price-lab/internal/ingestion/gecko"
	"tweet-price-lab/internal/ingestion/xapi"
	"tweet-price-lab/internal/observability"
	"tweet-price-lab/internal/storage"
	"tweet-price-lab/internal/storage/migrations"
	pgstore "tweet-price-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	assetID := flag.String("asset", "all", "Asset ID to fetch, or 'all' for every enabled asset")
	mode := flag.String("mode", "incremental", "Fetch mode: incremental, backfill, full")
	from := flag.String("from", "", "Backfill start date (YYYY-MM-DD, backfill mode only)")
	skipPosts := flag.Bool("skip-posts", false, "Fetch prices only")
	flag.Parse()

	logger := log.New(os.Stderr, "[fetch] ", log.LstdFlags)

	fetchMode := ingestion.FetchMode(*mode)
	if !fetchMode.IsValid() {
		logger.Fatalf("Invalid mode: %s. Must be incremental, backfill, or full", *mode)
	}

	var backfillTo int64
	if fetchMode == ingestion.ModeBackfill {
		if *from == "" {
			logger.Fatal("--from is required in backfill mode")
		}
		t, err := time.Parse("2006-01-02", *from)
		if err != nil {
			logger.Fatalf("Invalid --from date %q: %v", *from, err)
		}
		backfillTo = t.UTC().Unix()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	metrics := observability.NewMetrics("tweetpricelab")
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				logger.Printf("metrics listener: %v", err)
			}
		}()
	}

	assetStore := pgstore.NewAssetStore(pool)

	var postSource ingestion.PostSource
	if cfg.Fetch.XBearerToken != "" {
		postSource = xapi.New(xapi.Options{
			BaseURL:     cfg.Fetch.XBaseURL,
			BearerToken: cfg.Fetch.XBearerToken,
			Logger:      logger,
		})
	}

	manager := ingestion.NewManager(ingestion.Options{
		PriceStore: pgstore.NewPriceStore(pool),
		PostStore:  pgstore.NewPostStore(pool),
		StateStore: pgstore.NewIngestStateStore(pool),
		CandleSources: map[string]ingestion.CandleSource{
			gecko.SourceName: gecko.New(gecko.Options{
				BaseURL: cfg.Fetch.GeckoBaseURL,
				Logger:  logger,
			}),
			coingecko.SourceName: coingecko.New(coingecko.Options{
				BaseURL: cfg.Fetch.CoingeckoBaseURL,
				APIKey:  cfg.Fetch.CoingeckoAPIKey,
				Logger:  logger,
			}),
		},
		PostSource: postSource,
		Metrics:    metrics,
		Logger:     logger,
	})

	assets, err := resolveAssets(ctx, assetStore, *assetID)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	skipPolicy := coverage.SkipPolicy{
		Skip1mAfterDays:  cfg.Coverage.Skip1mAfterDays,
		Skip15mAfterDays: cfg.Coverage.Skip15mAfterDays,
	}

	failed := 0
	for _, asset := range assets {
		if err := fetchAsset(ctx, manager, logger, asset, fetchMode, backfillTo, skipPolicy, *skipPosts, postSource != nil); err != nil {
			if ctx.Err() != nil {
				logger.Fatalf("interrupted: %v", err)
			}
			logger.Printf("%s: %v", asset.ID, err)
			failed++
		}
	}

	if failed > 0 {
		logger.Fatalf("%d of %d assets failed", failed, len(assets))
	}
	logger.Printf("Fetched %d assets", len(assets))
}

func resolveAssets(ctx context.Context, store storage.AssetStore, assetID string) ([]*domain.Asset, error) {
	if assetID == "all" {
		assets, err := store.GetEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("load enabled assets: %w", err)
		}
		if len(assets) == 0 {
			return nil, fmt.Errorf("no enabled assets configured")
		}
		return assets, nil
	}

	asset, err := store.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}
	return []*domain.Asset{asset}, nil
}

func fetchAsset(
	ctx context.Context,
	manager *ingestion.Manager,
	logger *log.Logger,
	asset *domain.Asset,
	mode ingestion.FetchMode,
	backfillTo int64,
	skipPolicy coverage.SkipPolicy,
	skipPosts bool,
	havePostSource bool,
) error {
	now := time.Now().UTC().Unix()

	for _, tf := range domain.AllTimeframes {
		if skipPolicy.ShouldSkip(asset, tf, now) {
			logger.Printf("%s/%s: skipped by policy", asset.ID, tf)
			continue
		}

		result, err := manager.FetchPrices(ctx, asset, tf, mode, backfillTo)
		if err != nil {
			return fmt.Errorf("fetch %s prices: %w", tf, err)
		}
		logger.Printf("%s/%s: %d candles in %d pages (plan-limited=%v)",
			asset.ID, tf, result.CandlesUpserted, result.Pages, result.PlanLimited)
	}

	if skipPosts || !havePostSource {
		return nil
	}

	result, err := manager.FetchPosts(ctx, asset, mode)
	if err != nil {
		return fmt.Errorf("fetch posts: %w", err)
	}
	logger.Printf("%s: %d posts", asset.ID, result.PostsUpserted)
	return nil
}
