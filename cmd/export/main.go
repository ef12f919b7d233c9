package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tweet-price-lab/internal/config"
	"tweet-price-lab/internal/export"
	"tweet-price-lab/internal/observability"
	"tweet-price-lab/internal/override"
	"tweet-price-lab/internal/storage/migrations"
	pgstore "tweet-price-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	assetID := flag.String("asset", "all", "Asset ID to export, or 'all' for every enabled asset")
	outDir := flag.String("out", "", "Output directory (overrides config)")
	verbose := flag.Bool("verbose", false, "Log per-unit progress")
	flag.Parse()

	logger := log.New(os.Stderr, "[export] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *outDir == "" {
		*outDir = cfg.Export.OutputDir
	}

	var rules []override.Rule
	if cfg.Export.OverridesFile != "" {
		rules, err = override.Load(cfg.Export.OverridesFile)
		if err != nil {
			logger.Fatalf("load override rules: %v", err)
		}
		logger.Printf("Loaded %d override rules", len(rules))
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

	exporter := export.New(export.Options{
		AssetStore:        pgstore.NewAssetStore(pool),
		PriceStore:        pgstore.NewPriceStore(pool),
		PostStore:         pgstore.NewPostStore(pool),
		Rules:             rules,
		OutDir:            *outDir,
		WickCapMultiplier: cfg.Export.WickCapMultiplier,
		AnomalySigma:      cfg.Export.AnomalySigma,
		Metrics:           observability.NewMetrics("tweetpricelab"),
		Logger:            logger,
		Verbose:           *verbose,
	})

	var assetIDs []string
	if *assetID != "all" {
		assetIDs = []string{*assetID}
	}

	result, err := exporter.Run(ctx, assetIDs)
	if err != nil {
		logger.Fatalf("export: %v", err)
	}

	for _, msg := range result.Errors {
		logger.Printf("unit failed: %s", msg)
	}
	logger.Printf("Exported %d assets: %d candles, %d aligned events, %d unit errors",
		result.AssetsProcessed, result.CandlesExported, result.EventsAligned, len(result.Errors))

	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}
