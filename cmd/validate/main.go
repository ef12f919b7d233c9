package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tweet-price-lab/internal/config"
	"tweet-price-lab/internal/coverage"
	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/observability"
	"tweet-price-lab/internal/storage/migrations"
	pgstore "tweet-price-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	assetID := flag.String("asset", "", "Asset ID to validate (required)")
	verbose := flag.Bool("verbose", false, "Print every gap instead of a summary")
	flag.Parse()

	logger := log.New(os.Stderr, "[validate] ", log.LstdFlags)

	if *assetID == "" {
		logger.Fatal("--asset is required")
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

	asset, err := pgstore.NewAssetStore(pool).GetByID(ctx, *assetID)
	if err != nil {
		logger.Fatalf("load asset %s: %v", *assetID, err)
	}

	metrics := observability.NewMetrics("tweetpricelab")
	priceStore := pgstore.NewPriceStore(pool)
	skipPolicy := coverage.SkipPolicy{
		Skip1mAfterDays:  cfg.Coverage.Skip1mAfterDays,
		Skip15mAfterDays: cfg.Coverage.Skip15mAfterDays,
	}

	now := time.Now().UTC().Unix()
	report := coverage.Report{
		AssetID:     asset.ID,
		LaunchDate:  asset.LaunchDate,
		GeneratedAt: now,
	}

	for _, tf := range domain.AllTimeframes {
		if skipPolicy.ShouldSkip(asset, tf, now) {
			report.Timeframes = append(report.Timeframes, coverage.TimeframeReport{
				Timeframe: tf,
				Status:    coverage.StatusSkip,
			})
			continue
		}

		series, err := priceStore.GetSeries(ctx, asset.ID, tf)
		if err != nil {
			logger.Fatalf("load %s series: %v", tf, err)
		}
		timestamps := make([]int64, len(series))
		for i, c := range series {
			timestamps[i] = c.Timestamp
		}

		tfReport := coverage.ValidateTimeframe(tf, timestamps, asset.LaunchDate, now)
		metrics.CoverageRatio.WithLabelValues(asset.ID, tf.String()).Set(tfReport.CoveragePct / 100)
		if tfReport.Status == coverage.StatusFail {
			metrics.CoverageFailures.WithLabelValues(asset.ID, tf.String()).Inc()
		}
		report.Timeframes = append(report.Timeframes, tfReport)
	}

	printReport(asset, &report, *verbose)

	if !report.Passed() {
		os.Exit(1)
	}
}

func printReport(asset *domain.Asset, report *coverage.Report, verbose bool) {
	fmt.Printf("Asset:       %s (%s)\n", asset.Name, asset.ID)
	fmt.Printf("Launch:      %s\n", time.Unix(asset.LaunchDate, 0).UTC().Format("2006-01-02"))
	fmt.Printf("Days since:  %d\n\n", (report.GeneratedAt-asset.LaunchDate)/86400)

	for _, tf := range report.Timeframes {
		if tf.Status == coverage.StatusSkip {
			fmt.Printf("  %-4s SKIP\n", tf.Timeframe)
			continue
		}

		fmt.Printf("  %-4s %-4s %6.1f%% coverage (%d / %d candles), %d gaps\n",
			tf.Timeframe, tf.Status, tf.CoveragePct, tf.Actual, tf.Expected, len(tf.Gaps))
		for _, issue := range tf.Issues {
			fmt.Printf("       - %s\n", issue)
		}
		if verbose {
			for _, gap := range tf.Gaps {
				fmt.Printf("       gap %s .. %s (~%d missing)\n",
					time.Unix(gap.Start, 0).UTC().Format(time.RFC3339),
					time.Unix(gap.End, 0).UTC().Format(time.RFC3339),
					gap.Missing)
			}
		}
	}

	if report.Passed() {
		fmt.Println("\nPASS")
	} else {
		fmt.Println("\nFAIL")
	}
}
