// Package export orchestrates the read → sanitize → normalize →
// override → align → write pipeline and guards published artifacts
// against silent data loss.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tweet-price-lab/internal/align"
	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/normalize"
	"tweet-price-lab/internal/observability"
	"tweet-price-lab/internal/override"
	"tweet-price-lab/internal/sanitize"
	"tweet-price-lab/internal/stats"
	"tweet-price-lab/internal/storage"
)

// ErrTruncation is returned when a fresh artifact would shrink below
// the truncation floor relative to the previously published one.
// Publishing a decimated dataset is worse than publishing nothing.
var ErrTruncation = errors.New("export would truncate published artifact")

// truncationFloor: a new artifact must keep at least 90% of the
// previous record count.
const truncationFloor = 0.9

// Options configures an Exporter.
type Options struct {
	AssetStore storage.AssetStore
	PriceStore storage.PriceStore
	PostStore  storage.PostStore

	// Rules is the validated override rule set, already loaded.
	Rules []override.Rule

	// OutDir is the artifact root; each asset gets a subdirectory.
	OutDir string

	// WickCapMultiplier defaults to sanitize.DefaultWickCapMultiplier.
	WickCapMultiplier float64

	// AnomalySigma defaults to sanitize.DefaultAnomalySigma.
	AnomalySigma float64

	Metrics *observability.Metrics
	Logger  *log.Logger
	Verbose bool

	// Now is injectable for deterministic output.
	Now func() time.Time
}

// Exporter produces the per-asset artifact set.
type Exporter struct {
	assetStore   storage.AssetStore
	priceStore   storage.PriceStore
	postStore    storage.PostStore
	engine       *override.Engine
	outDir       string
	wickCap      float64
	anomalySigma float64
	metrics      *observability.Metrics
	logger       *log.Logger
	verbose      bool
	now          func() time.Time
}

// New creates a new Exporter.
func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	wickCap := opts.WickCapMultiplier
	if wickCap <= 0 {
		wickCap = sanitize.DefaultWickCapMultiplier
	}
	anomalySigma := opts.AnomalySigma
	if anomalySigma <= 0 {
		anomalySigma = sanitize.DefaultAnomalySigma
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Exporter{
		assetStore:   opts.AssetStore,
		priceStore:   opts.PriceStore,
		postStore:    opts.PostStore,
		engine:       override.NewEngine(opts.Rules),
		outDir:       opts.OutDir,
		wickCap:      wickCap,
		anomalySigma: anomalySigma,
		metrics:      opts.Metrics,
		logger:       logger,
		verbose:      opts.Verbose,
		now:          now,
	}
}

// RunResult contains statistics from an export run.
type RunResult struct {
	AssetsProcessed int
	CandlesExported int
	EventsAligned   int
	Errors          []string
}

// Run exports all requested assets (all enabled assets when assetIDs
// is empty). Each (asset, timeframe) unit is isolated: one bad series
// never blocks other assets or timeframes; unit errors are collected
// into the result.
func (e *Exporter) Run(ctx context.Context, assetIDs []string) (*RunResult, error) {
	assets, err := e.loadAssets(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		candles, events, errs := e.exportAsset(ctx, asset)
		result.AssetsProcessed++
		result.CandlesExported += candles
		result.EventsAligned += events
		result.Errors = append(result.Errors, errs...)
		if e.metrics != nil {
			e.metrics.ExportDuration.WithLabelValues(asset.ID).Observe(time.Since(start).Seconds())
		}
	}

	if e.metrics != nil {
		outcome := "ok"
		if len(result.Errors) > 0 {
			outcome = "error"
		} else {
			e.metrics.LastSuccessfulExport.SetToCurrentTime()
		}
		e.metrics.ExportRunsTotal.WithLabelValues(outcome).Inc()
	}

	return result, nil
}

func (e *Exporter) loadAssets(ctx context.Context, assetIDs []string) ([]*domain.Asset, error) {
	if len(assetIDs) == 0 {
		assets, err := e.assetStore.GetEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("load enabled assets: %w", err)
		}
		return assets, nil
	}

	var assets []*domain.Asset
	for _, id := range assetIDs {
		a, err := e.assetStore.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load asset %s: %w", id, err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// exportAsset writes the full artifact set for one asset and returns
// (candles exported, events aligned, unit errors).
func (e *Exporter) exportAsset(ctx context.Context, asset *domain.Asset) (int, int, []string) {
	assetDir := filepath.Join(e.outDir, asset.ID)
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return 0, 0, []string{fmt.Sprintf("%s: create output dir: %v", asset.ID, err)}
	}

	var errs []string
	totalCandles := 0

	// Prepared (sanitized, normalized, patched) series per timeframe,
	// built once and shared by the candle artifacts and the aligner.
	// Scoped to this export so repeated runs are independent.
	prepared := make(map[domain.Timeframe][]*domain.Candle)

	for _, tf := range domain.AllTimeframes {
		series, err := e.prepareSeries(ctx, asset, tf)
		if err != nil {
			if errors.Is(err, normalize.ErrDuplicateTimestamp) && e.metrics != nil {
				e.metrics.DuplicateHalts.WithLabelValues(asset.ID, tf.String()).Inc()
			}
			errs = append(errs, fmt.Sprintf("%s/%s: %v", asset.ID, tf, err))
			continue
		}
		prepared[tf] = series
	}

	for _, tf := range domain.AllTimeframes {
		series, ok := prepared[tf]
		if !ok || len(series) == 0 {
			continue
		}

		var err error
		if tf == domain.Timeframe1m {
			err = e.writeChunked(assetDir, asset, series)
		} else {
			err = e.writeTimeframe(assetDir, asset, tf, series)
		}
		if err != nil {
			if errors.Is(err, ErrTruncation) && e.metrics != nil {
				e.metrics.TruncationAborts.WithLabelValues(asset.ID, tf.String()).Inc()
			}
			errs = append(errs, fmt.Sprintf("%s/%s: %v", asset.ID, tf, err))
			continue
		}

		totalCandles += len(series)
		if e.metrics != nil {
			e.metrics.CandlesExported.WithLabelValues(asset.ID, tf.String()).Add(float64(len(series)))
		}
	}

	events, err := e.writeAlignedEvents(ctx, assetDir, asset, prepared)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s: aligned events: %v", asset.ID, err))
	}

	if err := e.writeStats(assetDir, events, prepared[domain.Timeframe1d]); err != nil {
		errs = append(errs, fmt.Sprintf("%s: stats: %v", asset.ID, err))
	}

	if e.metrics != nil {
		e.metrics.EventsAligned.Add(float64(len(events)))
	}
	e.logf("Exported %s: %d candles, %d events, %d errors", asset.ID, totalCandles, len(events), len(errs))

	return totalCandles, len(events), errs
}

// prepareSeries reads the canonical series and applies the cleaning
// pipeline: wick capping, normalization/dedup, overrides, and the
// final uniqueness circuit breaker.
func (e *Exporter) prepareSeries(ctx context.Context, asset *domain.Asset, tf domain.Timeframe) ([]*domain.Candle, error) {
	raw, err := e.priceStore.GetSeries(ctx, asset.ID, tf)
	if err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	capped := sanitize.CapWicks(raw, e.wickCap)

	if anomalies := sanitize.FlagAnomalies(capped, sanitize.DefaultAnomalyWindow, e.anomalySigma); len(anomalies) > 0 {
		e.logf("%s/%s: %d anomaly candidates flagged for review", asset.ID, tf, len(anomalies))
		if e.metrics != nil {
			e.metrics.AnomaliesFlagged.WithLabelValues(asset.ID, tf.String()).Add(float64(len(anomalies)))
		}
	}

	normalized, err := normalize.Normalize(tf, capped)
	if err != nil {
		return nil, err
	}

	patched, overridden := e.engine.ApplyCandles(asset.ID, tf, normalized)
	if e.metrics != nil && overridden > 0 {
		e.metrics.OverridesApplied.WithLabelValues(asset.ID).Add(float64(overridden))
	}

	if err := normalize.VerifyUnique(patched); err != nil {
		return nil, err
	}

	return patched, nil
}

func (e *Exporter) writeTimeframe(assetDir string, asset *domain.Asset, tf domain.Timeframe, series []*domain.Candle) error {
	path := filepath.Join(assetDir, fmt.Sprintf("prices_%s.json", tf))

	if err := e.guardTruncation(asset, tf, path, len(series)); err != nil {
		return err
	}

	artifact := PriceArtifact{
		Timeframe: tf,
		Count:     len(series),
		Start:     series[0].Timestamp,
		End:       series[len(series)-1].Timestamp,
		Candles:   toExportCandles(series),
	}

	return writeJSON(path, artifact, false)
}

func (e *Exporter) writeChunked(assetDir string, asset *domain.Asset, series []*domain.Candle) error {
	indexPath := filepath.Join(assetDir, "prices_1m_index.json")

	if err := e.guardTruncation(asset, domain.Timeframe1m, indexPath, len(series)); err != nil {
		return err
	}

	chunks, index := partitionByMonth(series)
	for _, chunk := range chunks {
		path := filepath.Join(assetDir, chunkFileName(chunk.Month))
		if err := writeJSON(path, chunk, false); err != nil {
			return fmt.Errorf("write chunk %s: %w", chunk.Month, err)
		}
	}

	return writeJSON(indexPath, index, true)
}

// guardTruncation blocks the export when the fresh record count drops
// more than 10% below the previously published artifact. Both counts
// are surfaced so the operator can judge the damage.
func (e *Exporter) guardTruncation(asset *domain.Asset, tf domain.Timeframe, path string, newCount int) error {
	oldCount, ok := previousCount(path)
	if !ok {
		return nil
	}

	if float64(newCount) < float64(oldCount)*truncationFloor {
		return fmt.Errorf("%w: %s/%s has %d records, previous artifact had %d",
			ErrTruncation, asset.ID, tf, newCount, oldCount)
	}
	return nil
}

// previousCount reads the record count of a previously published
// artifact. Returns ok=false for a first-time export.
func previousCount(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	// Both PriceArtifact and ChunkIndex carry enough to count records.
	var probe struct {
		Count  int `json:"count"`
		Chunks []struct {
			Count int `json:"count"`
		} `json:"chunks"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, false
	}

	if len(probe.Chunks) > 0 {
		total := 0
		for _, c := range probe.Chunks {
			total += c.Count
		}
		return total, true
	}
	return probe.Count, probe.Count > 0
}

func (e *Exporter) writeAlignedEvents(ctx context.Context, assetDir string, asset *domain.Asset, prepared map[domain.Timeframe][]*domain.Candle) ([]*domain.AlignedEvent, error) {
	posts, err := e.postStore.GetByAsset(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("read posts: %w", err)
	}

	posts = e.engine.ApplyPosts(asset.ID, posts)

	series := make(map[domain.Timeframe]*align.Series, len(align.FallbackChain))
	for _, tf := range align.FallbackChain {
		if candles := prepared[tf]; len(candles) > 0 {
			series[tf] = align.NewSeries(candles)
		}
	}

	aligner := align.NewAligner(series)
	events := aligner.Align(posts, asset.LaunchDate)

	artifact := EventsArtifact{
		GeneratedAt:     e.now().Format("2006-01-02T15:04:05Z"),
		PriceDefinition: "candle close at or before event time, finest timeframe within staleness ceiling",
		Count:           len(events),
		Events:          events,
	}

	path := filepath.Join(assetDir, "tweet_events.json")
	if err := writeJSON(path, artifact, true); err != nil {
		return nil, err
	}
	return events, nil
}

func (e *Exporter) writeStats(assetDir string, events []*domain.AlignedEvent, daily []*domain.Candle) error {
	summary := stats.Compute(events, daily, e.now().Unix())
	return writeJSON(filepath.Join(assetDir, "stats.json"), summary, true)
}

// writeJSON writes an artifact atomically: a torn write must never
// replace a previously published artifact.
func writeJSON(path string, v any, indent bool) error {
	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (e *Exporter) logf(format string, args ...any) {
	if e.verbose {
		e.logger.Printf(format, args...)
	}
}
