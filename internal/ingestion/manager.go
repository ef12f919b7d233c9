package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/observability"
	"tweet-price-lab/internal/storage"
)

// FetchMode selects how far back a price fetch walks.
type FetchMode string

const (
	// ModeIncremental stops at the newest timestamp already stored.
	ModeIncremental FetchMode = "incremental"
	// ModeBackfill walks back to an explicit start timestamp.
	ModeBackfill FetchMode = "backfill"
	// ModeFull walks back until the upstream runs out of history.
	ModeFull FetchMode = "full"
)

// IsValid checks if the mode is a supported value.
func (m FetchMode) IsValid() bool {
	return m == ModeIncremental || m == ModeBackfill || m == ModeFull
}

// defaultMaxPages bounds a single walk per timeframe. Finer timeframes
// need more pages for the same wall-clock span.
var defaultMaxPages = map[domain.Timeframe]int{
	domain.Timeframe1m:  100,
	domain.Timeframe15m: 50,
	domain.Timeframe1h:  30,
	domain.Timeframe1d:  10,
}

// Options contains configuration for creating a Manager.
type Options struct {
	PriceStore storage.PriceStore
	PostStore  storage.PostStore
	StateStore storage.IngestStateStore

	// CandleSources maps a data_source tag to its implementation; an
	// asset's PriceSource field selects which one serves it.
	CandleSources map[string]CandleSource
	PostSource    PostSource

	// MaxPages overrides defaultMaxPages per timeframe when non-nil.
	MaxPages map[domain.Timeframe]int

	Metrics *observability.Metrics
	Logger  *log.Logger

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// Manager runs fetch jobs against the canonical store.
//
// Writes for one (asset, timeframe) must come from a single Manager
// call at a time: the store's natural-key constraint makes upserts
// idempotent, but interleaved jobs for the same asset would race on
// the resume state. Callers run one job per asset to completion;
// different assets may be fetched in parallel.
type Manager struct {
	priceStore    storage.PriceStore
	postStore     storage.PostStore
	stateStore    storage.IngestStateStore
	candleSources map[string]CandleSource
	postSource    PostSource
	maxPages      map[domain.Timeframe]int
	metrics       *observability.Metrics
	logger        *log.Logger
	now           func() time.Time
}

// NewManager creates a new fetch Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxPages := opts.MaxPages
	if maxPages == nil {
		maxPages = defaultMaxPages
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		priceStore:    opts.PriceStore,
		postStore:     opts.PostStore,
		stateStore:    opts.StateStore,
		candleSources: opts.CandleSources,
		postSource:    opts.PostSource,
		maxPages:      maxPages,
		metrics:       opts.Metrics,
		logger:        logger,
		now:           now,
	}
}

// PriceFetchResult contains statistics from one price fetch walk.
type PriceFetchResult struct {
	Pages           int
	CandlesUpserted int
	PlanLimited     bool
	StoppedAtKnown  bool
}

// FetchPrices walks one (asset, timeframe) backward page by page.
//
// Each page is committed before the next request, so a failure mid
// pagination leaves previously committed pages intact and a restart
// resumes safely from the last committed timestamp. The walk ends when:
//   - the upstream returns an empty page (end of history),
//   - incremental mode observes a page whose oldest timestamp is at or
//     before the newest stored timestamp (nothing older is new),
//   - backfill mode walks past its target start,
//   - the page budget runs out, or
//   - the plan tier rejects the range (recoverable, not an error).
func (m *Manager) FetchPrices(ctx context.Context, asset *domain.Asset, tf domain.Timeframe, mode FetchMode, backfillTo int64) (*PriceFetchResult, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid fetch mode %q", mode)
	}

	source, ok := m.candleSources[asset.PriceSource]
	if !ok {
		return nil, fmt.Errorf("no candle source registered for %q", asset.PriceSource)
	}

	stopAt := int64(0)
	if mode == ModeIncremental {
		stopAt = m.lastKnownTimestamp(ctx, asset.ID, tf)
	} else if mode == ModeBackfill {
		stopAt = backfillTo
	}

	if m.metrics != nil {
		start := time.Now()
		defer func() {
			m.metrics.FetchDuration.WithLabelValues(asset.ID).Observe(time.Since(start).Seconds())
		}()
	}

	result := &PriceFetchResult{}
	var newest int64
	before := int64(0)

	for result.Pages < m.pageBudget(tf) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := source.FetchPage(ctx, asset, tf, before)
		if err != nil {
			if errors.Is(err, ErrPlanLimited) {
				result.PlanLimited = true
				m.logger.Printf("%s/%s: plan tier limit reached after %d pages", asset.ID, tf, result.Pages)
				if m.metrics != nil {
					m.metrics.PlanLimitedFetches.WithLabelValues(source.Name()).Inc()
				}
				break
			}
			if m.metrics != nil {
				m.metrics.FetchErrors.WithLabelValues(source.Name()).Inc()
			}
			return result, fmt.Errorf("fetch page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		oldest := page[0].Timestamp
		for _, c := range page {
			c.FetchedAt = m.now().Unix()
			if c.Timestamp < oldest {
				oldest = c.Timestamp
			}
			if c.Timestamp > newest {
				newest = c.Timestamp
			}
		}

		// Commit this page before requesting the next one.
		if err := m.priceStore.UpsertBulk(ctx, page); err != nil {
			return result, fmt.Errorf("commit page: %w", err)
		}

		result.Pages++
		result.CandlesUpserted += len(page)
		if m.metrics != nil {
			m.metrics.FetchPagesTotal.WithLabelValues(asset.ID, tf.String(), source.Name()).Inc()
			m.metrics.CandlesUpserted.WithLabelValues(asset.ID, tf.String()).Add(float64(len(page)))
		}

		// Termination predicate for the backward walk.
		if mode != ModeFull && oldest <= stopAt {
			result.StoppedAtKnown = mode == ModeIncremental
			break
		}
		// No progress means the upstream repeated a page.
		if before != 0 && oldest >= before {
			break
		}

		before = oldest
	}

	if newest > 0 {
		state := &domain.IngestState{
			AssetID:       asset.ID,
			DataType:      domain.PriceDataType(tf),
			LastTimestamp: &newest,
			UpdatedAt:     m.now().Unix(),
		}
		if err := m.stateStore.Update(ctx, state); err != nil {
			return result, fmt.Errorf("update ingest state: %w", err)
		}
	}

	if m.metrics != nil {
		m.metrics.LastSuccessfulFetch.SetToCurrentTime()
	}

	return result, nil
}

// lastKnownTimestamp prefers the resume state, falling back to the
// store itself for databases populated before state tracking existed.
func (m *Manager) lastKnownTimestamp(ctx context.Context, assetID string, tf domain.Timeframe) int64 {
	if state, err := m.stateStore.Get(ctx, assetID, domain.PriceDataType(tf)); err == nil && state.LastTimestamp != nil {
		return *state.LastTimestamp
	}

	if ts, err := m.priceStore.LatestTimestamp(ctx, assetID, tf); err == nil {
		return ts
	}
	return 0
}

func (m *Manager) pageBudget(tf domain.Timeframe) int {
	if budget, ok := m.maxPages[tf]; ok && budget > 0 {
		return budget
	}
	return 20
}

// PostFetchResult contains statistics from one post fetch.
type PostFetchResult struct {
	PostsUpserted int
}

// FetchPosts fetches posts for an asset and upserts them, refreshing
// engagement for posts already stored. Incremental resume uses the
// newest stored post id.
func (m *Manager) FetchPosts(ctx context.Context, asset *domain.Asset, mode FetchMode) (*PostFetchResult, error) {
	if m.postSource == nil {
		return nil, errors.New("no post source configured")
	}

	var sinceID *string
	if mode == ModeIncremental {
		if state, err := m.stateStore.Get(ctx, asset.ID, domain.PostDataType); err == nil {
			sinceID = state.LastID
		}
	}

	posts, err := m.postSource.FetchSince(ctx, asset, sinceID)
	if err != nil {
		if m.metrics != nil {
			m.metrics.FetchErrors.WithLabelValues(m.postSource.Name()).Inc()
		}
		return nil, fmt.Errorf("fetch posts: %w", err)
	}

	result := &PostFetchResult{}
	if len(posts) == 0 {
		return result, nil
	}

	var newestID string
	var newestTs int64
	for _, p := range posts {
		p.AssetID = asset.ID
		p.FetchedAt = m.now().Unix()
		if p.Timestamp > newestTs {
			newestTs = p.Timestamp
			newestID = p.ID
		}
	}

	if err := m.postStore.UpsertBulk(ctx, posts); err != nil {
		return nil, fmt.Errorf("commit posts: %w", err)
	}
	result.PostsUpserted = len(posts)
	if m.metrics != nil {
		m.metrics.PostsUpserted.Add(float64(len(posts)))
	}

	state := &domain.IngestState{
		AssetID:       asset.ID,
		DataType:      domain.PostDataType,
		LastID:        &newestID,
		LastTimestamp: &newestTs,
		UpdatedAt:     m.now().Unix(),
	}
	if err := m.stateStore.Update(ctx, state); err != nil {
		return result, fmt.Errorf("update ingest state: %w", err)
	}

	return result, nil
}
