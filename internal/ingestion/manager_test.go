package ingestion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
	"tweet-price-lab/internal/ingestion/stub"
	"tweet-price-lab/internal/storage/memory"
)

func testAsset() *domain.Asset {
	return &domain.Asset{
		ID:          "pump",
		Name:        "Pump Token",
		PriceSource: "stub",
		LaunchDate:  0,
		Enabled:     true,
	}
}

// hourBase anchors test series at a realistic epoch so the zero
// timestamp never collides with the newest-page cursor sentinel.
const hourBase = int64(1_704_067_200)

func hourlyCandles(n int) []*domain.Candle {
	candles := make([]*domain.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = &domain.Candle{
			AssetID:   "pump",
			Timeframe: domain.Timeframe1h,
			Timestamp: hourBase + int64(i)*3600,
			Close:     1.0,
		}
	}
	return candles
}

type fixture struct {
	manager *ingestion.Manager
	prices  *memory.PriceStore
	posts   *memory.PostStore
	state   *memory.IngestStateStore
	source  *stub.CandleSource
}

func setup(t *testing.T, source *stub.CandleSource, postSource ingestion.PostSource) *fixture {
	t.Helper()

	f := &fixture{
		prices: memory.NewPriceStore(),
		posts:  memory.NewPostStore(),
		state:  memory.NewIngestStateStore(),
		source: source,
	}
	f.manager = ingestion.NewManager(ingestion.Options{
		PriceStore:    f.prices,
		PostStore:     f.posts,
		StateStore:    f.state,
		CandleSources: map[string]ingestion.CandleSource{"stub": source},
		PostSource:    postSource,
		Now:           func() time.Time { return time.Unix(1_000_000, 0).UTC() },
	})
	return f
}

func TestFetchPrices_FullWalk(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(25)},
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	result, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeFull, 0)
	require.NoError(t, err)

	assert.Equal(t, 25, result.CandlesUpserted)
	assert.Equal(t, 3, result.Pages)
	assert.False(t, result.PlanLimited)

	count, err := f.prices.Count(ctx, "pump", domain.Timeframe1h)
	require.NoError(t, err)
	assert.Equal(t, 25, count)
}

func TestFetchPrices_IncrementalStopsAtKnown(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(50)},
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	// Pre-populate the store with the first 40 candles so only the
	// newest 10 are actually new.
	require.NoError(t, f.prices.UpsertBulk(ctx, hourlyCandles(40)))

	result, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeIncremental, 0)
	require.NoError(t, err)

	assert.True(t, result.StoppedAtKnown)
	// The first page is entirely new; the second reaches back into
	// known territory and stops the walk.
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 20, result.CandlesUpserted)
}

func TestFetchPrices_IncrementalResumesFromState(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(30)},
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	_, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeIncremental, 0)
	require.NoError(t, err)

	state, err := f.state.Get(ctx, "pump", domain.PriceDataType(domain.Timeframe1h))
	require.NoError(t, err)
	require.NotNil(t, state.LastTimestamp)
	assert.Equal(t, hourBase+29*3600, *state.LastTimestamp)

	// A second incremental run sees nothing new and stops after one page.
	source.FetchCalls = 0
	result, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeIncremental, 0)
	require.NoError(t, err)
	assert.True(t, result.StoppedAtKnown)
	assert.Equal(t, 1, source.FetchCalls)
}

func TestFetchPrices_BackfillStopsAtTarget(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(50)},
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	// Walk back to hour 35; two pages cover hours 30..49.
	result, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeBackfill, hourBase+35*3600)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 20, result.CandlesUpserted)
	assert.False(t, result.StoppedAtKnown)
}

func TestFetchPrices_PlanLimitedTolerated(t *testing.T) {
	source := &stub.CandleSource{
		PageSize:        10,
		Candles:         map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(50)},
		PlanLimitBefore: hourBase + 30*3600,
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	result, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeFull, 0)
	require.NoError(t, err, "a plan-tier boundary is not a failure")

	assert.True(t, result.PlanLimited)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 20, result.CandlesUpserted)

	// Committed pages survive the early stop.
	count, err := f.prices.Count(ctx, "pump", domain.Timeframe1h)
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestFetchPrices_SourceErrorAfterCommit(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(30)},
	}
	f := setup(t, source, nil)
	ctx := context.Background()

	// First run commits everything; then a failing source must not
	// disturb what is stored.
	_, err := f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeFull, 0)
	require.NoError(t, err)

	source.Err = errors.New("upstream down")
	_, err = f.manager.FetchPrices(ctx, testAsset(), domain.Timeframe1h, ingestion.ModeFull, 0)
	require.Error(t, err)

	count, err := f.prices.Count(ctx, "pump", domain.Timeframe1h)
	require.NoError(t, err)
	assert.Equal(t, 30, count)
}

func TestFetchPrices_PageBudget(t *testing.T) {
	source := &stub.CandleSource{
		PageSize: 10,
		Candles:  map[domain.Timeframe][]*domain.Candle{domain.Timeframe1h: hourlyCandles(1000)},
	}

	f := &fixture{
		prices: memory.NewPriceStore(),
		posts:  memory.NewPostStore(),
		state:  memory.NewIngestStateStore(),
	}
	f.manager = ingestion.NewManager(ingestion.Options{
		PriceStore:    f.prices,
		PostStore:     f.posts,
		StateStore:    f.state,
		CandleSources: map[string]ingestion.CandleSource{"stub": source},
		MaxPages:      map[domain.Timeframe]int{domain.Timeframe1h: 3},
	})

	result, err := f.manager.FetchPrices(context.Background(), testAsset(), domain.Timeframe1h, ingestion.ModeFull, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 30, result.CandlesUpserted)
}

func TestFetchPrices_UnknownSource(t *testing.T) {
	f := setup(t, &stub.CandleSource{}, nil)

	asset := testAsset()
	asset.PriceSource = "nonexistent"

	_, err := f.manager.FetchPrices(context.Background(), asset, domain.Timeframe1h, ingestion.ModeFull, 0)
	assert.Error(t, err)
}

func TestFetchPrices_InvalidMode(t *testing.T) {
	f := setup(t, &stub.CandleSource{}, nil)

	_, err := f.manager.FetchPrices(context.Background(), testAsset(), domain.Timeframe1h, ingestion.FetchMode("sideways"), 0)
	assert.Error(t, err)
}

func TestFetchPosts_UpsertsAndTracksState(t *testing.T) {
	postSource := &stub.PostSource{Posts: []*domain.Post{
		{ID: "101", Timestamp: 1000, Text: "gm"},
		{ID: "102", Timestamp: 2000, Text: "big news"},
	}}
	f := setup(t, &stub.CandleSource{}, postSource)
	ctx := context.Background()

	result, err := f.manager.FetchPosts(ctx, testAsset(), ingestion.ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PostsUpserted)

	state, err := f.state.Get(ctx, "pump", domain.PostDataType)
	require.NoError(t, err)
	require.NotNil(t, state.LastID)
	assert.Equal(t, "102", *state.LastID)

	// Second incremental run resumes from the stored id.
	postSource.Posts = append(postSource.Posts, &domain.Post{ID: "103", Timestamp: 3000, Text: "ship it"})
	result, err = f.manager.FetchPosts(ctx, testAsset(), ingestion.ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PostsUpserted)

	count, err := f.posts.Count(ctx, "pump")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFetchPosts_NoSourceConfigured(t *testing.T) {
	f := setup(t, &stub.CandleSource{}, nil)

	_, err := f.manager.FetchPosts(context.Background(), testAsset(), ingestion.ModeIncremental)
	assert.Error(t, err)
}
