package storage

import (
	"context"

	"tweet-price-lab/internal/domain"
)

// AssetStore provides access to assets storage.
type AssetStore interface {
	// Upsert inserts or updates an asset keyed by id.
	Upsert(ctx context.Context, a *domain.Asset) error

	// GetByID retrieves an asset by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, assetID string) (*domain.Asset, error)

	// GetEnabled retrieves all enabled assets, ordered by name.
	GetEnabled(ctx context.Context) ([]*domain.Asset, error)

	// GetAll retrieves all assets including disabled, ordered by name.
	GetAll(ctx context.Context) ([]*domain.Asset, error)
}

// PriceStore provides access to prices storage.
//
// Writes for the same (asset_id, timeframe) must come from a single
// fetch job at a time; upserts are idempotent so a restarted job may
// safely rewrite pages it already committed.
type PriceStore interface {
	// UpsertBulk inserts candles, replacing OHLCV and data_source for
	// existing (asset_id, timeframe, timestamp) keys.
	UpsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetSeries retrieves all non-deprecated candles for an asset and
	// timeframe, ordered by timestamp ASC.
	GetSeries(ctx context.Context, assetID string, tf domain.Timeframe) ([]*domain.Candle, error)

	// GetRange retrieves non-deprecated candles within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetRange(ctx context.Context, assetID string, tf domain.Timeframe, start, end int64) ([]*domain.Candle, error)

	// Count returns the number of non-deprecated candles stored for
	// an asset and timeframe.
	Count(ctx context.Context, assetID string, tf domain.Timeframe) (int, error)

	// OldestTimestamp returns the oldest stored timestamp, or
	// ErrNotFound when no candles exist.
	OldestTimestamp(ctx context.Context, assetID string, tf domain.Timeframe) (int64, error)

	// LatestTimestamp returns the newest stored timestamp, or
	// ErrNotFound when no candles exist.
	LatestTimestamp(ctx context.Context, assetID string, tf domain.Timeframe) (int64, error)

	// Deprecate soft-deletes candles within [start, end] after the
	// caller has verified replacement data overlaps the range.
	Deprecate(ctx context.Context, assetID string, tf domain.Timeframe, start, end int64) (int, error)
}

// PostStore provides access to posts storage.
type PostStore interface {
	// UpsertBulk inserts posts, refreshing engagement counts for
	// existing ids while preserving timestamp and text.
	UpsertBulk(ctx context.Context, posts []*domain.Post) error

	// GetByAsset retrieves all posts for an asset, ordered by timestamp ASC.
	GetByAsset(ctx context.Context, assetID string) ([]*domain.Post, error)

	// Count returns the number of posts stored for an asset.
	Count(ctx context.Context, assetID string) (int, error)
}

// IngestStateStore provides access to ingestion_state storage.
type IngestStateStore interface {
	// Get retrieves the resume point for (asset_id, data_type).
	// Returns ErrNotFound if no fetch has completed yet.
	Get(ctx context.Context, assetID, dataType string) (*domain.IngestState, error)

	// Update records a new resume point. Nil fields keep their
	// previously stored values.
	Update(ctx context.Context, state *domain.IngestState) error
}
