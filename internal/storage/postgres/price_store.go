package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

const upsertCandleQuery = `
	INSERT INTO prices (
		asset_id, timeframe, timestamp, open, high, low, close, volume,
		data_source, deprecated, fetched_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)
	ON CONFLICT (asset_id, timeframe, timestamp) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		data_source = EXCLUDED.data_source,
		deprecated = false,
		fetched_at = EXCLUDED.fetched_at
`

// UpsertBulk inserts candles atomically, replacing OHLCV for existing
// (asset_id, timeframe, timestamp) keys. A restarted fetch job may
// rewrite pages it already committed; the result is identical.
func (s *PriceStore) UpsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range candles {
		if c == nil || c.AssetID == "" || !c.Timeframe.IsValid() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, upsertCandleQuery,
			c.AssetID,
			c.Timeframe,
			c.Timestamp,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.DataSource,
			c.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert candle: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetSeries retrieves all non-deprecated candles for an asset and
// timeframe, ordered by timestamp ASC.
func (s *PriceStore) GetSeries(ctx context.Context, assetID string, tf domain.Timeframe) ([]*domain.Candle, error) {
	query := `
		SELECT asset_id, timeframe, timestamp, open, high, low, close, volume,
		       data_source, deprecated, fetched_at
		FROM prices
		WHERE asset_id = $1 AND timeframe = $2 AND deprecated = false
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID, tf)
	if err != nil {
		return nil, fmt.Errorf("get price series: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetRange retrieves non-deprecated candles within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *PriceStore) GetRange(ctx context.Context, assetID string, tf domain.Timeframe, start, end int64) ([]*domain.Candle, error) {
	query := `
		SELECT asset_id, timeframe, timestamp, open, high, low, close, volume,
		       data_source, deprecated, fetched_at
		FROM prices
		WHERE asset_id = $1 AND timeframe = $2 AND deprecated = false
		  AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID, tf, start, end)
	if err != nil {
		return nil, fmt.Errorf("get price range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Count returns the number of non-deprecated candles stored.
func (s *PriceStore) Count(ctx context.Context, assetID string, tf domain.Timeframe) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM prices
		WHERE asset_id = $1 AND timeframe = $2 AND deprecated = false
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, assetID, tf).Scan(&count); err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return count, nil
}

// OldestTimestamp returns the oldest stored timestamp, or ErrNotFound
// when no candles exist.
func (s *PriceStore) OldestTimestamp(ctx context.Context, assetID string, tf domain.Timeframe) (int64, error) {
	return s.boundaryTimestamp(ctx, assetID, tf, "MIN")
}

// LatestTimestamp returns the newest stored timestamp, or ErrNotFound
// when no candles exist.
func (s *PriceStore) LatestTimestamp(ctx context.Context, assetID string, tf domain.Timeframe) (int64, error) {
	return s.boundaryTimestamp(ctx, assetID, tf, "MAX")
}

func (s *PriceStore) boundaryTimestamp(ctx context.Context, assetID string, tf domain.Timeframe, agg string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT %s(timestamp)
		FROM prices
		WHERE asset_id = $1 AND timeframe = $2 AND deprecated = false
	`, agg)

	var ts *int64
	if err := s.pool.QueryRow(ctx, query, assetID, tf).Scan(&ts); err != nil {
		return 0, fmt.Errorf("boundary timestamp: %w", err)
	}
	if ts == nil {
		return 0, storage.ErrNotFound
	}
	return *ts, nil
}

// Deprecate soft-deletes candles within [start, end]. Returns the
// number of candles flagged.
func (s *PriceStore) Deprecate(ctx context.Context, assetID string, tf domain.Timeframe, start, end int64) (int, error) {
	query := `
		UPDATE prices
		SET deprecated = true
		WHERE asset_id = $1 AND timeframe = $2
		  AND timestamp >= $3 AND timestamp <= $4
	`

	tag, err := s.pool.Exec(ctx, query, assetID, tf, start, end)
	if err != nil {
		return 0, fmt.Errorf("deprecate candles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle

		err := rows.Scan(
			&c.AssetID,
			&c.Timeframe,
			&c.Timestamp,
			&c.Open,
			&c.High,
			&c.Low,
			&c.Close,
			&c.Volume,
			&c.DataSource,
			&c.Deprecated,
			&c.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
