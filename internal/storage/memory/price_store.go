package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Candle // keyed by (asset_id, timeframe, timestamp)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.Candle),
	}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// candleKey generates a unique key for a candle.
func candleKey(assetID string, tf domain.Timeframe, ts int64) string {
	return fmt.Sprintf("%s|%s|%d", assetID, tf, ts)
}

// UpsertBulk inserts candles, replacing OHLCV for existing keys.
func (s *PriceStore) UpsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range candles {
		if c == nil || c.AssetID == "" || !c.Timeframe.IsValid() {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.AssetID, c.Timeframe, c.Timestamp)
		candleCopy := *c
		// Upsert keeps deprecation cleared: a re-fetched candle is live again.
		candleCopy.Deprecated = false
		s.data[key] = &candleCopy
	}

	return nil
}

// GetSeries retrieves all non-deprecated candles for an asset and
// timeframe, ordered by timestamp ASC.
func (s *PriceStore) GetSeries(_ context.Context, assetID string, tf domain.Timeframe) ([]*domain.Candle, error) {
	return s.collect(assetID, tf, nil)
}

// GetRange retrieves non-deprecated candles within [start, end] (inclusive).
func (s *PriceStore) GetRange(_ context.Context, assetID string, tf domain.Timeframe, start, end int64) ([]*domain.Candle, error) {
	return s.collect(assetID, tf, func(c *domain.Candle) bool {
		return c.Timestamp >= start && c.Timestamp <= end
	})
}

func (s *PriceStore) collect(assetID string, tf domain.Timeframe, keep func(*domain.Candle) bool) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if c.AssetID != assetID || c.Timeframe != tf || c.Deprecated {
			continue
		}
		if keep != nil && !keep(c) {
			continue
		}
		candleCopy := *c
		result = append(result, &candleCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Count returns the number of non-deprecated candles stored.
func (s *PriceStore) Count(_ context.Context, assetID string, tf domain.Timeframe) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.data {
		if c.AssetID == assetID && c.Timeframe == tf && !c.Deprecated {
			count++
		}
	}
	return count, nil
}

// OldestTimestamp returns the oldest stored timestamp, or ErrNotFound
// when no candles exist.
func (s *PriceStore) OldestTimestamp(_ context.Context, assetID string, tf domain.Timeframe) (int64, error) {
	return s.boundary(assetID, tf, func(candidate, best int64) bool { return candidate < best })
}

// LatestTimestamp returns the newest stored timestamp, or ErrNotFound
// when no candles exist.
func (s *PriceStore) LatestTimestamp(_ context.Context, assetID string, tf domain.Timeframe) (int64, error) {
	return s.boundary(assetID, tf, func(candidate, best int64) bool { return candidate > best })
}

func (s *PriceStore) boundary(assetID string, tf domain.Timeframe, better func(candidate, best int64) bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best int64
	found := false
	for _, c := range s.data {
		if c.AssetID != assetID || c.Timeframe != tf || c.Deprecated {
			continue
		}
		if !found || better(c.Timestamp, best) {
			best = c.Timestamp
			found = true
		}
	}

	if !found {
		return 0, storage.ErrNotFound
	}
	return best, nil
}

// Deprecate soft-deletes candles within [start, end]. Returns the
// number of candles flagged.
func (s *PriceStore) Deprecate(_ context.Context, assetID string, tf domain.Timeframe, start, end int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.data {
		if c.AssetID != assetID || c.Timeframe != tf || c.Deprecated {
			continue
		}
		if c.Timestamp >= start && c.Timestamp <= end {
			c.Deprecated = true
			count++
		}
	}
	return count, nil
}
