// Package normalize reconciles multi-source candle sequences into
// uniquely-timestamped, bucket-aligned series.
package normalize

import (
	"errors"
	"fmt"

	"tweet-price-lab/internal/domain"
)

// ErrDuplicateTimestamp is returned when two candles share a timestamp
// after deduplication. The pipeline must halt rather than let duplicate
// timestamps reach the presentation layer.
var ErrDuplicateTimestamp = errors.New("duplicate timestamp after normalization")

const daySeconds = 86400

// SnapDaily snaps a timestamp to midnight UTC of its calendar day.
// Sources disagree on the daily anchor hour (00:00, 04:00, 05:00 UTC);
// snapping collapses them onto one bucket per calendar day before the
// uniqueness check.
func SnapDaily(ts int64) int64 {
	return (ts / daySeconds) * daySeconds
}

// Normalize produces a sequence with strictly unique timestamps from an
// ordered-by-timestamp raw sequence for one (asset, timeframe).
//
// Policy is first-wins, not merge: the first occurrence of a bucket is
// authoritative and later duplicates are discarded. For the daily
// timeframe, timestamps are snapped to midnight UTC before dedup.
// Normalizing an already-normalized sequence is a no-op.
//
// The input is never mutated; the result is a new slice of copies.
func Normalize(tf domain.Timeframe, candles []*domain.Candle) ([]*domain.Candle, error) {
	if len(candles) == 0 {
		return nil, nil
	}

	result := make([]*domain.Candle, 0, len(candles))
	seen := make(map[int64]struct{}, len(candles))

	for _, c := range candles {
		candleCopy := *c
		if tf == domain.Timeframe1d {
			candleCopy.Timestamp = SnapDaily(candleCopy.Timestamp)
		}

		if _, dup := seen[candleCopy.Timestamp]; dup {
			continue
		}
		seen[candleCopy.Timestamp] = struct{}{}
		result = append(result, &candleCopy)
	}

	if err := VerifyUnique(result); err != nil {
		return nil, err
	}

	return result, nil
}

// VerifyUnique checks the safety invariant that no two candles share a
// timestamp. Used as a circuit breaker before export.
func VerifyUnique(candles []*domain.Candle) error {
	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, dup := seen[c.Timestamp]; dup {
			return fmt.Errorf("%w: timestamp %d", ErrDuplicateTimestamp, c.Timestamp)
		}
		seen[c.Timestamp] = struct{}{}
	}
	return nil
}
