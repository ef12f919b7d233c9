// Package ingestion coordinates batch fetching from upstream price and
// post APIs into the canonical store.
package ingestion

import (
	"context"
	"errors"

	"tweet-price-lab/internal/domain"
)

// ErrPlanLimited is returned by a source when the upstream rejects a
// request for plan-tier reasons (typically a date range outside the
// paid window). It means "no data available from this source for this
// range", not a pipeline failure; the fetch continues elsewhere.
var ErrPlanLimited = errors.New("range not available on current plan tier")

// CandleSource produces source-tagged candles from an upstream API.
//
// Pagination is backward-only for at least one upstream: each page is
// older than the last. FetchPage with beforeTimestamp == 0 returns the
// most recent page; subsequent calls pass the oldest timestamp seen so
// far. An empty page signals the end of available history.
type CandleSource interface {
	// Name returns the data_source tag this source stamps on candles.
	Name() string

	// FetchPage fetches one page of candles older than beforeTimestamp
	// (or the newest page when beforeTimestamp is 0). Candles carry the
	// source's own tag and the upstream's native timestamps.
	FetchPage(ctx context.Context, asset *domain.Asset, tf domain.Timeframe, beforeTimestamp int64) ([]*domain.Candle, error)
}

// PostSource produces posts with stable ids and monotonically
// updatable engagement counts.
type PostSource interface {
	// Name returns the source tag.
	Name() string

	// FetchSince fetches posts newer than sinceID (all available posts
	// when sinceID is nil). Re-fetched posts carry refreshed engagement.
	FetchSince(ctx context.Context, asset *domain.Asset, sinceID *string) ([]*domain.Post, error)
}
