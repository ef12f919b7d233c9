// Package align matches posts to the nearest valid price observation
// and computes forward returns at fixed horizons.
package align

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tweet-price-lab/internal/domain"
)

// FallbackChain is the fixed timeframe priority for price matching:
// finest granularity first. Reordering changes which price is chosen
// for posts near timeframe boundaries and silently corrupts historical
// alignment, so the order is a constant, not inferred from anywhere.
var FallbackChain = []domain.Timeframe{
	domain.Timeframe1m,
	domain.Timeframe1h,
	domain.Timeframe1d,
}

// StalenessCeiling is the maximum age a matched price may have relative
// to the event, per timeframe, in seconds.
var StalenessCeiling = map[domain.Timeframe]int64{
	domain.Timeframe1m: 3600,          // 1 hour
	domain.Timeframe1h: 24 * 3600,     // 24 hours
	domain.Timeframe1d: 7 * 24 * 3600, // 7 days
}

// Horizons for forward returns, in seconds.
const (
	Horizon1h  = int64(3600)
	Horizon24h = int64(86400)
)

// Series is a binary-searchable close-price series for one timeframe.
// Candles must be normalized (unique, ascending timestamps) before
// indexing.
type Series struct {
	timestamps []int64
	closes     []float64
}

// NewSeries builds a Series from normalized candles.
func NewSeries(candles []*domain.Candle) *Series {
	s := &Series{
		timestamps: make([]int64, len(candles)),
		closes:     make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.timestamps[i] = c.Timestamp
		s.closes[i] = c.Close
	}
	return s
}

// At returns the close price and timestamp of the most recent candle
// at or before target. ok is false when target precedes the series.
func (s *Series) At(target int64) (price float64, ts int64, ok bool) {
	if len(s.timestamps) == 0 {
		return 0, 0, false
	}

	// First index with timestamp > target.
	idx := sort.Search(len(s.timestamps), func(i int) bool {
		return s.timestamps[i] > target
	})
	if idx == 0 {
		return 0, 0, false
	}

	return s.closes[idx-1], s.timestamps[idx-1], true
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.timestamps)
}

// Aligner joins posts to prices across the fallback chain.
// Series are passed in explicitly per alignment run; there is no
// process-wide cache, so repeated runs are independent.
type Aligner struct {
	series map[domain.Timeframe]*Series
}

// NewAligner creates an aligner over per-timeframe series. Missing
// timeframes simply never match.
func NewAligner(series map[domain.Timeframe]*Series) *Aligner {
	return &Aligner{series: series}
}

// Match finds the most recent price at or before target, preferring
// finer granularity first, subject to each timeframe's staleness
// ceiling. Returns ok=false when no timeframe satisfies its ceiling.
func (a *Aligner) Match(target int64) (price float64, matched domain.Timeframe, ok bool) {
	for _, tf := range FallbackChain {
		s := a.series[tf]
		if s == nil || s.Len() == 0 {
			continue
		}

		p, ts, found := s.At(target)
		if !found {
			continue
		}
		if target-ts <= StalenessCeiling[tf] {
			return p, tf, true
		}
	}
	return 0, "", false
}

// Align produces one event per post at or after the asset's launch
// date. Posts before launch are definitionally invalid (test data or a
// wrong asset association) and are dropped regardless of price-match
// success. Each horizon is matched independently; a missing +24h price
// does not invalidate a found +1h price.
func (a *Aligner) Align(posts []*domain.Post, launchDate int64) []*domain.AlignedEvent {
	events := make([]*domain.AlignedEvent, 0, len(posts))

	for _, p := range posts {
		if p.Timestamp < launchDate {
			continue
		}

		event := &domain.AlignedEvent{
			PostID:       p.ID,
			AssetID:      p.AssetID,
			Timestamp:    p.Timestamp,
			TimestampISO: isoUTC(p.Timestamp),
			Text:         p.Text,
			Likes:        p.Likes,
			Retweets:     p.Retweets,
			Replies:      p.Replies,
			Impressions:  p.Impressions,
		}

		if price, tf, ok := a.Match(p.Timestamp); ok {
			event.PriceAtPost = &price
			matched := tf
			event.MatchedTimeframe = &matched
		}
		if price, _, ok := a.Match(p.Timestamp + Horizon1h); ok {
			event.Price1h = &price
		}
		if price, _, ok := a.Match(p.Timestamp + Horizon24h); ok {
			event.Price24h = &price
		}

		event.Change1hPct = pctChange(event.PriceAtPost, event.Price1h)
		event.Change24hPct = pctChange(event.PriceAtPost, event.Price24h)

		events = append(events, event)
	}

	return events
}

// pctChange computes (later - base) / base * 100 rounded to 2 decimals,
// propagating nil when either endpoint is missing.
func pctChange(base, later *float64) *float64 {
	if base == nil || later == nil || *base == 0 {
		return nil
	}
	change := (*later - *base) / *base * 100
	rounded := round2(change)
	return &rounded
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isoUTC(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02T15:04:05Z")
}

// String implements fmt.Stringer for diagnostics.
func (s *Series) String() string {
	if len(s.timestamps) == 0 {
		return "series(empty)"
	}
	return fmt.Sprintf("series(%d points, %d..%d)", len(s.timestamps), s.timestamps[0], s.timestamps[len(s.timestamps)-1])
}
