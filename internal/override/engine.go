package override

import (
	"tweet-price-lab/internal/domain"
)

// Engine applies a rule set to candle and post sequences at read time.
// The base sequences are never mutated; every apply returns new slices.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over a validated rule set.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// candlePatch is the resolved outcome for one (asset, timeframe, timestamp).
// Cap rules apply in file order, last wins; any exclude is absolute and
// wins over caps regardless of order.
type candlePatch struct {
	exclude bool
	capHigh *float64
	capLow  *float64
}

// ApplyCandles returns a patched copy of the sequence for one
// (asset, timeframe), plus the number of candles a rule touched:
// capped, excluded, or dropped by a restrict range.
func (e *Engine) ApplyCandles(assetID string, tf domain.Timeframe, candles []*domain.Candle) ([]*domain.Candle, int) {
	if len(candles) == 0 {
		return nil, 0
	}

	patches := make(map[int64]*candlePatch)
	var ranges []DateRange

	for _, r := range e.rules {
		if r.AssetID != assetID {
			continue
		}

		if r.Action == ActionRestrictDateRange {
			ranges = append(ranges, *r.DateRange)
			continue
		}
		if r.Timeframe != tf || r.Timestamp == nil {
			continue
		}

		p := patches[*r.Timestamp]
		if p == nil {
			p = &candlePatch{}
			patches[*r.Timestamp] = p
		}

		switch r.Action {
		case ActionExcludeCandle:
			p.exclude = true
		case ActionCapHigh:
			v := r.Value
			p.capHigh = &v
		case ActionCapLow:
			v := r.Value
			p.capLow = &v
		}
	}

	applied := 0
	result := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		if !insideRanges(c.Timestamp, ranges) {
			applied++
			continue
		}

		p := patches[c.Timestamp]
		if p != nil && p.exclude {
			applied++
			continue
		}

		candleCopy := *c
		if p != nil && (p.capHigh != nil || p.capLow != nil) {
			if p.capHigh != nil {
				candleCopy.High = *p.capHigh
			}
			if p.capLow != nil {
				candleCopy.Low = *p.capLow
			}
			applied++
		}
		result = append(result, &candleCopy)
	}

	return result, applied
}

// ApplyPosts returns a patched copy of the post sequence for one asset.
// exclude_post rules match on the post timestamp; restrict ranges apply
// the same way they do for candles.
func (e *Engine) ApplyPosts(assetID string, posts []*domain.Post) []*domain.Post {
	if len(posts) == 0 {
		return nil
	}

	excluded := make(map[int64]struct{})
	var ranges []DateRange

	for _, r := range e.rules {
		if r.AssetID != assetID {
			continue
		}
		switch r.Action {
		case ActionExcludePost:
			excluded[*r.Timestamp] = struct{}{}
		case ActionRestrictDateRange:
			ranges = append(ranges, *r.DateRange)
		}
	}

	result := make([]*domain.Post, 0, len(posts))
	for _, p := range posts {
		if !insideRanges(p.Timestamp, ranges) {
			continue
		}
		if _, drop := excluded[p.Timestamp]; drop {
			continue
		}
		postCopy := *p
		result = append(result, &postCopy)
	}

	return result
}

// insideRanges reports whether ts falls inside every restrict range.
// Each restrict rule applies independently, so a record must satisfy
// all of them to survive.
func insideRanges(ts int64, ranges []DateRange) bool {
	for _, r := range ranges {
		if ts < r.Start || ts > r.End {
			return false
		}
	}
	return true
}
