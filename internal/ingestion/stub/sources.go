// Package stub provides fake ingestion sources for tests and dry runs.
package stub

import (
	"context"
	"sort"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
)

// CandleSource serves pre-loaded candles in backward pages, newest
// page first, imitating the upstream pagination contract.
type CandleSource struct {
	SourceName string
	PageSize   int

	// Candles per timeframe, any order; served sorted.
	Candles map[domain.Timeframe][]*domain.Candle

	// Err, when set, is returned by every FetchPage call.
	Err error

	// PlanLimitBefore rejects pages strictly older than this timestamp
	// with ErrPlanLimited, imitating a paid-window boundary.
	PlanLimitBefore int64

	// FetchCalls counts FetchPage invocations.
	FetchCalls int
}

// Compile-time interface check.
var _ ingestion.CandleSource = (*CandleSource)(nil)

// Name returns the stub's source tag.
func (s *CandleSource) Name() string {
	if s.SourceName == "" {
		return "stub"
	}
	return s.SourceName
}

// FetchPage returns the newest PageSize candles older than
// beforeTimestamp (all of them ordered, paged from the end).
func (s *CandleSource) FetchPage(_ context.Context, _ *domain.Asset, tf domain.Timeframe, beforeTimestamp int64) ([]*domain.Candle, error) {
	s.FetchCalls++

	if s.Err != nil {
		return nil, s.Err
	}

	all := make([]*domain.Candle, len(s.Candles[tf]))
	copy(all, s.Candles[tf])
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })

	// Keep only candles older than the cursor.
	if beforeTimestamp > 0 {
		cut := sort.Search(len(all), func(i int) bool { return all[i].Timestamp >= beforeTimestamp })
		all = all[:cut]
	}
	if len(all) == 0 {
		return nil, nil
	}

	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	start := len(all) - pageSize
	if start < 0 {
		start = 0
	}
	page := all[start:]

	if s.PlanLimitBefore > 0 && page[len(page)-1].Timestamp < s.PlanLimitBefore {
		return nil, ingestion.ErrPlanLimited
	}

	result := make([]*domain.Candle, len(page))
	for i, c := range page {
		candleCopy := *c
		candleCopy.DataSource = s.Name()
		result[i] = &candleCopy
	}
	return result, nil
}

// PostSource serves pre-loaded posts.
type PostSource struct {
	SourceName string
	Posts      []*domain.Post
	Err        error
}

// Compile-time interface check.
var _ ingestion.PostSource = (*PostSource)(nil)

// Name returns the stub's source tag.
func (s *PostSource) Name() string {
	if s.SourceName == "" {
		return "stub"
	}
	return s.SourceName
}

// FetchSince returns all posts with id greater than sinceID.
func (s *PostSource) FetchSince(_ context.Context, _ *domain.Asset, sinceID *string) ([]*domain.Post, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	var result []*domain.Post
	for _, p := range s.Posts {
		if sinceID != nil && p.ID <= *sinceID {
			continue
		}
		postCopy := *p
		result = append(result, &postCopy)
	}
	return result, nil
}
