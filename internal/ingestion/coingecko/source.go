// Package coingecko fetches daily prices from the CoinGecko API for
// assets that have no DEX pool to read OHLCV from.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
)

const (
	// SourceName is the data_source tag stamped on every candle.
	SourceName = "coingecko"

	defaultBaseURL = "https://api.coingecko.com/api/v3"

	// pageSpanDays is the window requested per page. Ranges over 90
	// days come back with daily granularity, which is what we want.
	pageSpanDays = 180

	defaultRateLimitWait = 60 * time.Second
)

// Options contains configuration for creating a Source.
type Options struct {
	BaseURL string

	// APIKey is sent as the demo-tier header when set.
	APIKey string

	RateLimitWait time.Duration

	Logger *log.Logger

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// Source is an ingestion.CandleSource backed by CoinGecko's
// market_chart/range endpoint. CoinGecko returns point prices rather
// than OHLC, so each daily candle is flat: open, high, low and close
// all carry the day's price.
type Source struct {
	client        *resty.Client
	rateLimitWait time.Duration
	logger        *log.Logger
	now           func() time.Time
}

var _ ingestion.CandleSource = (*Source)(nil)

// New creates a new CoinGecko source.
func New(opts Options) *Source {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	wait := opts.RateLimitWait
	if wait == 0 {
		wait = defaultRateLimitWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetHeader("x-cg-demo-api-key", opts.APIKey)
	}

	return &Source{
		client:        client,
		rateLimitWait: wait,
		logger:        logger,
		now:           now,
	}
}

// Name returns the source tag.
func (s *Source) Name() string {
	return SourceName
}

type marketChartResponse struct {
	// Each entry is [timestamp_ms, value].
	Prices       [][]float64 `json:"prices"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// FetchPage fetches one window of daily prices ending at
// beforeTimestamp (or now when beforeTimestamp is 0). Only the daily
// timeframe is served; windows that start before the asset's launch
// are clamped to it, and a window entirely before launch ends the walk.
func (s *Source) FetchPage(ctx context.Context, asset *domain.Asset, tf domain.Timeframe, beforeTimestamp int64) ([]*domain.Candle, error) {
	if tf != domain.Timeframe1d {
		return nil, fmt.Errorf("coingecko serves only the %s timeframe, got %q", domain.Timeframe1d, tf)
	}
	if asset.CoingeckoID == nil {
		return nil, fmt.Errorf("asset %s has no coingecko id", asset.ID)
	}

	to := beforeTimestamp
	if to == 0 {
		to = s.now().Unix()
	}
	from := to - pageSpanDays*86400
	if asset.LaunchDate > 0 {
		if to <= asset.LaunchDate {
			return nil, nil
		}
		if from < asset.LaunchDate {
			from = asset.LaunchDate
		}
	}

	req := s.client.R().
		SetContext(ctx).
		SetPathParam("id", *asset.CoingeckoID).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"from":        fmt.Sprintf("%d", from),
			"to":          fmt.Sprintf("%d", to),
		})

	for {
		resp, err := req.Get("/coins/{id}/market_chart/range")
		if err != nil {
			return nil, fmt.Errorf("request market chart: %w", err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			return s.decodePage(asset, resp.Body())
		case http.StatusTooManyRequests:
			s.logger.Printf("%s: rate limited, waiting %s", SourceName, s.rateLimitWait)
			select {
			case <-time.After(s.rateLimitWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, ingestion.ErrPlanLimited
		default:
			s.logger.Printf("%s: status %d", SourceName, resp.StatusCode())
			return nil, nil
		}
	}
}

func (s *Source) decodePage(asset *domain.Asset, body []byte) ([]*domain.Candle, error) {
	var parsed marketChartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode market chart response: %w", err)
	}

	volumeByDay := make(map[int64]float64, len(parsed.TotalVolumes))
	for _, row := range parsed.TotalVolumes {
		if len(row) < 2 {
			continue
		}
		volumeByDay[dayBucket(row[0])] = row[1]
	}

	// Multiple points can land in one day near window edges; the last
	// one wins so the candle carries the day's final price.
	byDay := make(map[int64]*domain.Candle, len(parsed.Prices))
	order := make([]int64, 0, len(parsed.Prices))
	for _, row := range parsed.Prices {
		if len(row) < 2 {
			return nil, fmt.Errorf("malformed price row of length %d", len(row))
		}
		day := dayBucket(row[0])
		price := row[1]
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
		}
		byDay[day] = &domain.Candle{
			AssetID:    asset.ID,
			Timeframe:  domain.Timeframe1d,
			Timestamp:  day,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     volumeByDay[day],
			DataSource: SourceName,
		}
	}

	candles := make([]*domain.Candle, 0, len(order))
	for _, day := range order {
		candles = append(candles, byDay[day])
	}
	return candles, nil
}

// dayBucket converts a millisecond timestamp to its midnight-UTC
// bucket in seconds.
func dayBucket(tsMillis float64) int64 {
	return int64(tsMillis/1000) / 86400 * 86400
}
