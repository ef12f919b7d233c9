// Package gecko fetches pool OHLCV candles from the GeckoTerminal API.
package gecko

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
	SourceName = "geckoterminal"

	defaultBaseURL = "https://api.geckoterminal.com/api/v2"

	// maxCandlesPerRequest is the documented page-size ceiling.
	maxCandlesPerRequest = 1000

	defaultRateLimitWait = 60 * time.Second
)

// timeframeParams maps a canonical timeframe to GeckoTerminal's
// (ohlcv type, aggregate) pair.
var timeframeParams = map[domain.Timeframe]struct {
	ohlcvType string
	aggregate int
}{
	domain.Timeframe1m:  {"minute", 1},
	domain.Timeframe15m: {"minute", 15},
	domain.Timeframe1h:  {"hour", 1},
	domain.Timeframe1d:  {"day", 1},
}

// Options contains configuration for creating a Source.
type Options struct {
	// BaseURL overrides the public API endpoint, mainly for tests.
	BaseURL string

	// RateLimitWait is how long to sleep on a 429 before retrying.
	RateLimitWait time.Duration

	Logger *log.Logger
}

// Source is an ingestion.CandleSource backed by GeckoTerminal pool
// OHLCV endpoints. Pagination is backward via before_timestamp.
type Source struct {
	client        *resty.Client
	rateLimitWait time.Duration
	logger        *log.Logger
}

var _ ingestion.CandleSource = (*Source)(nil)

// New creates a new GeckoTerminal source.
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

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	return &Source{
		client:        client,
		rateLimitWait: wait,
		logger:        logger,
	}
}

// Name returns the source tag.
func (s *Source) Name() string {
	return SourceName
}

type ohlcvResponse struct {
	Data struct {
		Attributes struct {
			// Each entry is [timestamp, open, high, low, close, volume].
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchPage fetches one page of candles older than beforeTimestamp.
// A 429 waits out the rate limit and retries the same page; a 401 or
// 403 means the requested range is outside the plan tier's window.
func (s *Source) FetchPage(ctx context.Context, asset *domain.Asset, tf domain.Timeframe, beforeTimestamp int64) ([]*domain.Candle, error) {
	if asset.Network == nil || asset.PoolAddress == nil {
		return nil, fmt.Errorf("asset %s has no network/pool address", asset.ID)
	}
	params, ok := timeframeParams[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}

	req := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"network": *asset.Network,
			"pool":    *asset.PoolAddress,
			"type":    params.ohlcvType,
		}).
		SetQueryParams(map[string]string{
			"aggregate": fmt.Sprintf("%d", params.aggregate),
			"limit":     fmt.Sprintf("%d", maxCandlesPerRequest),
			"currency":  "usd",
		})
	if beforeTimestamp > 0 {
		req.SetQueryParam("before_timestamp", fmt.Sprintf("%d", beforeTimestamp))
	}

	for {
		resp, err := req.Get("/networks/{network}/pools/{pool}/ohlcv/{type}")
		if err != nil {
			return nil, fmt.Errorf("request ohlcv page: %w", err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			return s.decodePage(asset, tf, resp.Body())
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
			// Upstream hiccups end the walk for this range; committed
			// pages stay and the next run resumes.
			s.logger.Printf("%s: status %d: %s", SourceName, resp.StatusCode(), truncate(resp.Body(), 200))
			return nil, nil
		}
	}
}

func (s *Source) decodePage(asset *domain.Asset, tf domain.Timeframe, body []byte) ([]*domain.Candle, error) {
	var parsed ohlcvResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode ohlcv response: %w", err)
	}

	list := parsed.Data.Attributes.OHLCVList
	candles := make([]*domain.Candle, 0, len(list))
	for _, row := range list {
		if len(row) < 6 {
			return nil, fmt.Errorf("malformed ohlcv row of length %d", len(row))
		}
		candles = append(candles, &domain.Candle{
			AssetID:    asset.ID,
			Timeframe:  tf,
			Timestamp:  int64(row[0]),
			Open:       row[1],
			High:       row[2],
			Low:        row[3],
			Close:      row[4],
			Volume:     row[5],
			DataSource: SourceName,
		})
	}
	return candles, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
