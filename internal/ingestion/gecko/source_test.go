package gecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tweet-price-lab/internal/domain"
	"tweet-price-lab/internal/ingestion"
)

func testAsset() *domain.Asset {
	network := "solana"
	pool := "PoolAddr111"
	return &domain.Asset{
		ID:          "pump",
		PriceSource: SourceName,
		Network:     &network,
		PoolAddress: &pool,
	}
}

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:       srv.URL,
		RateLimitWait: 10 * time.Millisecond,
		Logger:        log.New(io.Discard, "", 0),
	})
}

func TestFetchPageDecodesCandles(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[
			[7200,1.1,1.3,1.0,1.2,500.5],
			[3600,1.0,1.2,0.9,1.1,400.0]
		]}}}`)
	})

	candles, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1h, 10800)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}

	if want := "/networks/solana/pools/PoolAddr111/ohlcv/hour"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
	for key, want := range map[string]string{
		"aggregate":        "1",
		"limit":            "1000",
		"currency":         "usd",
		"before_timestamp": "10800",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Errorf("query param %s = %q, want %q", key, got, want)
		}
	}

	c := candles[0]
	if c.AssetID != "pump" || c.Timeframe != domain.Timeframe1h {
		t.Errorf("candle identity = (%s, %s)", c.AssetID, c.Timeframe)
	}
	if c.Timestamp != 7200 || c.Open != 1.1 || c.High != 1.3 || c.Low != 1.0 || c.Close != 1.2 || c.Volume != 500.5 {
		t.Errorf("candle values = %+v", c)
	}
	if c.DataSource != SourceName {
		t.Errorf("DataSource = %q, want %q", c.DataSource, SourceName)
	}
}

func TestFetchPageNewestOmitsCursor(t *testing.T) {
	var gotQuery url.Values
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[]}}}`)
	})

	if _, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1m, 0); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if gotQuery.Has("before_timestamp") {
		t.Errorf("newest page should not send before_timestamp, got %v", gotQuery)
	}
	if got := gotQuery.Get("aggregate"); got != "1" {
		t.Errorf("query param aggregate = %q, want %q", got, "1")
	}
}

func TestFetchPageRetriesAfterRateLimit(t *testing.T) {
	var calls int
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[[3600,1,1,1,1,1]]}}}`)
	})

	candles, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1h, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}
	if len(candles) != 1 {
		t.Errorf("got %d candles, want 1", len(candles))
	}
}

func TestFetchPagePlanLimited(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1m, 3600)
	if !errors.Is(err, ingestion.ErrPlanLimited) {
		t.Fatalf("FetchPage() error = %v, want ErrPlanLimited", err)
	}
}

func TestFetchPageServerErrorEndsWalk(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	candles, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1h, 0)
	if err != nil {
		t.Fatalf("FetchPage() error = %v, want nil", err)
	}
	if candles != nil {
		t.Errorf("got %d candles, want empty page", len(candles))
	}
}

func TestFetchPageRejectsMissingPool(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	asset := &domain.Asset{ID: "pump", PriceSource: SourceName}
	if _, err := src.FetchPage(context.Background(), asset, domain.Timeframe1h, 0); err == nil {
		t.Fatal("FetchPage() error = nil, want pool address error")
	}
}

func TestFetchPageRejectsUnknownTimeframe(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	if _, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe("3w"), 0); err == nil {
		t.Fatal("FetchPage() error = nil, want unsupported timeframe error")
	}
}

func TestFetchPageMalformedRow(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"attributes":{"ohlcv_list":[[3600,1.0]]}}}`)
	})

	if _, err := src.FetchPage(context.Background(), testAsset(), domain.Timeframe1h, 0); err == nil {
		t.Fatal("FetchPage() error = nil, want malformed row error")
	}
}
