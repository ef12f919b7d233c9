package align

import (
	"testing"

	"tweet-price-lab/internal/domain"
)

func makeSeries(points map[int64]float64, order []int64) *Series {
	candles := make([]*domain.Candle, 0, len(order))
	for _, ts := range order {
		candles = append(candles, &domain.Candle{Timestamp: ts, Close: points[ts]})
	}
	return NewSeries(candles)
}

func TestSeriesAt(t *testing.T) {
	s := makeSeries(map[int64]float64{100: 1.0, 200: 2.0, 300: 3.0}, []int64{100, 200, 300})

	tests := []struct {
		name      string
		target    int64
		wantPrice float64
		wantTs    int64
		wantOK    bool
	}{
		{"exact hit", 200, 2.0, 200, true},
		{"between points", 250, 2.0, 200, true},
		{"after all points", 999, 3.0, 300, true},
		{"before series", 50, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ts, ok := s.At(tt.target)
			if ok != tt.wantOK || price != tt.wantPrice || ts != tt.wantTs {
				t.Errorf("At(%d) = (%v, %d, %v), want (%v, %d, %v)",
					tt.target, price, ts, ok, tt.wantPrice, tt.wantTs, tt.wantOK)
			}
		})
	}
}

func TestMatch_PrefersFinestFreshTimeframe(t *testing.T) {
	target := int64(100_000)

	// 1m candle 30 minutes old, 1h candle 2 hours old. The 1m candle
	// is within its 1h ceiling and must win even though both match.
	aligner := NewAligner(map[domain.Timeframe]*Series{
		domain.Timeframe1m: makeSeries(map[int64]float64{target - 1800: 5.0}, []int64{target - 1800}),
		domain.Timeframe1h: makeSeries(map[int64]float64{target - 7200: 9.0}, []int64{target - 7200}),
	})

	price, tf, ok := aligner.Match(target)
	if !ok {
		t.Fatal("Expected a match")
	}
	if tf != domain.Timeframe1m || price != 5.0 {
		t.Errorf("Expected 1m match at 5.0, got %s at %v", tf, price)
	}
}

func TestMatch_StaleFineFallsBackToCoarse(t *testing.T) {
	target := int64(1_000_000)

	// 1m candle 2 hours old exceeds its 1h ceiling; 1h candle 2 hours
	// old is within its 24h ceiling.
	aligner := NewAligner(map[domain.Timeframe]*Series{
		domain.Timeframe1m: makeSeries(map[int64]float64{target - 7200: 5.0}, []int64{target - 7200}),
		domain.Timeframe1h: makeSeries(map[int64]float64{target - 7200: 9.0}, []int64{target - 7200}),
	})

	price, tf, ok := aligner.Match(target)
	if !ok {
		t.Fatal("Expected a match")
	}
	if tf != domain.Timeframe1h || price != 9.0 {
		t.Errorf("Expected 1h fallback at 9.0, got %s at %v", tf, price)
	}
}

func TestMatch_AllStale(t *testing.T) {
	target := int64(10_000_000)
	old := target - 8*24*3600

	aligner := NewAligner(map[domain.Timeframe]*Series{
		domain.Timeframe1d: makeSeries(map[int64]float64{old: 1.0}, []int64{old}),
	})

	if _, _, ok := aligner.Match(target); ok {
		t.Error("Expected no match when every timeframe is stale")
	}
}

func TestAlign_PreLaunchPostsDropped(t *testing.T) {
	launch := int64(500_000)
	aligner := NewAligner(map[domain.Timeframe]*Series{
		domain.Timeframe1d: makeSeries(map[int64]float64{launch: 1.0}, []int64{launch}),
	})

	posts := []*domain.Post{
		{ID: "early", Timestamp: launch - 100},
		{ID: "late", Timestamp: launch + 100},
	}

	events := aligner.Align(posts, launch)

	if len(events) != 1 || events[0].PostID != "late" {
		t.Fatalf("Expected only the post after launch, got %d events", len(events))
	}
}

func TestAlign_HorizonsIndependent(t *testing.T) {
	postTime := int64(1_000_000)

	// Only a fresh price at T and T+1h; nothing fresh at T+24h.
	aligner := NewAligner(map[domain.Timeframe]*Series{
		domain.Timeframe1m: makeSeries(
			map[int64]float64{postTime: 2.0, postTime + 3600: 3.0},
			[]int64{postTime, postTime + 3600},
		),
	})

	events := aligner.Align([]*domain.Post{{ID: "p", Timestamp: postTime}}, 0)

	e := events[0]
	if e.PriceAtPost == nil || *e.PriceAtPost != 2.0 {
		t.Fatalf("Expected price at post 2.0, got %v", e.PriceAtPost)
	}
	if e.Price1h == nil || *e.Price1h != 3.0 {
		t.Fatalf("Expected +1h price 3.0, got %v", e.Price1h)
	}
	if e.Change1hPct == nil || *e.Change1hPct != 50.0 {
		t.Errorf("Expected +1h change 50%%, got %v", e.Change1hPct)
	}
	// +24h target is a day past the last 1m candle, beyond the ceiling.
	if e.Price24h != nil {
		t.Errorf("Expected no +24h price, got %v", *e.Price24h)
	}
	if e.Change24hPct != nil {
		t.Errorf("Expected nil +24h change, got %v", *e.Change24hPct)
	}
}

func TestAlign_NoMatchStillEmitsEvent(t *testing.T) {
	aligner := NewAligner(map[domain.Timeframe]*Series{})

	events := aligner.Align([]*domain.Post{{ID: "p", Timestamp: 100}}, 0)

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.PriceAtPost != nil || e.MatchedTimeframe != nil || e.Change1hPct != nil {
		t.Errorf("Expected all-null price fields, got %+v", e)
	}
}

func TestPctChange(t *testing.T) {
	base := 2.0
	later := 2.5

	got := pctChange(&base, &later)
	if got == nil || *got != 25.0 {
		t.Errorf("Expected 25.0, got %v", got)
	}

	if pctChange(nil, &later) != nil {
		t.Error("Expected nil for missing base")
	}
	if pctChange(&base, nil) != nil {
		t.Error("Expected nil for missing later")
	}
	zero := 0.0
	if pctChange(&zero, &later) != nil {
		t.Error("Expected nil for zero base")
	}
}
