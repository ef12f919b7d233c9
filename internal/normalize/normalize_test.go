package normalize

import (
	"errors"
	"testing"

	"tweet-price-lab/internal/domain"
)

func TestSnapDaily(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
		want int64
	}{
		{"midnight unchanged", 1704067200, 1704067200},
		{"4am anchor", 1704067200 + 4*3600, 1704067200},
		{"5am anchor", 1704067200 + 5*3600, 1704067200},
		{"last second of day", 1704067200 + 86399, 1704067200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapDaily(tt.ts); got != tt.want {
				t.Errorf("SnapDaily(%d) = %d, want %d", tt.ts, got, tt.want)
			}
		})
	}
}

func TestNormalize_DailySnapCollapsesAnchors(t *testing.T) {
	// Two sources report the same calendar day at different anchor
	// hours. After snapping they collide; the first wins.
	candles := []*domain.Candle{
		{Timestamp: 1704067200, Close: 1.0, DataSource: "geckoterminal"},
		{Timestamp: 1704067200 + 4*3600, Close: 2.0, DataSource: "coingecko"},
	}

	result, err := Normalize(domain.Timeframe1d, candles)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 candle after dedup, got %d", len(result))
	}
	if result[0].Close != 1.0 || result[0].DataSource != "geckoterminal" {
		t.Errorf("Expected first occurrence to win, got %+v", result[0])
	}
	if result[0].Timestamp != 1704067200 {
		t.Errorf("Expected snapped timestamp, got %d", result[0].Timestamp)
	}
}

func TestNormalize_HourlyNotSnapped(t *testing.T) {
	candles := []*domain.Candle{
		{Timestamp: 1704067200, Close: 1.0},
		{Timestamp: 1704070800, Close: 2.0},
	}

	result, err := Normalize(domain.Timeframe1h, candles)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(result))
	}
	if result[1].Timestamp != 1704070800 {
		t.Errorf("Hourly timestamps must pass through, got %d", result[1].Timestamp)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	candles := []*domain.Candle{
		{Timestamp: 1704067200, Close: 1.0},
		{Timestamp: 1704067200 + 3*3600, Close: 2.0},
		{Timestamp: 1704153600, Close: 3.0},
	}

	once, err := Normalize(domain.Timeframe1d, candles)
	if err != nil {
		t.Fatalf("First pass: %v", err)
	}
	twice, err := Normalize(domain.Timeframe1d, once)
	if err != nil {
		t.Fatalf("Second pass: %v", err)
	}

	if len(once) != len(twice) {
		t.Fatalf("Not idempotent: %d then %d candles", len(once), len(twice))
	}
	for i := range once {
		if *once[i] != *twice[i] {
			t.Errorf("Candle %d changed on second pass: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	candles := []*domain.Candle{
		{Timestamp: 1704067200 + 4*3600, Close: 1.0},
	}

	if _, err := Normalize(domain.Timeframe1d, candles); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if candles[0].Timestamp != 1704067200+4*3600 {
		t.Errorf("Input mutated: timestamp=%d", candles[0].Timestamp)
	}
}

func TestNormalize_Empty(t *testing.T) {
	result, err := Normalize(domain.Timeframe1d, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result, got %v", result)
	}
}

func TestVerifyUnique_Duplicate(t *testing.T) {
	candles := []*domain.Candle{
		{Timestamp: 100},
		{Timestamp: 200},
		{Timestamp: 100},
	}

	err := VerifyUnique(candles)
	if !errors.Is(err, ErrDuplicateTimestamp) {
		t.Errorf("Expected ErrDuplicateTimestamp, got %v", err)
	}
}

func TestVerifyUnique_Clean(t *testing.T) {
	candles := []*domain.Candle{
		{Timestamp: 100},
		{Timestamp: 200},
	}

	if err := VerifyUnique(candles); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
