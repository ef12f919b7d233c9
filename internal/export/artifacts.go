package export

import (
	"math"

	"tweet-price-lab/internal/domain"
)

// PriceArtifact is the per-timeframe candle bundle consumed by the
// chart layer.
type PriceArtifact struct {
	Timeframe domain.Timeframe      `json:"timeframe"`
	Count     int                   `json:"count"`
	Start     int64                 `json:"start"`
	End       int64                 `json:"end"`
	Candles   []domain.ExportCandle `json:"candles"`
}

// Chunk describes one monthly 1-minute file in the chunk index.
// RangeStart/RangeEnd are the exact midnight-UTC month boundaries of
// the chunk, so every candle falls inside exactly one stated range;
// Start/End are the actual first/last candle timestamps present.
type Chunk struct {
	Month      string `json:"month"`
	File       string `json:"file"`
	Count      int    `json:"count"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	RangeStart int64  `json:"range_start"`
	RangeEnd   int64  `json:"range_end"`
}

// ChunkIndex lists every monthly 1-minute chunk for lazy loading.
type ChunkIndex struct {
	Timeframe domain.Timeframe `json:"timeframe"`
	Chunks    []Chunk          `json:"chunks"`
}

// ChunkArtifact is one monthly 1-minute candle file.
type ChunkArtifact struct {
	Timeframe domain.Timeframe      `json:"timeframe"`
	Month     string                `json:"month"`
	Count     int                   `json:"count"`
	Start     int64                 `json:"start"`
	End       int64                 `json:"end"`
	Candles   []domain.ExportCandle `json:"candles"`
}

// EventsArtifact is the aligned-events bundle.
type EventsArtifact struct {
	GeneratedAt     string                 `json:"generated_at"`
	PriceDefinition string                 `json:"price_definition"`
	Count           int                    `json:"count"`
	Events          []*domain.AlignedEvent `json:"events"`
}

// toExportCandles converts candles to the compact chart shape,
// rounding prices to 8 decimals and volume to 2.
func toExportCandles(candles []*domain.Candle) []domain.ExportCandle {
	result := make([]domain.ExportCandle, len(candles))
	for i, c := range candles {
		result[i] = domain.ExportCandle{
			T: c.Timestamp,
			O: round8(c.Open),
			H: round8(c.High),
			L: round8(c.Low),
			C: round8(c.Close),
			V: round2(c.Volume),
		}
	}
	return result
}

func round8(v float64) float64 { return math.Round(v*1e8) / 1e8 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
