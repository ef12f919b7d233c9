package export

import (
	"fmt"
	"time"

	"tweet-price-lab/internal/domain"
)

// monthOf returns the "YYYY-MM" key for a timestamp in UTC.
func monthOf(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01")
}

// monthBounds returns the exact midnight-UTC month boundaries
// [start, end) containing ts. Chunk ranges must be exact so no candle
// can fall outside every chunk's stated range.
func monthBounds(ts int64) (start, end int64) {
	t := time.Unix(ts, 0).UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.Unix(), first.AddDate(0, 1, 0).Unix()
}

// partitionByMonth splits a normalized candle sequence into per-month
// chunk artifacts, in chronological order. Candles must be ordered by
// timestamp ASC.
func partitionByMonth(candles []*domain.Candle) ([]ChunkArtifact, ChunkIndex) {
	index := ChunkIndex{Timeframe: domain.Timeframe1m}
	if len(candles) == 0 {
		return nil, index
	}

	var chunks []ChunkArtifact
	var current *ChunkArtifact
	var currentMonth string

	for _, c := range candles {
		month := monthOf(c.Timestamp)
		if current == nil || month != currentMonth {
			if current != nil {
				chunks = append(chunks, *current)
			}
			current = &ChunkArtifact{
				Timeframe: domain.Timeframe1m,
				Month:     month,
				Start:     c.Timestamp,
			}
			currentMonth = month
		}
		exported := toExportCandles([]*domain.Candle{c})
		current.Candles = append(current.Candles, exported[0])
		current.End = c.Timestamp
		current.Count++
	}
	if current != nil {
		chunks = append(chunks, *current)
	}

	for _, chunk := range chunks {
		rangeStart, rangeEnd := monthBounds(chunk.Start)
		index.Chunks = append(index.Chunks, Chunk{
			Month:      chunk.Month,
			File:       chunkFileName(chunk.Month),
			Count:      chunk.Count,
			Start:      chunk.Start,
			End:        chunk.End,
			RangeStart: rangeStart,
			RangeEnd:   rangeEnd,
		})
	}

	return chunks, index
}

func chunkFileName(month string) string {
	return fmt.Sprintf("prices_1m_%s.json", month)
}
