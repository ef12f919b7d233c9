package domain

// Candle represents one OHLCV price observation bucketed to a timeframe.
// Corresponds to the prices table in PostgreSQL.
// Natural key: (asset_id, timeframe, timestamp).
type Candle struct {
	AssetID    string    // token asset identifier
	Timeframe  Timeframe // bucket width
	Timestamp  int64     // bucket start, Unix seconds UTC
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	DataSource string // source tag: geckoterminal | birdeye | coingecko | hyperliquid
	Deprecated bool   // soft-delete flag; deprecated candles are excluded from reads
	FetchedAt  int64  // last upsert timestamp (s)
}

// Body returns the open/close extremes of the candle body.
func (c *Candle) Body() (top, bottom float64) {
	if c.Open >= c.Close {
		return c.Open, c.Close
	}
	return c.Close, c.Open
}

// ExportCandle is the compact chart-facing candle shape.
type ExportCandle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}
