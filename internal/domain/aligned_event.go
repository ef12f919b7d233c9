package domain

// AlignedEvent joins a post to the nearest valid price observation and
// forward returns at fixed horizons. Derived at export time, never stored.
//
// Nullable fields use pointers: a post with no price match inside any
// staleness ceiling is a valid event with nil prices, not an error.
type AlignedEvent struct {
	PostID           string     `json:"tweet_id"`
	AssetID          string     `json:"asset_id"`
	Timestamp        int64      `json:"timestamp"`
	TimestampISO     string     `json:"timestamp_iso"`
	Text             string     `json:"text"`
	Likes            int        `json:"likes"`
	Retweets         int        `json:"retweets"`
	Replies          int        `json:"replies"`
	Impressions      int        `json:"impressions"`
	PriceAtPost      *float64   `json:"price_at_tweet"`
	MatchedTimeframe *Timeframe `json:"matched_timeframe"`
	Price1h          *float64   `json:"price_1h"`
	Price24h         *float64   `json:"price_24h"`
	Change1hPct      *float64   `json:"change_1h_pct"`
	Change24hPct     *float64   `json:"change_24h_pct"`
}
