package domain

// Asset represents a tracked token and its founder association.
// Corresponds to the assets table in PostgreSQL.
type Asset struct {
	ID             string      // PRIMARY KEY, short slug (e.g. "pump")
	Name           string      // display name
	Founder        string      // founder handle whose posts are tracked
	Network        *string     // chain network (nullable)
	PoolAddress    *string     // DEX pool address for OHLCV APIs (nullable)
	CoingeckoID    *string     // CoinGecko coin id (nullable)
	PriceSource    string      // primary source tag: geckoterminal | coingecko | birdeye | hyperliquid
	LaunchDate     int64       // Unix timestamp in seconds; posts/candles before this are invalid
	Color          *string     // chart color hint (nullable)
	Enabled        bool        // disabled assets are skipped by fetch/export
	SkipTimeframes []Timeframe // timeframes excluded from coverage validation
	CreatedAt      int64       // record creation timestamp (s)
	UpdatedAt      int64       // last config sync timestamp (s)
}
