package domain

// Post represents a founder social-media post.
// Corresponds to the tweets table in PostgreSQL.
// Engagement counts are refreshed in place on re-fetch; timestamp and
// text are preserved from the first fetch.
type Post struct {
	ID          string // PRIMARY KEY, source-unique post id
	AssetID     string // associated asset
	Timestamp   int64  // Unix timestamp in seconds
	Text        string
	Likes       int
	Retweets    int
	Replies     int
	Impressions int
	FetchedAt   int64 // last upsert timestamp (s)
}
