package domain

// IngestState records the resume point for incremental fetching.
// Corresponds to the ingestion_state table in PostgreSQL.
// Natural key: (asset_id, data_type).
type IngestState struct {
	AssetID       string  // asset identifier
	DataType      string  // "prices:<timeframe>" or "posts"
	LastID        *string // newest seen post id (posts only)
	LastTimestamp *int64  // newest committed timestamp (s)
	UpdatedAt     int64   // last successful fetch timestamp (s)
}

// PriceDataType returns the ingest-state data type key for a timeframe.
func PriceDataType(tf Timeframe) string {
	return "prices:" + string(tf)
}

// PostDataType is the ingest-state data type key for posts.
const PostDataType = "posts"
