package domain

// Timeframe represents the candle bucket width.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

// AllTimeframes lists every supported timeframe, finest first.
var AllTimeframes = []Timeframe{Timeframe1m, Timeframe15m, Timeframe1h, Timeframe1d}

// String returns the string representation of Timeframe.
func (tf Timeframe) String() string {
	return string(tf)
}

// IsValid checks if the timeframe is a supported value.
func (tf Timeframe) IsValid() bool {
	switch tf {
	case Timeframe1m, Timeframe15m, Timeframe1h, Timeframe1d:
		return true
	}
	return false
}

// BucketSeconds returns the bucket width in seconds, or 0 for an
// unknown timeframe.
func (tf Timeframe) BucketSeconds() int64 {
	switch tf {
	case Timeframe1m:
		return 60
	case Timeframe15m:
		return 900
	case Timeframe1h:
		return 3600
	case Timeframe1d:
		return 86400
	}
	return 0
}
