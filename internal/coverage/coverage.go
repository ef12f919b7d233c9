// Package coverage validates exported candle counts against the
// mathematical expectation from launch date and interval. Read-only:
// it reports, it never mutates.
package coverage

import (
	"math"

	"tweet-price-lab/internal/domain"
)

// Threshold is the minimum acceptable coverage ratio.
const Threshold = 0.95

// suspiciousCoverage flags series with materially more candles than
// expected, which usually means duplicate data survived somewhere.
const suspiciousCoverage = 1.05

// Status classifies a timeframe's coverage result.
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Gap is a run of missing buckets between two present candles.
type Gap struct {
	Start   int64 `json:"start"`   // timestamp of candle before the gap
	End     int64 `json:"end"`     // timestamp of candle after the gap
	Missing int   `json:"missing"` // estimated missing candle count
}

// TimeframeReport is the per-timeframe validation result.
type TimeframeReport struct {
	Timeframe     domain.Timeframe `json:"timeframe"`
	Expected      int              `json:"expected"`
	Actual        int              `json:"actual"`
	CoveragePct   float64          `json:"coverage_pct"`
	Status        Status           `json:"status"`
	Gaps          []Gap            `json:"gaps,omitempty"`
	FirstCandle   *int64           `json:"first_candle,omitempty"`
	PreLaunchData bool             `json:"pre_launch_data"`
	Issues        []string         `json:"issues,omitempty"`
}

// ExpectedCount computes how many candles should exist from launch to
// now for a fixed interval.
func ExpectedCount(launchDate, now int64, intervalSeconds int64) int {
	if intervalSeconds <= 0 || now <= launchDate {
		return 0
	}
	return int(math.Ceil(float64(now-launchDate) / float64(intervalSeconds)))
}

// FindGaps enumerates runs of missing buckets. A gap is any step
// between successive timestamps greater than 2x the interval; a single
// missing bucket at exactly 2x is tolerated as source jitter.
func FindGaps(timestamps []int64, intervalSeconds int64) []Gap {
	if len(timestamps) < 2 || intervalSeconds <= 0 {
		return nil
	}

	threshold := intervalSeconds * 2

	var gaps []Gap
	for i := 1; i < len(timestamps); i++ {
		delta := timestamps[i] - timestamps[i-1]
		if delta > threshold {
			gaps = append(gaps, Gap{
				Start:   timestamps[i-1],
				End:     timestamps[i],
				Missing: int(delta/intervalSeconds) - 1,
			})
		}
	}

	return gaps
}

// ValidateTimeframe checks one timeframe's candle timestamps against
// expectation. Timestamps must be ordered ASC.
func ValidateTimeframe(tf domain.Timeframe, timestamps []int64, launchDate, now int64) TimeframeReport {
	interval := tf.BucketSeconds()
	expected := ExpectedCount(launchDate, now, interval)
	actual := len(timestamps)

	coverage := 0.0
	if expected > 0 {
		coverage = float64(actual) / float64(expected)
	}

	report := TimeframeReport{
		Timeframe:   tf,
		Expected:    expected,
		Actual:      actual,
		CoveragePct: round1(coverage * 100),
		Gaps:        FindGaps(timestamps, interval),
	}

	if actual > 0 {
		first := timestamps[0]
		report.FirstCandle = &first
		report.PreLaunchData = first < launchDate
	}

	switch {
	case coverage < Threshold:
		report.Status = StatusFail
		report.Issues = append(report.Issues, "coverage below 95% threshold")
	case report.PreLaunchData:
		report.Status = StatusWarn
		report.Issues = append(report.Issues, "data exists before launch date")
	case coverage > suspiciousCoverage:
		report.Status = StatusWarn
		report.Issues = append(report.Issues, "more candles than expected, possible duplicate data")
	default:
		report.Status = StatusOK
	}

	return report
}

// Report is the full per-asset validation result.
type Report struct {
	AssetID     string            `json:"asset_id"`
	LaunchDate  int64             `json:"launch_date"`
	GeneratedAt int64             `json:"generated_at"`
	Timeframes  []TimeframeReport `json:"timeframes"`
}

// Passed reports whether no timeframe failed. Coverage shortfall is a
// signal for manual backfill, not an export blocker; callers translate
// this into an exit code, nothing more.
func (r *Report) Passed() bool {
	for _, tf := range r.Timeframes {
		if tf.Status == StatusFail {
			return false
		}
	}
	return true
}

// SkipPolicy decides which timeframes are excluded from validation for
// an asset. Fine-grained data is only fetchable for a limited recent
// window, so old assets legitimately lack deep 1m/15m history.
type SkipPolicy struct {
	Skip1mAfterDays  int
	Skip15mAfterDays int
}

// ShouldSkip combines the asset's explicit skip list with the
// age-based policy.
func (p SkipPolicy) ShouldSkip(asset *domain.Asset, tf domain.Timeframe, now int64) bool {
	for _, s := range asset.SkipTimeframes {
		if s == tf {
			return true
		}
	}

	ageDays := int((now - asset.LaunchDate) / 86400)
	switch tf {
	case domain.Timeframe1m:
		return p.Skip1mAfterDays > 0 && ageDays > p.Skip1mAfterDays
	case domain.Timeframe15m:
		return p.Skip15mAfterDays > 0 && ageDays > p.Skip15mAfterDays
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
