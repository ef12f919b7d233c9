// Package stats precomputes the summary-statistics artifact so the
// consuming chart layer never does heavy computation.
package stats

import (
	"math"
	"sort"
	"time"

	"tweet-price-lab/internal/domain"
)

const daySeconds = int64(86400)

// minQuietGapDays is the smallest posting gap reported as a quiet period.
const minQuietGapDays = 3.0

// DailyComparison contrasts daily returns on days the founder posted
// against days they did not.
type DailyComparison struct {
	TweetDayCount       int      `json:"tweet_day_count"`
	TweetDayAvgReturn   float64  `json:"tweet_day_avg_return"`
	TweetDayWinRate     float64  `json:"tweet_day_win_rate"`
	NoTweetDayCount     int      `json:"no_tweet_day_count"`
	NoTweetDayAvgReturn float64  `json:"no_tweet_day_avg_return"`
	NoTweetDayWinRate   float64  `json:"no_tweet_day_win_rate"`
	TStatistic          *float64 `json:"t_statistic"`
	PValue              *float64 `json:"p_value"`
	Significant         bool     `json:"significant"`
}

// Correlation is the Pearson correlation of 7-day rolling post count
// against daily close price.
type Correlation struct {
	Correlation7d float64 `json:"correlation_7d"`
	PValue        float64 `json:"p_value"`
	Significant   bool    `json:"significant"`
	SampleSize    int     `json:"sample_size"`
}

// QuietPeriod is a posting gap of at least three days, with the price
// move across it.
type QuietPeriod struct {
	StartTs    int64    `json:"start_ts"`
	EndTs      int64    `json:"end_ts"`
	GapDays    float64  `json:"gap_days"`
	PriceStart *float64 `json:"price_start"`
	PriceEnd   *float64 `json:"price_end"`
	ChangePct  *float64 `json:"change_pct"`
	IsCurrent  bool     `json:"is_current,omitempty"`
}

// CurrentStatus summarizes the founder's present posting state.
type CurrentStatus struct {
	DaysSinceLastPost        int      `json:"days_since_last_tweet"`
	PriceChangeDuringSilence *float64 `json:"price_change_during_silence"`
	LastPostDate             *string  `json:"last_tweet_date"`
}

// Summary is the stats.json artifact.
type Summary struct {
	GeneratedAt     string          `json:"generated_at"`
	TotalPosts      int             `json:"total_tweets"`
	PostsWithPrice  int             `json:"tweets_with_price"`
	DailyComparison DailyComparison `json:"daily_comparison"`
	Correlation     *Correlation    `json:"correlation,omitempty"`
	CurrentStatus   CurrentStatus   `json:"current_status"`
	QuietPeriods    []QuietPeriod   `json:"quiet_periods"`
}

// Compute builds the full summary from aligned events and the
// normalized daily candle series. now is injected for deterministic
// output.
func Compute(events []*domain.AlignedEvent, daily []*domain.Candle, now int64) *Summary {
	summary := &Summary{
		GeneratedAt: time.Unix(now, 0).UTC().Format("2006-01-02T15:04:05Z"),
		TotalPosts:  len(events),
	}
	for _, e := range events {
		if e.PriceAtPost != nil {
			summary.PostsWithPrice++
		}
	}

	dayTimestamps := make([]int64, len(daily))
	dayCloses := make(map[int64]float64, len(daily))
	for i, c := range daily {
		dayTimestamps[i] = c.Timestamp
		dayCloses[c.Timestamp] = c.Close
	}
	sort.Slice(dayTimestamps, func(i, j int) bool { return dayTimestamps[i] < dayTimestamps[j] })

	summary.DailyComparison = compareDailyReturns(events, dayTimestamps, dayCloses)
	summary.Correlation = rollingCorrelation(events, dayTimestamps, dayCloses)

	quiet := quietPeriods(events, now)
	quiet = priceImpact(quiet, dayTimestamps, dayCloses)
	summary.QuietPeriods = quiet
	summary.CurrentStatus = currentStatus(events, quiet)

	return summary
}

// compareDailyReturns splits daily close-to-close returns by whether
// the founder posted that day, then tests the difference in means.
func compareDailyReturns(events []*domain.AlignedEvent, days []int64, closes map[int64]float64) DailyComparison {
	postDays := make(map[int64]struct{})
	for _, e := range events {
		postDays[(e.Timestamp/daySeconds)*daySeconds] = struct{}{}
	}

	var postReturns, quietReturns []float64
	for i := 1; i < len(days); i++ {
		prev := closes[days[i-1]]
		if prev <= 0 {
			continue
		}
		ret := (closes[days[i]] - prev) / prev * 100

		if _, posted := postDays[days[i]]; posted {
			postReturns = append(postReturns, ret)
		} else {
			quietReturns = append(quietReturns, ret)
		}
	}

	cmp := DailyComparison{
		TweetDayCount:       len(postReturns),
		TweetDayAvgReturn:   round2(mean(postReturns)),
		TweetDayWinRate:     round1(winRate(postReturns)),
		NoTweetDayCount:     len(quietReturns),
		NoTweetDayAvgReturn: round2(mean(quietReturns)),
		NoTweetDayWinRate:   round1(winRate(quietReturns)),
	}

	// The test needs a minimum of observations on both sides to mean
	// anything at all.
	if len(postReturns) >= 5 && len(quietReturns) >= 5 {
		t, p := twoSampleTTest(postReturns, quietReturns)
		tr, pr := round3(t), round4(p)
		cmp.TStatistic = &tr
		cmp.PValue = &pr
		cmp.Significant = p < 0.05
	}

	return cmp
}

// rollingCorrelation relates the prior-7-day post count to daily close.
func rollingCorrelation(events []*domain.AlignedEvent, days []int64, closes map[int64]float64) *Correlation {
	postTimes := make([]int64, len(events))
	for i, e := range events {
		postTimes[i] = e.Timestamp
	}

	counts := make([]float64, 0, len(days))
	prices := make([]float64, 0, len(days))
	for _, day := range days {
		weekStart := day - 7*daySeconds
		n := 0
		for _, t := range postTimes {
			if t >= weekStart && t < day {
				n++
			}
		}
		counts = append(counts, float64(n))
		prices = append(prices, closes[day])
	}

	if len(counts) < 10 {
		return nil
	}

	r, p := pearson(counts, prices)
	return &Correlation{
		Correlation7d: round3(r),
		PValue:        round4(p),
		Significant:   p < 0.05,
		SampleSize:    len(counts),
	}
}

// quietPeriods finds posting gaps of at least minQuietGapDays, plus an
// ongoing gap if the founder has been silent up to now.
func quietPeriods(events []*domain.AlignedEvent, now int64) []QuietPeriod {
	if len(events) == 0 {
		return nil
	}

	timestamps := make([]int64, len(events))
	for i, e := range events {
		timestamps[i] = e.Timestamp
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	var periods []QuietPeriod
	for i := 1; i < len(timestamps); i++ {
		gapDays := float64(timestamps[i]-timestamps[i-1]) / float64(daySeconds)
		if gapDays >= minQuietGapDays {
			periods = append(periods, QuietPeriod{
				StartTs: timestamps[i-1],
				EndTs:   timestamps[i],
				GapDays: round1(gapDays),
			})
		}
	}

	last := timestamps[len(timestamps)-1]
	if gapDays := float64(now-last) / float64(daySeconds); gapDays >= minQuietGapDays {
		periods = append(periods, QuietPeriod{
			StartTs:   last,
			EndTs:     now,
			GapDays:   round1(gapDays),
			IsCurrent: true,
		})
	}

	return periods
}

// priceImpact fills each quiet period with the daily-close move across it.
func priceImpact(periods []QuietPeriod, days []int64, closes map[int64]float64) []QuietPeriod {
	for i := range periods {
		qp := &periods[i]

		// First daily close at or after the gap start.
		for _, day := range days {
			if day >= qp.StartTs {
				v := closes[day]
				qp.PriceStart = &v
				break
			}
		}
		// Last daily close at or before the gap end.
		for j := len(days) - 1; j >= 0; j-- {
			if days[j] <= qp.EndTs {
				v := closes[days[j]]
				qp.PriceEnd = &v
				break
			}
		}

		if qp.PriceStart != nil && qp.PriceEnd != nil && *qp.PriceStart != 0 {
			change := round1((*qp.PriceEnd - *qp.PriceStart) / *qp.PriceStart * 100)
			qp.ChangePct = &change
		}
	}
	return periods
}

func currentStatus(events []*domain.AlignedEvent, periods []QuietPeriod) CurrentStatus {
	var current *QuietPeriod
	for i := range periods {
		if periods[i].IsCurrent {
			current = &periods[i]
		}
	}

	if current != nil {
		date := time.Unix(current.StartTs, 0).UTC().Format("2006-01-02")
		return CurrentStatus{
			DaysSinceLastPost:        int(current.GapDays),
			PriceChangeDuringSilence: current.ChangePct,
			LastPostDate:             &date,
		}
	}

	status := CurrentStatus{}
	if len(events) > 0 {
		last := events[0].Timestamp
		for _, e := range events {
			if e.Timestamp > last {
				last = e.Timestamp
			}
		}
		date := time.Unix(last, 0).UTC().Format("2006-01-02")
		status.LastPostDate = &date
	}
	return status
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns)) * 100
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
