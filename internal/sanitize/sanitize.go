// Package sanitize cleans raw candles before normalization.
//
// Wick capping is a candle-shape policy: a high far above both open and
// close is a single manipulated trade, while a legitimate crash keeps
// high close to its own open/close range and is never touched.
package sanitize

import (
	"math"

	"tweet-price-lab/internal/domain"
)

// DefaultWickCapMultiplier caps wicks at 2x the candle body extremes.
// A policy constant, not a statistical estimate.
const DefaultWickCapMultiplier = 2.0

// CapWick returns a copy of the candle with high/low capped relative to
// the candle body. The input is never mutated.
func CapWick(c domain.Candle, multiplier float64) domain.Candle {
	if multiplier <= 0 {
		multiplier = DefaultWickCapMultiplier
	}

	top, bottom := c.Body()

	if c.High > top*multiplier {
		c.High = top * multiplier
	}
	if c.Low < bottom/multiplier {
		c.Low = bottom / multiplier
	}

	// Restore OHLC consistency after capping.
	if c.High < top {
		c.High = top
	}
	if c.Low > bottom {
		c.Low = bottom
	}

	return c
}

// CapWicks applies CapWick to every candle, returning a new slice.
func CapWicks(candles []*domain.Candle, multiplier float64) []*domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	result := make([]*domain.Candle, len(candles))
	for i, c := range candles {
		capped := CapWick(*c, multiplier)
		result[i] = &capped
	}
	return result
}

// Anomaly flags a single-step price change far outside the series'
// rolling distribution, for manual review.
type Anomaly struct {
	Timestamp int64   // candle timestamp (s)
	ChangePct float64 // close-to-close change, percent
	Mean      float64 // rolling mean of change at this point
	Stddev    float64 // rolling stddev of change at this point
	Sigmas    float64 // |change - mean| / stddev
}

// DefaultAnomalySigma uses 5 standard deviations, not the conventional
// 3: token return distributions are fat-tailed and 3σ misclassifies
// ordinary large rallies.
const DefaultAnomalySigma = 5.0

// DefaultAnomalyWindow is the rolling window length in candles.
const DefaultAnomalyWindow = 50

// FlagAnomalies computes a rolling mean and standard deviation of
// close-to-close percentage change and flags steps exceeding sigma
// standard deviations. Candles must be ordered by timestamp ASC.
// The input is never mutated.
func FlagAnomalies(candles []*domain.Candle, window int, sigma float64) []Anomaly {
	if window <= 1 {
		window = DefaultAnomalyWindow
	}
	if sigma <= 0 {
		sigma = DefaultAnomalySigma
	}
	if len(candles) < 2 {
		return nil
	}

	changes := make([]float64, 0, len(candles)-1)
	timestamps := make([]int64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		changes = append(changes, (candles[i].Close-prev)/prev*100)
		timestamps = append(timestamps, candles[i].Timestamp)
	}

	var anomalies []Anomaly
	for i, change := range changes {
		start := i - window
		if start < 0 {
			start = 0
		}
		if i-start < 2 {
			continue
		}

		mean, stddev := meanStddev(changes[start:i])
		if stddev == 0 {
			continue
		}

		sigmas := math.Abs(change-mean) / stddev
		if sigmas > sigma {
			anomalies = append(anomalies, Anomaly{
				Timestamp: timestamps[i],
				ChangePct: change,
				Mean:      mean,
				Stddev:    stddev,
				Sigmas:    sigmas,
			})
		}
	}

	return anomalies
}

func meanStddev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
