package stats

import (
	"math"
	"testing"

	"tweet-price-lab/internal/domain"
)

func dayTs(day int) int64 {
	return int64(day) * daySeconds
}

func event(ts int64) *domain.AlignedEvent {
	price := 1.0
	return &domain.AlignedEvent{PostID: "p", Timestamp: ts, PriceAtPost: &price}
}

func TestCompute_Counts(t *testing.T) {
	events := []*domain.AlignedEvent{
		event(dayTs(1) + 100),
		event(dayTs(2) + 100),
		{PostID: "unmatched", Timestamp: dayTs(3) + 100},
	}
	daily := []*domain.Candle{
		{Timestamp: dayTs(0), Close: 1.0},
		{Timestamp: dayTs(1), Close: 1.1},
		{Timestamp: dayTs(2), Close: 1.0},
		{Timestamp: dayTs(3), Close: 1.2},
	}

	summary := Compute(events, daily, dayTs(4))

	if summary.TotalPosts != 3 {
		t.Errorf("Expected 3 total posts, got %d", summary.TotalPosts)
	}
	if summary.PostsWithPrice != 2 {
		t.Errorf("Expected 2 posts with price, got %d", summary.PostsWithPrice)
	}
	if summary.GeneratedAt == "" {
		t.Error("Expected generated_at to be set")
	}
}

func TestCompareDailyReturns_Split(t *testing.T) {
	// Posts on days 1 and 3; daily closes for days 0..4.
	events := []*domain.AlignedEvent{
		event(dayTs(1) + 3600),
		event(dayTs(3) + 3600),
	}
	days := []int64{dayTs(0), dayTs(1), dayTs(2), dayTs(3), dayTs(4)}
	closes := map[int64]float64{
		dayTs(0): 1.0,
		dayTs(1): 1.1, // post day, +10%
		dayTs(2): 1.0,
		dayTs(3): 1.2, // post day, +20%
		dayTs(4): 1.2,
	}

	cmp := compareDailyReturns(events, days, closes)

	if cmp.TweetDayCount != 2 {
		t.Errorf("Expected 2 post-day returns, got %d", cmp.TweetDayCount)
	}
	if cmp.NoTweetDayCount != 2 {
		t.Errorf("Expected 2 quiet-day returns, got %d", cmp.NoTweetDayCount)
	}
	if cmp.TweetDayWinRate != 100.0 {
		t.Errorf("Expected 100%% post-day win rate, got %v", cmp.TweetDayWinRate)
	}
	// Too few observations on each side for a t-test.
	if cmp.TStatistic != nil || cmp.PValue != nil {
		t.Error("Expected no t-test below the observation minimum")
	}
}

func TestQuietPeriods(t *testing.T) {
	events := []*domain.AlignedEvent{
		event(dayTs(0)),
		event(dayTs(1)),
		event(dayTs(6)), // 5-day gap
		event(dayTs(7)),
	}

	periods := quietPeriods(events, dayTs(8))

	if len(periods) != 1 {
		t.Fatalf("Expected 1 quiet period, got %d", len(periods))
	}
	p := periods[0]
	if p.StartTs != dayTs(1) || p.EndTs != dayTs(6) || p.GapDays != 5.0 {
		t.Errorf("Period mismatch: %+v", p)
	}
	if p.IsCurrent {
		t.Error("Closed gap must not be current")
	}
}

func TestQuietPeriods_OngoingSilence(t *testing.T) {
	events := []*domain.AlignedEvent{event(dayTs(0))}

	periods := quietPeriods(events, dayTs(10))

	if len(periods) != 1 {
		t.Fatalf("Expected 1 ongoing period, got %d", len(periods))
	}
	if !periods[0].IsCurrent || periods[0].GapDays != 10.0 {
		t.Errorf("Expected current 10-day gap, got %+v", periods[0])
	}
}

func TestPriceImpact(t *testing.T) {
	periods := []QuietPeriod{{StartTs: dayTs(1), EndTs: dayTs(6)}}
	days := []int64{dayTs(0), dayTs(1), dayTs(5), dayTs(7)}
	closes := map[int64]float64{
		dayTs(0): 0.9,
		dayTs(1): 1.0,
		dayTs(5): 1.5,
		dayTs(7): 9.9,
	}

	result := priceImpact(periods, days, closes)

	p := result[0]
	if p.PriceStart == nil || *p.PriceStart != 1.0 {
		t.Fatalf("Expected start price 1.0, got %v", p.PriceStart)
	}
	if p.PriceEnd == nil || *p.PriceEnd != 1.5 {
		t.Fatalf("Expected end price 1.5 (last close inside gap), got %v", p.PriceEnd)
	}
	if p.ChangePct == nil || *p.ChangePct != 50.0 {
		t.Errorf("Expected +50%% change, got %v", p.ChangePct)
	}
}

func TestCurrentStatus_Silent(t *testing.T) {
	events := []*domain.AlignedEvent{event(dayTs(0))}
	periods := quietPeriods(events, dayTs(12))

	status := currentStatus(events, periods)

	if status.DaysSinceLastPost != 12 {
		t.Errorf("Expected 12 days since last post, got %d", status.DaysSinceLastPost)
	}
	if status.LastPostDate == nil || *status.LastPostDate != "1970-01-01" {
		t.Errorf("Expected last post date 1970-01-01, got %v", status.LastPostDate)
	}
}

func TestRollingCorrelation_TooFewDays(t *testing.T) {
	days := []int64{dayTs(0), dayTs(1)}
	closes := map[int64]float64{dayTs(0): 1.0, dayTs(1): 2.0}

	if c := rollingCorrelation(nil, days, closes); c != nil {
		t.Errorf("Expected nil below sample minimum, got %+v", c)
	}
}

func TestTwoSampleTTest_KnownValue(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 3, 4, 5, 6}

	tStat, p := twoSampleTTest(a, b)

	if math.Abs(tStat-(-1.0)) > 1e-9 {
		t.Errorf("Expected t = -1.0, got %v", tStat)
	}
	// Two-sided p for |t|=1, df=8 is 0.3466.
	if math.Abs(p-0.3466) > 0.001 {
		t.Errorf("Expected p ~= 0.3466, got %v", p)
	}
}

func TestTwoSampleTTest_IdenticalMeans(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{3, 2, 1}

	tStat, p := twoSampleTTest(a, b)

	if tStat != 0 {
		t.Errorf("Expected t = 0, got %v", tStat)
	}
	if math.Abs(p-1.0) > 1e-9 {
		t.Errorf("Expected p = 1, got %v", p)
	}
}

func TestPearson_PerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}

	r, p := pearson(x, y)

	if math.Abs(r-1.0) > 1e-9 {
		t.Errorf("Expected r = 1, got %v", r)
	}
	if p != 0 {
		t.Errorf("Expected p = 0, got %v", p)
	}
}

func TestPearson_NoVariance(t *testing.T) {
	x := []float64{1, 1, 1, 1}
	y := []float64{1, 2, 3, 4}

	r, p := pearson(x, y)

	if r != 0 || p != 1 {
		t.Errorf("Expected (0, 1) for flat input, got (%v, %v)", r, p)
	}
}
