package progression

import "github.com/nuanyu/companion/backend/internal/model/progress"

// trendDelta is the mean difference beyond which the trend leaves "stable".
const trendDelta = 5.0

// Trend compares the mean of the most recent five composites against the
// five before them. Advisory metadata only; nothing gates on it.
func Trend(window progress.QualityWindow) progress.GrowthTrend {
	if len(window) < 10 {
		return progress.TrendStable
	}

	recent := window[len(window)-5:]
	previous := window[len(window)-10 : len(window)-5]

	delta := mean(recent) - mean(previous)
	switch {
	case delta > trendDelta:
		return progress.TrendIncreasing
	case delta < -trendDelta:
		return progress.TrendDecreasing
	default:
		return progress.TrendStable
	}
}

func mean(window progress.QualityWindow) float64 {
	sum := 0
	for _, q := range window {
		sum += q.Composite
	}
	return float64(sum) / float64(len(window))
}
